package sdo

// rxUploadInitiate decides, from the size already loaded into the
// server's buffer, whether the upload initiate response can be sent
// expedited (<=4 bytes) or must fall back to segmented.
func (s *SDOServer) rxUploadInitiate(rx SDOMessage) error {
	s.logTransfer("[RX] expedited upload initiate req", rx.raw)

	if s.sizeIndicated > 0 && s.sizeIndicated <= 4 {
		s.state = stateUploadExpeditedRsp
		return nil
	}
	s.state = stateUploadInitiateRsp
	return nil
}

// txUploadExpedited sends the whole value in a single initiate response.
func (s *SDOServer) txUploadExpedited() {
	s.txBuffer.Data[0] = 0x43 | (4-byte(s.sizeIndicated))<<2
	s.buf.Read(s.txBuffer.Data[4 : 4+s.sizeIndicated])
	s.txBuffer.Data[1] = byte(s.index)
	s.txBuffer.Data[2] = byte(s.index >> 8)
	s.txBuffer.Data[3] = s.subindex
	s.state = stateIdle

	_ = s.Send(s.txBuffer)
	s.logTransfer("[TX] expedited upload resp", s.txBuffer.Data)
}
