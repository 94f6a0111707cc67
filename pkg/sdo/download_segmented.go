package sdo

// rxDownloadSegment consumes one segment of a segmented download request,
// writing it into the server's reassembly buffer and flushing to the
// object dictionary once the buffer runs low or the transfer is done.
func (s *SDOServer) rxDownloadSegment(rx SDOMessage) error {
	if rx.raw[0]&0xE0 != 0x00 {
		return AbortCmd
	}
	s.logTransfer("[RX] segmented download", s.txBuffer.Data)

	s.finished = rx.raw[0]&0x01 != 0
	if rx.GetToggle() != s.toggle {
		return AbortToggleBit
	}

	count := BlockSeqSize - (rx.raw[0]>>1)&0x07
	if n, err := s.buf.Write(rx.raw[1 : 1+count]); err != nil || n != int(count) {
		return AbortDeviceIncompat
	}
	s.sizeTransferred += uint32(count)

	if s.streamer.DataLength > 0 && s.sizeTransferred > s.streamer.DataLength {
		return AbortDataLong
	}

	if s.finished || s.buf.Available() < BlockSeqSize+2 {
		if err := s.writeObjectDictionary(0, 0); err != nil {
			return err
		}
	}
	s.state = stateDownloadSegmentRsp
	return nil
}

// txDownloadSegment acknowledges the most recently received segment and
// either idles (last segment) or requests the next one.
func (s *SDOServer) txDownloadSegment() {
	s.txBuffer.Data[0] = 0x20 | s.toggle
	s.toggle ^= 0x10
	s.logTransfer("[TX] segmented download", s.txBuffer.Data)
	_ = s.Send(s.txBuffer)

	if s.finished {
		s.state = stateIdle
		return
	}
	s.state = stateDownloadSegmentReq
}
