package sdo

import "encoding/binary"

// rxUploadSegment validates a segmented upload request's toggle bit
// before the server sends the next segment.
func (s *SDOServer) rxUploadSegment(rx SDOMessage) error {
	s.logTransfer("[RX] segmented upload req", rx.raw)

	if rx.raw[0]&0xEF != 0x60 {
		return AbortCmd
	}
	if rx.GetToggle() != s.toggle {
		return AbortToggleBit
	}
	s.state = stateUploadSegmentRsp
	return nil
}

// txUploadInitiate responds to a non-expedited upload initiate request,
// announcing the indicated size and starting the toggle sequence at 0.
func (s *SDOServer) txUploadInitiate() {
	s.toggle = 0x00
	s.state = stateUploadSegmentReq

	s.txBuffer.Data[0] = byte(s.sizeIndicated&0b1) + 0x40
	s.txBuffer.Data[1] = byte(s.index)
	s.txBuffer.Data[2] = byte(s.index >> 8)
	s.txBuffer.Data[3] = s.subindex
	binary.LittleEndian.PutUint32(s.txBuffer.Data[4:], s.sizeIndicated)

	_ = s.Send(s.txBuffer)
	s.logTransfer("[TX] segmented upload initiate resp", s.txBuffer.Data)
}

// txUploadSegment refills from the object dictionary as needed and sends
// the next segment, marking the transfer idle once the last one goes out.
func (s *SDOServer) txUploadSegment() error {
	if err := s.readObjectDictionary(BlockSeqSize, -1, false); err != nil {
		return err
	}
	unread := s.buf.Len()

	s.txBuffer.Data[0] = s.toggle
	s.toggle ^= 0x10

	isLast := unread < BlockSeqSize || (s.finished && unread == BlockSeqSize)
	if isLast {
		s.txBuffer.Data[0] |= byte(BlockSeqSize-unread)<<1 | 0x01
		s.state = stateIdle
	} else {
		s.state = stateUploadSegmentReq
		unread = BlockSeqSize
	}

	s.buf.Read(s.txBuffer.Data[1 : 1+unread])
	s.sizeTransferred += uint32(unread)

	if err := s.checkSizeConsitency(); err != nil {
		return err
	}

	s.logTransfer("[TX] segmented upload", s.txBuffer.Data)
	_ = s.Send(s.txBuffer)
	return nil
}
