package sdo

// processIncoming consumes a frame received while idle or while a transfer
// is already in progress, driving the state machine forward. A non-nil
// return aborts the transfer; the server then replies with an abort frame
// instead of calling processOutgoing.
func (s *SDOServer) processIncoming(rx SDOMessage) error {
	if rx.IsAbort() {
		s.logger.Warn("[RX] abort received from client", "code", rx.GetAbortCode())
		s.state = stateIdle
		return nil
	}

	if s.state == stateIdle {
		switch {
		case (rx.raw[0] & 0xF0) == 0x20:
			s.state = stateDownloadInitiateReq
		case rx.raw[0] == 0x40:
			s.state = stateUploadInitiateReq
		case (rx.raw[0] & 0xF9) == 0xC0:
			s.state = stateDownloadBlkInitiateReq
		case (rx.raw[0] & 0xFB) == 0xA0:
			s.state = stateUploadBlkInitiateReq
		default:
			s.state = stateAbort
			return AbortCmd
		}

		if err := s.updateStreamer(rx); err != nil {
			s.state = stateAbort
			return err
		}
	}

	switch s.state {
	case stateDownloadInitiateReq:
		return s.rxDownloadInitiate(rx)
	case stateDownloadSegmentReq:
		return s.rxDownloadSegment(rx)
	case stateUploadInitiateReq:
		return s.rxUploadInitiate(rx)
	case stateUploadSegmentReq:
		return s.rxUploadSegment(rx)
	case stateDownloadBlkInitiateReq:
		return s.rxDownloadBlockInitiate(rx)
	case stateDownloadBlkSubblockReq:
		return s.rxDownloadBlockSubBlock(rx)
	case stateDownloadBlkEndReq:
		return s.rxDownloadBlockEnd(rx)
	case stateUploadBlkInitiateReq:
		return s.rxUploadBlockInitiate(rx)
	case stateUploadBlkInitiateReq2:
		if rx.raw[0] == 0xA3 {
			s.blockSequenceNb = 0
			s.state = stateUploadBlkSubblockSreq
			return nil
		}
		s.state = stateAbort
		return AbortCmd
	case stateUploadBlkSubblockSreq, stateUploadBlkSubblockCrsp:
		return s.rxUploadSubBlock(rx)
	default:
		s.state = stateAbort
		return AbortCmd
	}
}
