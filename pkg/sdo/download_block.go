package sdo

import (
	"fmt"

	"github.com/libcanopen/canopen/internal/crc"
	"github.com/libcanopen/canopen/pkg/od"
)

// rxDownloadBlockInitiate validates the announced transfer size (if any)
// against the object dictionary entry's declared size before entering
// block-mode download.
func (s *SDOServer) rxDownloadBlockInitiate(rx SDOMessage) error {
	s.blockCRCEnabled = rx.IsCRCEnabled()
	s.sizeIndicated = 0 // TODO: should this be reset on every state entry instead?

	if rx.IsSizeIndicatedBlock() {
		sizeInOd := s.streamer.DataLength
		s.sizeIndicated = rx.SizeIndicated()
		if sizeInOd > 0 {
			if s.sizeIndicated > sizeInOd {
				return AbortDataLong
			} else if s.sizeIndicated < sizeInOd && !s.streamer.HasAttribute(od.AttributeStr) {
				return AbortDataShort
			}
		}
	}

	s.logTransfer("[RX] block download init", rx.raw, "crc", s.blockCRCEnabled, "expectedSize", s.sizeIndicated)
	s.state = stateDownloadBlkInitiateRsp
	s.finished = false
	return nil
}

// rxDownloadBlockSubBlock consumes one sub-segment of a block download,
// tolerating duplicate or out-of-order segments per CiA 301's block
// transfer retry rules.
func (s *SDOServer) rxDownloadBlockSubBlock(rx SDOMessage) error {
	seqno := rx.Seqno()

	if seqno <= s.blockSize && seqno == s.blockSequenceNb+1 {
		s.buf.Write(rx.raw[1:])
		s.blockSequenceNb = seqno
		s.sizeTransferred += BlockSeqSize

		if !rx.SegmentRemaining() {
			s.finished = true
			s.state = stateDownloadBlkSubblockRsp
			s.logTransfer("[RX] block download end", rx.raw)
			return nil
		}
		if seqno == s.blockSize {
			s.state = stateDownloadBlkSubblockRsp
		}
		s.logTransfer("[RX] block download sub-block", rx.raw)
		return nil
	}

	// Duplicate segments and segments before the sequence has started are
	// silently dropped; anything else is a genuine sequence error.
	if seqno != s.blockSequenceNb && s.blockSequenceNb != 0 {
		s.state = stateDownloadBlkSubblockRsp
		s.logTransfer("[RX] block download sub-block: wrong sequence number", rx.raw,
			"got", seqno, "previous", s.blockSequenceNb)
		return nil
	}

	// The client may keep sending frames before it learns of an earlier
	// error; ignore them rather than compounding the failure.
	s.logTransfer("[RX] block download sub-block: ignoring", rx.raw,
		"got", seqno, "expecting", s.blockSequenceNb+1)
	return nil
}

func (s *SDOServer) rxDownloadBlockEnd(rx SDOMessage) error {
	s.logTransfer("[RX] block download end", rx.raw)
	if rx.raw[0]&0xE3 != 0xC1 {
		return AbortCmd
	}

	// Bytes in the last segment beyond the real data are padding; trim them.
	noData := (rx.raw[0] >> 2) & 0x07
	if uint32(s.buf.Len()) <= uint32(noData) {
		s.errorExtraInfo = fmt.Errorf("internal buffer and end of block download are inconsitent")
		return AbortDeviceIncompat
	}
	s.sizeTransferred -= uint32(noData)
	s.buf.Truncate(s.buf.Len() - int(noData))

	var crcClient crc.CRC16
	if s.blockCRCEnabled {
		crcClient = rx.GetCRCClient()
	}
	if err := s.writeObjectDictionary(2, crcClient); err != nil {
		return err
	}
	s.state = stateDownloadBlkEndRsp
	return nil
}

func (s *SDOServer) txDownloadBlockInitiate() {
	s.txBuffer.Data[0] = 0xA4
	s.txBuffer.Data[1] = byte(s.index)
	s.txBuffer.Data[2] = byte(s.index >> 8)
	s.txBuffer.Data[3] = s.subindex

	s.sizeTransferred = 0
	s.finished = false
	s.buf.Reset()
	s.blockSequenceNb = 0
	s.blockCRC = crc.CRC16(0)

	s.blockSize = uint8(min((s.buf.Available()-2)/BlockSeqSize, BlockMaxSize))
	s.txBuffer.Data[4] = s.blockSize

	s.state = stateDownloadBlkSubblockReq
	s.logTransfer("[TX] block download init", s.txBuffer.Data)
	s.Send(s.txBuffer)
}

func (s *SDOServer) txDownloadBlockSubBlock() error {
	s.txBuffer.Data[0] = 0xA2
	s.txBuffer.Data[1] = s.blockSequenceNb
	s.txBuffer.Data[2] = s.blockSize

	retransmit := s.blockSequenceNb != s.blockSize
	seqnoStart := s.blockSequenceNb

	if s.finished {
		s.state = stateDownloadBlkEndReq
		s.Send(s.txBuffer)
		s.logTransfer("[TX] block download sub-block res", s.txBuffer.Data, "blksize", s.blockSize)
		return nil
	}

	// Determine the next sub-block size from free buffer space; if there
	// isn't enough, flush once to the object dictionary first.
	count := s.buf.Available()
	if count > BlockMaxSize {
		count = BlockMaxSize
	} else if s.buf.Len() > 0 {
		if err := s.writeObjectDictionary(1, 0); err != nil {
			return err
		}
		count = min(s.buf.Available(), BlockMaxSize)
	}

	s.blockSize = uint8(count)
	s.blockSequenceNb = 0
	s.txBuffer.Data[2] = s.blockSize
	s.state = stateDownloadBlkSubblockReq
	s.Send(s.txBuffer)

	if retransmit {
		s.logger.Debug("[TX] block download restart", "seqnoPrev", seqnoStart, "blksize", s.blockSize)
		return nil
	}
	s.logTransfer("[TX] block download sub-block res", s.txBuffer.Data, "blksize", s.blockSize)
	return nil
}

func (s *SDOServer) txDownloadBlockEnd() {
	s.txBuffer.Data[0] = 0xA1
	s.logTransfer("[TX] block download end", s.txBuffer.Data)
	s.Send(s.txBuffer)
	s.state = stateIdle
}
