package sdo

import (
	"encoding/binary"

	"github.com/libcanopen/canopen/internal/crc"
)

// rxUploadBlockInitiate handles a block upload initiate request,
// possibly falling back to a plain (non-block) upload if the client's
// protocol switch threshold says so.
func (s *SDOServer) rxUploadBlockInitiate(rx SDOMessage) error {
	if s.sizeIndicated > 0 && rx.raw[5] > 0 && uint32(rx.raw[5]) >= s.sizeIndicated {
		return s.rxUploadInitiate(rx)
	}

	s.blockCRCEnabled = rx.raw[0]&0x04 != 0
	if s.blockCRCEnabled {
		s.blockCRC = crc.CRC16(0)
		s.blockCRC.Block(s.buf.Bytes())
	}

	s.blockSize = rx.GetBlockSize()
	s.logTransfer("[RX] block init req", rx.raw, "crc", s.blockCRCEnabled, "blksize", s.blockSize)
	if s.blockSize < 1 || s.blockSize > BlockMaxSize {
		return AbortBlockSize
	}
	if !s.finished && uint32(s.buf.Len()) < uint32(s.blockSize)*BlockSeqSize {
		return AbortBlockSize
	}
	s.state = stateUploadBlkInitiateRsp
	return nil
}

// rxUploadSubBlock processes the client's per-sub-block acknowledgement,
// rewinding and retransmitting any segments the client didn't receive.
func (s *SDOServer) rxUploadSubBlock(rx SDOMessage) error {
	if rx.raw[0] != 0xA2 {
		return AbortCmd
	}
	ackseq := rx.raw[1]
	s.logTransfer("[RX] block upload sub-block req", rx.raw,
		"blksize", rx.raw[2], "ackseq", ackseq, "seqno", s.blockSequenceNb)

	s.blockSize = rx.raw[2]
	if s.blockSize < 1 || s.blockSize > BlockMaxSize {
		return AbortBlockSize
	}

	if ackseq > s.blockSequenceNb {
		s.logger.Debug("[RX] client acked more than sent, will abort")
		return AbortCmd
	}

	if ackseq < s.blockSequenceNb {
		// Rewind to the last acknowledged packet. Data not yet consumed by
		// the client may still sit in the buffer, so it must be cleared first.
		nbFailed := uint32(s.blockSize-ackseq)*BlockSeqSize - uint32(s.blockNoData)
		nbPending := uint32(s.buf.Len())
		s.sizeTransferred -= nbFailed
		s.logger.Debug("client acked less than sent, will rewind & retransmit",
			"nBytes", nbFailed+nbPending,
			"nbFailed", nbFailed,
			"nbPending", nbPending,
		)
		s.streamer.DataOffset -= nbFailed + nbPending
		s.buf.Reset()

		// Refill with the exact previous size so the running CRC, already
		// computed for this range, is not recalculated.
		if err := s.readObjectDictionary(nbFailed+nbPending, int(nbPending+nbFailed), false); err != nil {
			return err
		}
	}

	if err := s.readObjectDictionary(uint32(s.blockSize)*BlockSeqSize, -1, true); err != nil {
		return err
	}

	if s.buf.Len() == 0 {
		s.state = stateUploadBlkEndSreq
		return nil
	}
	s.blockSequenceNb = 0
	s.state = stateUploadBlkSubblockSreq
	return nil
}

func (s *SDOServer) txUploadBlockInitiate() {
	s.txBuffer.Data[0] = 0xC4
	s.txBuffer.Data[1] = byte(s.index)
	s.txBuffer.Data[2] = byte(s.index >> 8)
	s.txBuffer.Data[3] = s.subindex
	if s.sizeIndicated > 0 {
		s.txBuffer.Data[0] |= 0x02
		binary.LittleEndian.PutUint32(s.txBuffer.Data[4:], s.sizeIndicated)
	}

	s.logTransfer("[TX] block upload init resp", s.txBuffer.Data)
	s.Send(s.txBuffer)
	s.state = stateUploadBlkInitiateReq2
}

func (s *SDOServer) txUploadBlockSubBlock() error {
	s.blockSequenceNb++
	s.txBuffer.Data[0] = s.blockSequenceNb

	unread := s.buf.Len()
	isLast := unread < BlockSeqSize || (s.finished && unread == BlockSeqSize)
	if isLast {
		s.txBuffer.Data[0] |= 0x80
	} else {
		unread = BlockSeqSize
	}
	s.buf.Read(s.txBuffer.Data[1 : 1+unread])

	s.blockNoData = byte(BlockSeqSize - unread)
	s.sizeTransferred += uint32(unread)

	if s.sizeIndicated > 0 {
		if s.sizeTransferred > s.sizeIndicated {
			return AbortDataLong
		} else if s.buf.Len() == 0 && s.sizeTransferred < s.sizeIndicated {
			return AbortDataShort
		}
	}

	if s.buf.Len() == 0 || s.blockSequenceNb >= s.blockSize {
		s.state = stateUploadBlkSubblockCrsp
		s.logTransfer("[TX] block upload sub-block end req", s.txBuffer.Data)
	} else {
		s.logTransfer("[TX] block upload sub-block segment", s.txBuffer.Data)
	}
	s.Send(s.txBuffer)
	return nil
}

func (s *SDOServer) txUploadBlockEnd() {
	s.txBuffer.Data[0] = 0xC1 | s.blockNoData<<2
	s.txBuffer.Data[1] = byte(s.blockCRC)
	s.txBuffer.Data[2] = byte(s.blockCRC >> 8)
	s.logTransfer("[TX] block upload end resp", s.txBuffer.Data, "size", s.sizeTransferred, "crc", s.blockCRC)
	s.Send(s.txBuffer)
	s.state = stateUploadBlkEndCrsp
}
