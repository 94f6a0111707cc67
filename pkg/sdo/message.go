package sdo

import (
	"encoding/binary"

	"github.com/libcanopen/canopen/internal/crc"
)

// SDOMessage wraps a raw 8 byte SDO CAN frame received by an [SDOServer].
// It mirrors [SDOResponse] (the client side counterpart) but exposes the
// fields relevant to decoding a request sent by a client.
type SDOMessage struct {
	raw [8]byte
}

func (rx SDOMessage) GetIndex() uint16 {
	return binary.LittleEndian.Uint16(rx.raw[1:3])
}

func (rx SDOMessage) GetSubindex() uint8 {
	return rx.raw[3]
}

func (rx SDOMessage) GetToggle() uint8 {
	return rx.raw[0] & 0x10
}

func (rx SDOMessage) GetBlockSize() uint8 {
	return rx.raw[4]
}

func (rx SDOMessage) GetCRCClient() crc.CRC16 {
	return crc.CRC16(binary.LittleEndian.Uint16(rx.raw[1:3]))
}

// IsExpedited reports whether a download initiate request carries its data
// inline in the request (<=4 bytes) rather than as a segmented transfer.
func (rx SDOMessage) IsExpedited() bool {
	return (rx.raw[0] & 0x02) != 0
}

// IsSizeIndicated reports whether a non block initiate request carries the
// total transfer size in bytes 4-7.
func (rx SDOMessage) IsSizeIndicated() bool {
	return (rx.raw[0] & 0x01) != 0
}

// IsSizeIndicatedBlock is the block transfer equivalent of IsSizeIndicated,
// the size indicated flag sits on the same bit as the expedited flag above.
func (rx SDOMessage) IsSizeIndicatedBlock() bool {
	return (rx.raw[0] & 0x02) != 0
}

// SizeIndicated returns the indicated transfer size carried in bytes 4-7.
func (rx SDOMessage) SizeIndicated() uint32 {
	return binary.LittleEndian.Uint32(rx.raw[4:])
}

func (rx SDOMessage) IsCRCEnabled() bool {
	return (rx.raw[0] & 0x04) != 0
}

// Seqno returns the block transfer sub-segment sequence number.
func (rx SDOMessage) Seqno() uint8 {
	return rx.raw[0] & 0x7F
}

// SegmentRemaining reports whether more sub-segments are expected after
// this one in the current block transfer sub-block.
func (rx SDOMessage) SegmentRemaining() bool {
	return (rx.raw[0] & 0x80) == 0
}

func (rx SDOMessage) IsAbort() bool {
	return rx.raw[0] == 0x80
}

func (rx SDOMessage) GetAbortCode() SDOAbortCode {
	return SDOAbortCode(binary.LittleEndian.Uint32(rx.raw[4:]))
}
