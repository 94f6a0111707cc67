package fifo

import "github.com/libcanopen/canopen/internal/crc"

// Fifo is a circular byte buffer used by SDO block transfers to decouple
// bus I/O from the CRC/reassembly logic. In addition to the usual
// read/write cursor it keeps an "alt" cursor (AltBegin/AltRead/AltFinish)
// that can scan ahead of the real read position without consuming data,
// used to retransmit a previously sent sub-block on request.
type Fifo struct {
	buffer     []byte
	writePos   int
	readPos    int
	altReadPos int
	started    bool
	aux        int
}

func NewFifo(size uint16) *Fifo {
	return &Fifo{buffer: make([]byte, size)}
}

func (f *Fifo) Reset() {
	f.readPos = 0
	f.writePos = 0
	f.started = false
}

// wrap advances pos by one slot, wrapping to 0 at the buffer's end.
func (f *Fifo) wrap(pos int) int {
	pos++
	if pos == len(f.buffer) {
		return 0
	}
	return pos
}

// span returns the circular distance from `from` forward to `to`.
func (f *Fifo) span(from, to int) int {
	d := to - from
	if d < 0 {
		d += len(f.buffer)
	}
	return d
}

func (f *Fifo) GetSpace() int {
	return f.span(f.writePos, f.readPos) - 1
}

func (f *Fifo) GetOccupied() int {
	return f.span(f.readPos, f.writePos)
}

// Write copies as much of buffer as fits without overrunning the read
// cursor, optionally folding each written byte into crc, and returns the
// number of bytes actually written.
func (f *Fifo) Write(buffer []byte, crc *crc.CRC16) int {
	if buffer == nil {
		return 0
	}
	written := 0
	for _, b := range buffer {
		next := f.wrap(f.writePos)
		if next == f.readPos {
			break
		}
		f.buffer[f.writePos] = b
		if crc != nil {
			crc.Single(b)
		}
		f.writePos = next
		written++
	}
	return written
}

// Read copies up to len(buffer) unread bytes out, returning the count
// actually read. eof, if non-nil, is always set to false: the fifo has
// no end-of-stream concept of its own.
func (f *Fifo) Read(buffer []byte, eof *bool) int {
	if buffer == nil {
		return 0
	}
	if eof != nil {
		*eof = false
	}
	read := 0
	for read < len(buffer) && f.readPos != f.writePos {
		buffer[read] = f.buffer[f.readPos]
		f.readPos = f.wrap(f.readPos)
		read++
	}
	return read
}

// AltBegin positions the alt cursor offset slots ahead of the real read
// cursor (stopping early if it would pass the write cursor), returning
// how many slots it actually moved.
func (f *Fifo) AltBegin(offset int) int {
	f.altReadPos = f.readPos
	moved := 0
	for ; moved < offset; moved++ {
		if f.altReadPos == f.writePos {
			break
		}
		f.altReadPos = f.wrap(f.altReadPos)
	}
	return moved
}

// AltFinish commits the alt cursor as the new read cursor. If crc is
// given, every byte between the old and new read position is folded in
// first (the alt scan having skipped past it without consuming it).
func (f *Fifo) AltFinish(crc *crc.CRC16) {
	if crc == nil {
		f.readPos = f.altReadPos
		return
	}
	for f.readPos != f.altReadPos {
		crc.Single(f.buffer[f.readPos])
		f.readPos = f.wrap(f.readPos)
	}
}

// AltRead reads from the alt cursor without advancing the real read
// cursor, letting a caller peek ahead before deciding to AltFinish.
func (f *Fifo) AltRead(buffer []byte) int {
	read := 0
	for read < len(buffer) && f.altReadPos != f.writePos {
		buffer[read] = f.buffer[f.altReadPos]
		f.altReadPos = f.wrap(f.altReadPos)
		read++
	}
	return read
}

func (f *Fifo) AltGetOccupied() int {
	return f.span(f.altReadPos, f.writePos)
}
