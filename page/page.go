// Package page implements the fixed-size slotted page format: the unit of
// persistence both table heaps and B+ tree nodes are built from. A page packs a fixed header, a growing slot directory, and a
// growing record region into exactly PageSize bytes.
package page

import (
	"encoding/binary"

	"github.com/zhukovaskychina/reldb-core/dbtype"
)

// PageSize is the compile-time page size.
const PageSize = 8192

// headerSize is the fixed width of the page header: lsn(8) + flags(4) +
// reserved(4) + freeSpaceStart(4) + freeSpaceEnd(4).
const headerSize = 24

// trailerSize is the width of the optional corruption-detecting checksum
// trailer (see Config.PageChecksums in package engine).
const trailerSize = 8

// NextLeafNone is the sentinel stored in a leaf page's "reserved" header
// field when it has no right sibling.
const NextLeafNone uint32 = 0xFFFFFFFF

// Flags bits.
const (
	FlagLeaf uint32 = 1 << iota
)

// Page is one slotted page: a header, a slot directory growing forward
// from the header, and a record region growing backward from the page's
// tail. buf always holds exactly capacity() bytes of live layout; when
// checksums are enabled the trailer is appended only by Serialize.
type Page struct {
	lsn            uint64
	flags          uint32
	reserved       uint32 // next-leaf pageno when FlagLeaf is set
	freeSpaceStart uint32 // one past the last used slot-directory byte
	freeSpaceEnd   uint32 // start of the lowest-address record currently stored

	slots   []Slot
	buf     []byte // length == capacity(); records are embedded in place
	useCRC  bool
}

// New returns an empty page. useCRC enables the optional checksum trailer.
func New(useCRC bool) *Page {
	p := &Page{useCRC: useCRC}
	p.buf = make([]byte, p.capacity())
	p.freeSpaceStart = headerSize
	p.freeSpaceEnd = uint32(p.capacity())
	return p
}

func (p *Page) capacity() int {
	if p.useCRC {
		return PageSize - trailerSize
	}
	return PageSize
}

// SetHeader stamps the page's lsn and flags — called by every heap
// mutation (and by undo/recovery) once its redo record's lsn is known;
// bptree calls it only when serializing, to set the leaf flag.
func (p *Page) SetHeader(lsn uint64, flags uint32) {
	p.lsn = lsn
	p.flags = flags
}

func (p *Page) LSN() uint64    { return p.lsn }
func (p *Page) Flags() uint32  { return p.flags }
func (p *Page) IsLeaf() bool   { return p.flags&FlagLeaf != 0 }
func (p *Page) NextLeaf() uint32 { return p.reserved }
func (p *Page) SetNextLeaf(pageno uint32) { p.reserved = pageno }
func (p *Page) SlotCount() int { return len(p.slots) }
func (p *Page) FreeSpace() int { return int(p.freeSpaceEnd) - int(p.freeSpaceStart) }

// IsDead reports whether sid exists and is tombstoned. An out-of-range
// sid is treated as dead: callers scanning past SlotCount should stop,
// but a location recorded before a page shrank (it never does) would
// otherwise need special-casing.
func (p *Page) IsDead(sid int) bool {
	if sid < 0 || sid >= len(p.slots) {
		return true
	}
	return p.slots[sid].IsDead()
}

// Insert appends record at the low end of the record region, appends a
// NORMAL slot pointing to it, and returns the new slot id. Returns
// ErrFull without mutating any state if the record plus a new slot
// directory entry would not fit.
func (p *Page) Insert(record []byte) (int, error) {
	need := slotSize + len(record)
	if p.FreeSpace() < need {
		return 0, newErr("insert", ErrFull)
	}
	newEnd := p.freeSpaceEnd - uint32(len(record))
	copy(p.buf[newEnd:p.freeSpaceEnd], record)
	p.slots = append(p.slots, Slot{Offset: uint64(newEnd), Length: uint64(len(record)), State: SlotNormal})
	p.freeSpaceEnd = newEnd
	p.freeSpaceStart += slotSize
	return len(p.slots) - 1, nil
}

// Select returns a copy of the bytes stored at sid, or nil if the slot is
// not NORMAL.
func (p *Page) Select(sid int) []byte {
	if sid < 0 || sid >= len(p.slots) {
		return nil
	}
	s := p.slots[sid]
	if !s.IsNormal() {
		return nil
	}
	out := make([]byte, s.Length)
	copy(out, p.buf[s.Offset:s.Offset+s.Length])
	return out
}

// Delete tombstones sid: it flips the slot's state to DEAD without
// reclaiming space, so its TID is never reused for a different record
// and secondary indexes pointing at it never need
// rewriting.
func (p *Page) Delete(sid int) error {
	if sid < 0 || sid >= len(p.slots) {
		return newErr("delete", ErrSlotNotFound)
	}
	if !p.slots[sid].IsNormal() {
		return newErr("delete", ErrSlotNotNormal)
	}
	p.slots[sid].State = SlotDead
	return nil
}

// Update overwrites sid's bytes in place when the new record fits within
// the slot's current length; otherwise it falls back to delete+insert and
// returns the new sid. Any failure in the compound path restores the
// original slot state.
func (p *Page) Update(sid int, record []byte) (int, error) {
	if sid < 0 || sid >= len(p.slots) {
		return 0, newErr("update", ErrSlotNotFound)
	}
	s := p.slots[sid]
	if !s.IsNormal() {
		return 0, newErr("update", ErrSlotNotNormal)
	}
	if uint64(len(record)) <= s.Length {
		copy(p.buf[s.Offset:s.Offset+uint64(len(record))], record)
		p.slots[sid].Length = uint64(len(record))
		return sid, nil
	}

	original := s
	p.slots[sid].State = SlotDead
	newSid, err := p.Insert(record)
	if err != nil {
		// Roll back the tombstone: the compound path failed, so the
		// original slot must still look untouched to the caller.
		p.slots[sid] = original
		return 0, err
	}
	return newSid, nil
}

// Undelete flips a DEAD slot back to NORMAL without touching its stored
// bytes, which Delete never erases. This is how the undo log reverses a
// TABLE_DELETE: the tombstoned record is still sitting in the record
// region at its original offset.
func (p *Page) Undelete(sid int) error {
	if sid < 0 || sid >= len(p.slots) {
		return newErr("undelete", ErrSlotNotFound)
	}
	if !p.slots[sid].IsDead() {
		return newErr("undelete", ErrSlotNotNormal)
	}
	p.slots[sid].State = SlotNormal
	return nil
}

// Reorganize physically compacts the record region: DEAD slots are
// dropped from storage and NORMAL records are repacked contiguously.
// Slot *indices* are preserved (TIDs stay valid for surviving records),
// only each surviving slot's Offset moves. This reorganize hook is left
// unspecified by callers; it is never invoked implicitly by
// insert/update/delete.
func (p *Page) Reorganize() {
	newBuf := make([]byte, p.capacity())
	end := uint32(p.capacity())
	for i, s := range p.slots {
		if !s.IsNormal() {
			continue
		}
		end -= uint32(s.Length)
		copy(newBuf[end:end+uint32(s.Length)], p.buf[s.Offset:s.Offset+s.Length])
		p.slots[i] = Slot{Offset: uint64(end), Length: s.Length, State: SlotNormal}
	}
	p.buf = newBuf
	p.freeSpaceEnd = end
}

// Serialize renders the page to exactly PageSize bytes: header, slot
// directory, record region, and (if enabled) a checksum trailer.
func (p *Page) Serialize() []byte {
	out := make([]byte, PageSize)
	binary.LittleEndian.PutUint64(out[0:8], p.lsn)
	binary.LittleEndian.PutUint32(out[8:12], p.flags)
	binary.LittleEndian.PutUint32(out[12:16], p.reserved)
	binary.LittleEndian.PutUint32(out[16:20], p.freeSpaceStart)
	binary.LittleEndian.PutUint32(out[20:24], p.freeSpaceEnd)

	off := headerSize
	for _, s := range p.slots {
		binary.LittleEndian.PutUint64(out[off:off+8], s.Offset)
		binary.LittleEndian.PutUint64(out[off+8:off+16], s.Length)
		binary.LittleEndian.PutUint64(out[off+16:off+24], uint64(s.State))
		off += slotSize
	}

	copy(out[p.freeSpaceEnd:p.capacity()], p.buf[p.freeSpaceEnd:])
	if p.useCRC {
		sum := dbtype.Checksum(out[:p.capacity()])
		binary.LittleEndian.PutUint64(out[p.capacity():PageSize], sum)
	}
	return out
}

// Deserialize parses PageSize bytes produced by Serialize. useCRC must
// match the value the page was serialized with.
func Deserialize(data []byte, useCRC bool) (*Page, error) {
	if len(data) != PageSize {
		return nil, newErr("deserialize", ErrInvalidPageSize)
	}
	p := New(useCRC)
	if useCRC {
		want := binary.LittleEndian.Uint64(data[p.capacity():PageSize])
		got := dbtype.Checksum(data[:p.capacity()])
		if want != got {
			return nil, newErr("deserialize", ErrPageCorrupted)
		}
	}

	p.lsn = binary.LittleEndian.Uint64(data[0:8])
	p.flags = binary.LittleEndian.Uint32(data[8:12])
	p.reserved = binary.LittleEndian.Uint32(data[12:16])
	p.freeSpaceStart = binary.LittleEndian.Uint32(data[16:20])
	p.freeSpaceEnd = binary.LittleEndian.Uint32(data[20:24])

	numSlots := (int(p.freeSpaceStart) - headerSize) / slotSize
	p.slots = make([]Slot, 0, numSlots)
	off := headerSize
	for i := 0; i < numSlots; i++ {
		s := Slot{
			Offset: binary.LittleEndian.Uint64(data[off : off+8]),
			Length: binary.LittleEndian.Uint64(data[off+8 : off+16]),
			State:  SlotState(binary.LittleEndian.Uint64(data[off+16 : off+24])),
		}
		p.slots = append(p.slots, s)
		off += slotSize
	}

	copy(p.buf[headerSize:], data[headerSize:p.capacity()])
	return p, nil
}
