package redolog

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// Action tags a redo record's intent.
type Action byte

const (
	ActionBegin Action = iota
	ActionCommit
	ActionAbort
	ActionTableInsert
	ActionTableDelete
	ActionTableUpdate
	ActionIndexInsert
	ActionIndexDelete
	ActionIndexUpdate
	ActionCheckpoint
)

func (a Action) String() string {
	switch a {
	case ActionBegin:
		return "BEGIN"
	case ActionCommit:
		return "COMMIT"
	case ActionAbort:
		return "ABORT"
	case ActionTableInsert:
		return "TABLE_INSERT"
	case ActionTableDelete:
		return "TABLE_DELETE"
	case ActionTableUpdate:
		return "TABLE_UPDATE"
	case ActionIndexInsert:
		return "INDEX_INSERT"
	case ActionIndexDelete:
		return "INDEX_DELETE"
	case ActionIndexUpdate:
		return "INDEX_UPDATE"
	case ActionCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

// Location is a table/index TID: (pageno, sid).
type Location struct {
	PageNo uint32
	Sid    uint32
}

// Record is one redo log entry: xid, action, an optional relation name,
// an optional location, and a data payload.
type Record struct {
	Xid      int64
	Action   Action
	Relation string // empty means "no relation" (e.g. BEGIN/COMMIT/ABORT/CHECKPOINT)
	Location *Location
	Data     []byte
}

// encode renders the record's payload (everything after the 8-byte
// content-size framing prefix): xid, action, an optional relation, an
// optional location, and length-prefixed data. Data is snappy-compressed
// before framing — most records carry a full encoded tuple, and those
// compress well.
func (r Record) encode() []byte {
	data := snappy.Encode(nil, r.Data)
	buf := make([]byte, 0, 32+len(data)+len(r.Relation))

	var hdr [9]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(r.Xid))
	hdr[8] = byte(r.Action)
	buf = append(buf, hdr[:]...)

	if r.Relation == "" {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(len(r.Relation)))
		buf = append(buf, l[:]...)
		buf = append(buf, r.Relation...)
	}

	if r.Location == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		var loc [8]byte
		binary.LittleEndian.PutUint32(loc[0:4], r.Location.PageNo)
		binary.LittleEndian.PutUint32(loc[4:8], r.Location.Sid)
		buf = append(buf, loc[:]...)
	}

	var dl [4]byte
	binary.LittleEndian.PutUint32(dl[:], uint32(len(data)))
	buf = append(buf, dl[:]...)
	buf = append(buf, data...)

	return buf
}

// decodeRecord is the inverse of encode.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < 9 {
		return Record{}, fmt.Errorf("redolog: truncated record header")
	}
	var r Record
	r.Xid = int64(binary.LittleEndian.Uint64(b[0:8]))
	r.Action = Action(b[8])
	b = b[9:]

	if len(b) < 1 {
		return Record{}, fmt.Errorf("redolog: truncated relation flag")
	}
	hasRelation := b[0] != 0
	b = b[1:]
	if hasRelation {
		if len(b) < 2 {
			return Record{}, fmt.Errorf("redolog: truncated relation length")
		}
		n := int(binary.LittleEndian.Uint16(b[0:2]))
		b = b[2:]
		if len(b) < n {
			return Record{}, fmt.Errorf("redolog: truncated relation")
		}
		r.Relation = string(b[:n])
		b = b[n:]
	}

	if len(b) < 1 {
		return Record{}, fmt.Errorf("redolog: truncated location flag")
	}
	hasLocation := b[0] != 0
	b = b[1:]
	if hasLocation {
		if len(b) < 8 {
			return Record{}, fmt.Errorf("redolog: truncated location")
		}
		r.Location = &Location{
			PageNo: binary.LittleEndian.Uint32(b[0:4]),
			Sid:    binary.LittleEndian.Uint32(b[4:8]),
		}
		b = b[8:]
	}

	if len(b) < 4 {
		return Record{}, fmt.Errorf("redolog: truncated data length")
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	b = b[4:]
	if len(b) < n {
		return Record{}, fmt.Errorf("redolog: truncated data")
	}
	data, err := snappy.Decode(nil, b[:n])
	if err != nil {
		return Record{}, fmt.Errorf("redolog: corrupt compressed data: %w", err)
	}
	r.Data = data
	return r, nil
}
