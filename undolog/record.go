package undolog

import (
	"encoding/binary"
	"fmt"

	"github.com/zhukovaskychina/reldb-core/redolog"
)

// Record is one undo log entry: (xid, operation, relation, location, data),
// where operation carries the inverse intention of the mutation it undoes
// — e.g. a TABLE_INSERT is undone by a TABLE_DELETE record.
// Start/commit/abort append sentinel records using the matching redolog
// Action.
type Record struct {
	Xid      int64
	Action   redolog.Action
	Relation string
	Location *redolog.Location
	Data     []byte
}

func (r Record) encode() []byte {
	buf := make([]byte, 0, 32+len(r.Data)+len(r.Relation))

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
	binary.LittleEndian.PutUint32(dl[:], uint32(len(r.Data)))
	buf = append(buf, dl[:]...)
	buf = append(buf, r.Data...)

	return buf
}

func decodeRecord(b []byte) (Record, int, error) {
	orig := len(b)
	if len(b) < 9 {
		return Record{}, 0, fmt.Errorf("undolog: truncated record header")
	}
	var r Record
	r.Xid = int64(binary.LittleEndian.Uint64(b[0:8]))
	r.Action = redolog.Action(b[8])
	b = b[9:]

	if len(b) < 1 {
		return Record{}, 0, fmt.Errorf("undolog: truncated relation flag")
	}
	hasRelation := b[0] != 0
	b = b[1:]
	if hasRelation {
		if len(b) < 2 {
			return Record{}, 0, fmt.Errorf("undolog: truncated relation length")
		}
		n := int(binary.LittleEndian.Uint16(b[0:2]))
		b = b[2:]
		if len(b) < n {
			return Record{}, 0, fmt.Errorf("undolog: truncated relation")
		}
		r.Relation = string(b[:n])
		b = b[n:]
	}

	if len(b) < 1 {
		return Record{}, 0, fmt.Errorf("undolog: truncated location flag")
	}
	hasLocation := b[0] != 0
	b = b[1:]
	if hasLocation {
		if len(b) < 8 {
			return Record{}, 0, fmt.Errorf("undolog: truncated location")
		}
		r.Location = &redolog.Location{
			PageNo: binary.LittleEndian.Uint32(b[0:4]),
			Sid:    binary.LittleEndian.Uint32(b[4:8]),
		}
		b = b[8:]
	}

	if len(b) < 4 {
		return Record{}, 0, fmt.Errorf("undolog: truncated data length")
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	b = b[4:]
	if len(b) < n {
		return Record{}, 0, fmt.Errorf("undolog: truncated data")
	}
	r.Data = append([]byte(nil), b[:n]...)
	b = b[n:]

	return r, orig - len(b), nil
}
