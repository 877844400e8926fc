package page

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSelectRoundTrip(t *testing.T) {
	p := New(false)
	sid, err := p.Insert([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), p.Select(sid))
}

func TestDeleteTombstonesSlot(t *testing.T) {
	p := New(false)
	sid, err := p.Insert([]byte("row"))
	require.NoError(t, err)
	require.NoError(t, p.Delete(sid))
	assert.Nil(t, p.Select(sid))
	// Deleting twice is an error, not a silent success.
	assert.Error(t, p.Delete(sid))
}

func TestUpdateInPlaceWhenItFits(t *testing.T) {
	p := New(false)
	sid, err := p.Insert([]byte("0123456789"))
	require.NoError(t, err)
	newSid, err := p.Update(sid, []byte("short"))
	require.NoError(t, err)
	assert.Equal(t, sid, newSid, "in-place update keeps the same TID")
	assert.Equal(t, []byte("short"), p.Select(sid))
}

func TestUpdateRelocatesWhenRecordGrows(t *testing.T) {
	p := New(false)
	sid, err := p.Insert([]byte("x"))
	require.NoError(t, err)
	newSid, err := p.Update(sid, bytes.Repeat([]byte("y"), 64))
	require.NoError(t, err)
	assert.NotEqual(t, sid, newSid)
	assert.Nil(t, p.Select(sid), "old slot is tombstoned")
	assert.Equal(t, bytes.Repeat([]byte("y"), 64), p.Select(newSid))
}

func TestInsertFullLeavesNoStateMutated(t *testing.T) {
	p := New(false)
	before := p.FreeSpace()
	big := bytes.Repeat([]byte("z"), p.capacity())
	_, err := p.Insert(big)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, before, p.FreeSpace())
	assert.Equal(t, 0, p.SlotCount())
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	p := New(true)
	p.SetHeader(42, FlagLeaf)
	p.SetNextLeaf(7)
	s1, _ := p.Insert([]byte("alpha"))
	s2, _ := p.Insert([]byte("beta"))
	require.NoError(t, p.Delete(s1))

	data := p.Serialize()
	require.Len(t, data, PageSize)

	got, err := Deserialize(data, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.LSN())
	assert.True(t, got.IsLeaf())
	assert.Equal(t, uint32(7), got.NextLeaf())
	assert.Nil(t, got.Select(s1))
	assert.Equal(t, []byte("beta"), got.Select(s2))
}

func TestDeserializeDetectsCorruption(t *testing.T) {
	p := New(true)
	p.Insert([]byte("payload"))
	data := p.Serialize()
	data[100] ^= 0xFF // flip a byte inside the checksummed region

	_, err := Deserialize(data, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageCorrupted)
}

func TestDeserializeRejectsWrongSize(t *testing.T) {
	_, err := Deserialize(make([]byte, PageSize-1), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
}
