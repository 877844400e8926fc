package dbtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCompareNullOrdering(t *testing.T) {
	assert.True(t, Null().Compare(Int64(1)) < 0)
	assert.True(t, Int64(1).Compare(Null()) > 0)
	assert.Equal(t, 0, Null().Compare(Null()))
}

func TestValueCompareSameKind(t *testing.T) {
	assert.True(t, Int64(1).Compare(Int64(2)) < 0)
	assert.True(t, Text("a").Compare(Text("b")) < 0)
	assert.True(t, Bool(false).Compare(Bool(true)) < 0)
}

func TestTupleCompareLexicographic(t *testing.T) {
	a := Tuple{Int64(1), Text("a")}
	b := Tuple{Int64(1), Text("b")}
	c := Tuple{Int64(2), Text("a")}
	assert.True(t, a.Compare(b) < 0)
	assert.True(t, a.Compare(c) < 0)
	assert.Equal(t, 0, a.Compare(Tuple{Int64(1), Text("a")}))
}

func TestKeySentinelsOrderOutsideAnyTuple(t *testing.T) {
	mid := NewKey(Int64(42))
	assert.True(t, NegInf().Less(mid))
	assert.True(t, mid.Less(PosInf()))
	assert.True(t, NegInf().Less(PosInf()))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{Null(), Int64(-7), Text("hello"), Bool(true)}
	for _, v := range values {
		b := Encode(v)
		decoded, used, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, len(b), used)
		assert.True(t, v.Equal(decoded))
	}
}

func TestEncodeDecodeTupleRoundTrip(t *testing.T) {
	tup := Tuple{Int64(1), Text("x"), Null(), Bool(false)}
	b := EncodeTuple(tup)
	decoded, err := DecodeTuple(b)
	require.NoError(t, err)
	require.Len(t, decoded, len(tup))
	for i := range tup {
		assert.True(t, tup[i].Equal(decoded[i]))
	}
}
