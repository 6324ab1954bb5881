package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPacking(t *testing.T) {
	id := makeID(KindSemaphore, 3)
	assert.Equal(t, KindSemaphore, id.Kind())
	assert.Equal(t, 3, id.index())
	assert.True(t, id.IsValid())

	assert.False(t, InvalidID.IsValid())
}

func TestTableAllocateExhaustion(t *testing.T) {
	tbl := newTable[int](KindQueue, 2)

	id0, obj0, ok := tbl.allocate()
	require.True(t, ok)
	*obj0 = 10
	assert.Equal(t, 0, id0.index())

	id1, obj1, ok := tbl.allocate()
	require.True(t, ok)
	*obj1 = 20
	assert.NotEqual(t, id0, id1)

	_, _, ok = tbl.allocate()
	assert.False(t, ok)
	assert.Equal(t, 2, tbl.len())
	assert.Equal(t, 2, tbl.cap())
}

func TestTableAtWrongKind(t *testing.T) {
	tbl := newTable[int](KindQueue, 1)
	id, _, ok := tbl.allocate()
	require.True(t, ok)

	_, ok = tbl.at(makeID(KindPool, id.index()))
	assert.False(t, ok)

	_, ok = tbl.at(id)
	assert.True(t, ok)
}

func TestTableAtOutOfRange(t *testing.T) {
	tbl := newTable[int](KindPool, 2)
	_, _, ok := tbl.allocate()
	require.True(t, ok)

	_, ok = tbl.at(makeID(KindPool, 1))
	assert.False(t, ok, "index 1 was never allocated")
}

func TestTableForEach(t *testing.T) {
	tbl := newTable[string](KindThread, 3)
	for i, v := range []string{"a", "b", "c"} {
		_, obj, ok := tbl.allocate()
		require.True(t, ok)
		*obj = v
		_ = i
	}

	var got []string
	tbl.forEach(func(id ID, obj *string) bool {
		got = append(got, *obj)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestTableForEachStopsEarly(t *testing.T) {
	tbl := newTable[int](KindThread, 5)
	for i := 0; i < 5; i++ {
		_, obj, _ := tbl.allocate()
		*obj = i
	}
	var seen int
	tbl.forEach(func(id ID, obj *int) bool {
		seen++
		return *obj != 2
	})
	assert.Equal(t, 3, seen)
}
