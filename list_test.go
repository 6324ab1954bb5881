package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDlistPushFrontBack(t *testing.T) {
	var l dlist[int]
	a, b, c := newNode(1), newNode(2), newNode(3)

	require.True(t, l.push(a, Tail))
	require.True(t, l.push(b, Tail))
	require.True(t, l.push(c, Head))

	got := []int{}
	l.iterate(func(n *node[int]) bool {
		got = append(got, n.value)
		return true
	})
	assert.Equal(t, []int{3, 1, 2}, got)
	assert.Equal(t, 3, l.Len())
}

func TestDlistPushRejectsDuplicate(t *testing.T) {
	var l dlist[int]
	n := newNode(1)
	require.True(t, l.push(n, Tail))
	assert.False(t, l.push(n, Tail))
	assert.Equal(t, 1, l.Len())
}

func TestDlistRemoveMiddle(t *testing.T) {
	var l dlist[int]
	a, b, c := newNode(1), newNode(2), newNode(3)
	l.push(a, Tail)
	l.push(b, Tail)
	l.push(c, Tail)

	require.True(t, l.remove(b))
	assert.Nil(t, b.list)

	got := []int{}
	l.iterate(func(n *node[int]) bool {
		got = append(got, n.value)
		return true
	})
	assert.Equal(t, []int{1, 3}, got)
}

func TestDlistRemoveNotMember(t *testing.T) {
	var l1, l2 dlist[int]
	n := newNode(1)
	l1.push(n, Tail)
	assert.False(t, l2.remove(n))
	assert.Equal(t, 1, l1.Len())
}

func TestDlistPopFront(t *testing.T) {
	var l dlist[string]
	l.push(newNode("a"), Tail)
	l.push(newNode("b"), Tail)

	v, ok := l.popFront()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, l.Len())

	v, ok = l.popFront()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = l.popFront()
	assert.False(t, ok)
}

func TestDlistIterateSurvivesRemoval(t *testing.T) {
	var l dlist[int]
	a, b, c := newNode(1), newNode(2), newNode(3)
	l.push(a, Tail)
	l.push(b, Tail)
	l.push(c, Tail)

	var got []int
	l.iterate(func(n *node[int]) bool {
		got = append(got, n.value)
		if n.value == 2 {
			l.remove(n)
		}
		return true
	})
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 2, l.Len())
}

// TestDlistInsertSortedOrdering mirrors byPriorityFIFO's usage: lower
// values sort first, equal values keep arrival order.
func TestDlistInsertSortedOrdering(t *testing.T) {
	var l dlist[int]
	less := func(cur, n *node[int]) bool {
		if cur == nil {
			return false
		}
		return cur.value <= n.value
	}
	for _, v := range []int{5, 1, 3, 1, 0} {
		l.insertSorted(newNode(v), less)
	}
	var got []int
	l.iterate(func(n *node[int]) bool {
		got = append(got, n.value)
		return true
	})
	assert.Equal(t, []int{0, 1, 1, 3, 5}, got)
}

func TestDlistFront(t *testing.T) {
	var l dlist[int]
	_, ok := l.front()
	assert.False(t, ok)

	l.push(newNode(7), Tail)
	l.push(newNode(8), Tail)
	front, ok := l.front()
	require.True(t, ok)
	assert.Equal(t, 7, front.value)
}
