package lmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chainOf(n int) *Entry {
	var head *Entry
	for i := n - 1; i >= 0; i-- {
		head = &Entry{SnapSeq: uint32(i), Offset: int64(i), PrevSnap: head}
	}
	// Re-link so SnapSeq descends from head, matching the spec's ordering
	// invariant (head has the highest SnapSeq).
	entries := make([]*Entry, 0, n)
	for e := head; e != nil; e = e.PrevSnap {
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for i := range entries {
		if i+1 < len(entries) {
			entries[i].PrevSnap = entries[i+1]
		} else {
			entries[i].PrevSnap = nil
		}
	}
	return entries[0]
}

func TestDeleteMatchingRemovesExactCountAndKeepsOrder(t *testing.T) {
	head := chainOf(6) // SnapSeq 5,4,3,2,1,0 head to tail

	var released []int64
	match := func(e *Entry) bool { return e.SnapSeq%2 == 0 } // removes 4,2,0

	DeleteMatching(&head, match, func(e *Entry) {
		released = append(released, e.Offset)
	})

	require.Len(t, released, 3)
	require.ElementsMatch(t, []int64{4, 2, 0}, released)

	var survivors []uint32
	for e := head; e != nil; e = e.PrevSnap {
		survivors = append(survivors, e.SnapSeq)
	}
	require.Equal(t, []uint32{5, 3, 1}, survivors)
}

func TestDeleteMatchingRemovesHeadRun(t *testing.T) {
	head := chainOf(4) // 3,2,1,0
	match := func(e *Entry) bool { return e.SnapSeq >= 2 }

	var releasedCount int
	DeleteMatching(&head, match, func(e *Entry) { releasedCount++ })

	require.Equal(t, 2, releasedCount)
	require.Equal(t, uint32(1), head.SnapSeq)
	require.Equal(t, 2, Len(head))
}

func TestDeleteMatchingNoneMatch(t *testing.T) {
	head := chainOf(3)
	DeleteMatching(&head, func(*Entry) bool { return false }, func(*Entry) {
		t.Fatal("release must not be called")
	})
	require.Equal(t, 3, Len(head))
}

func TestDeleteMatchingAllMatch(t *testing.T) {
	head := chainOf(5)
	n := 0
	DeleteMatching(&head, func(*Entry) bool { return true }, func(*Entry) { n++ })
	require.Equal(t, 5, n)
	require.Nil(t, head)
}

func TestKeyEqualityIgnoresReserved(t *testing.T) {
	a := Key{VolID: 1, SLBA: 4096, Rsv1: 1}
	b := Key{VolID: 1, SLBA: 4096, Rsv1: 99}
	require.True(t, a.Equal(b))

	c := Key{VolID: 2, SLBA: 4096}
	require.False(t, a.Equal(c))
}
