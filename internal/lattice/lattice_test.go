package lattice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l, err := New([]string{"age", "sex", "zip"}, []int{2, 1, 3})
	require.NoError(t, err)

	assert.Equal(t, 3, l.Dimensions())
	assert.Equal(t, uint64(24), l.Size())
	assert.Equal(t, Node{0, 0, 0}, l.Bottom())
	assert.Equal(t, Node{2, 1, 3}, l.Top())
	assert.Equal(t, 6, l.MaxLevel())

	_, err = New([]string{"age"}, []int{1, 2})
	require.Error(t, err)

	_, err = New([]string{"age"}, []int{-1})
	require.Error(t, err)
}

func TestSuccessorsAndPredecessors(t *testing.T) {
	l, err := New([]string{"a", "b"}, []int{1, 2})
	require.NoError(t, err)

	tests := []struct {
		node  Node
		succ  []Node
		preds []Node
	}{
		{node: Node{0, 0}, succ: []Node{{1, 0}, {0, 1}}, preds: nil},
		{node: Node{1, 1}, succ: []Node{{1, 2}}, preds: []Node{{0, 1}, {1, 0}}},
		{node: Node{1, 2}, succ: nil, preds: []Node{{0, 2}, {1, 1}}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.succ, l.Successors(tc.node)); diff != "" {
			t.Errorf("Successors(%v) mismatch (-want +got):\n%s", tc.node, diff)
		}
		if diff := cmp.Diff(tc.preds, l.Predecessors(tc.node)); diff != "" {
			t.Errorf("Predecessors(%v) mismatch (-want +got):\n%s", tc.node, diff)
		}
	}
}

func TestSuccessorsDoNotAliasInput(t *testing.T) {
	l, err := New([]string{"a", "b"}, []int{3, 3})
	require.NoError(t, err)

	n := Node{1, 1}
	for _, s := range l.Successors(n) {
		s[0] = 99
	}
	assert.Equal(t, Node{1, 1}, n)
}

func TestWalkVisitsEveryNodeOnce(t *testing.T) {
	l, err := New([]string{"a", "b", "c"}, []int{1, 2, 0})
	require.NoError(t, err)

	var visited []Node
	l.Walk(func(n Node) bool {
		visited = append(visited, n.Clone())
		return true
	})

	want := []Node{
		{0, 0, 0}, {0, 1, 0}, {0, 2, 0},
		{1, 0, 0}, {1, 1, 0}, {1, 2, 0},
	}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(len(want)), l.Size())
}

func TestWalkStopsEarly(t *testing.T) {
	l, err := New([]string{"a", "b"}, []int{3, 3})
	require.NoError(t, err)

	count := 0
	l.Walk(func(Node) bool {
		count++
		return count < 5
	})
	assert.Equal(t, 5, count)
}

func TestWalkEmptyLattice(t *testing.T) {
	l, err := New(nil, nil)
	require.NoError(t, err)

	count := 0
	l.Walk(func(n Node) bool {
		assert.Empty(t, n)
		count++
		return true
	})
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(1), l.Size())
}

func TestNodeOrdering(t *testing.T) {
	assert.True(t, Node{0, 1}.LessEq(Node{1, 1}))
	assert.False(t, Node{0, 2}.LessEq(Node{1, 1}))
	assert.Equal(t, -1, Node{0, 2}.Compare(Node{1, 0}))
	assert.Equal(t, 1, Node{1, 0}.Compare(Node{0, 2}))
	assert.Equal(t, 0, Node{1, 2}.Compare(Node{1, 2}))
	assert.True(t, Node{1, 2}.Equal(Node{1, 2}))
	assert.Equal(t, 3, Node{1, 2}.Level())
	assert.Equal(t, "1.2", Node{1, 2}.Key())
	assert.Equal(t, "[1,2]", Node{1, 2}.String())
}

func TestContains(t *testing.T) {
	l, err := New([]string{"a", "b"}, []int{1, 2})
	require.NoError(t, err)

	assert.True(t, l.Contains(Node{1, 2}))
	assert.False(t, l.Contains(Node{2, 0}))
	assert.False(t, l.Contains(Node{0}))
	assert.False(t, l.Contains(Node{-1, 0}))
}

func TestSizeSaturates(t *testing.T) {
	heights := make([]int, 80)
	attrs := make([]string, 80)
	for i := range heights {
		heights[i] = 9
		attrs[i] = "a"
	}
	l, err := New(attrs, heights)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), l.Size())
}
