package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingletonsRejectOutgoingEdges(t *testing.T) {
	g := NewGraph()
	err := g.AddEdge(&Edge{From: ReturnLabel, To: RethrowLabel, Kind: Jump})
	require.Error(t, err)
}

func TestFallthroughLimit(t *testing.T) {
	g := NewGraph()
	b0 := g.NewBlock()
	b1 := g.NewBlock()
	b2 := g.NewBlock()
	require.NoError(t, g.AddEdge(&Edge{From: b0.Label, To: b1.Label, Kind: Fallthrough}))
	err := g.AddEdge(&Edge{From: b0.Label, To: b2.Label, Kind: Fallthrough})
	require.ErrorAs(t, err, &EdgeLimitExceeded{})
}

func TestSwitchEdgesUnbounded(t *testing.T) {
	g := NewGraph()
	b0 := g.NewBlock()
	for i := 0; i < 20; i++ {
		target := g.NewBlock()
		require.NoError(t, g.AddEdge(&Edge{From: b0.Label, To: target.Label, Kind: Switch}))
	}
	require.Len(t, g.Out(b0.Label), 20)
}

func TestOpaqueRetEdgeResolution(t *testing.T) {
	g := NewGraph()
	sub := g.NewBlock()

	retEdge := &Edge{From: sub.Label, Kind: Ret}
	require.NoError(t, g.AddEdge(retEdge))
	require.Len(t, g.OpaqueEdges(), 1)

	after := g.NewBlock()
	g.Resolve(retEdge, after.Label)
	require.Empty(t, g.OpaqueEdges())
	require.Len(t, g.In(after.Label), 1)

	errs := g.Validate()
	require.Empty(t, errs)
}
