package balancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobin_CyclesInOrder(t *testing.T) {
	endpoints := []*Endpoint{{Name: "a", healthy: true}, {Name: "b", healthy: true}, {Name: "c", healthy: true}}
	rr := NewRoundRobin()

	var got []string
	for i := 0; i < 6; i++ {
		e, err := rr.Select(context.Background(), endpoints)
		require.NoError(t, err)
		got = append(got, e.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
}

func TestLeastConnections_PicksFewestInFlight(t *testing.T) {
	a := &Endpoint{Name: "a", healthy: true, connections: 5}
	b := &Endpoint{Name: "b", healthy: true, connections: 1}
	lc := NewLeastConnections()

	e, err := lc.Select(context.Background(), []*Endpoint{a, b})
	require.NoError(t, err)
	assert.Equal(t, "b", e.Name)
}

func TestBalancer_NoHealthyEndpointReturnsTypedError(t *testing.T) {
	endpoints := []*Endpoint{{Name: "a", healthy: false}}
	b := NewBalancer("planner", NewRoundRobin(), endpoints)

	_, err := b.Next(context.Background())
	require.Error(t, err)
}

func TestBalancer_SkipsUnhealthyEndpoints(t *testing.T) {
	endpoints := []*Endpoint{
		{Name: "down", healthy: false},
		{Name: "up", healthy: true},
	}
	b := NewBalancer("planner", NewRoundRobin(), endpoints)

	for i := 0; i < 3; i++ {
		e, err := b.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "up", e.Name)
	}
}

func TestFactory_CreatesRegisteredStrategies(t *testing.T) {
	f := NewFactory()

	s, ok := f.Create("round-robin")
	require.True(t, ok)
	assert.Equal(t, "round-robin", s.Name())

	_, ok = f.Create("does-not-exist")
	assert.False(t, ok)
}
