package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/backend/simulator"
	"github.com/qubitlab/subisom/internal/circuit"
	"github.com/qubitlab/subisom/internal/oracle"
	"github.com/qubitlab/subisom/pkg/graph"
)

func cycle(t *testing.T, n int) *graph.Graph {
	t.Helper()
	edges := make([]graph.Edge, n)
	for i := 0; i < n; i++ {
		edges[i] = graph.Edge{U: i, V: (i + 1) % n}
	}
	g, err := graph.New(n, edges)
	require.NoError(t, err)
	return g
}

func testOptions(seed int64) Options {
	return Options{
		ShotsPerRound:     32,
		InitialIterations: 1,
		EscalationCeiling: 8,
		MaxRounds:         8,
		MaxStalls:         2,
		Concurrency:       2,
		Seed:              seed,
	}
}

func TestSearch_FindsEdgeInCycle(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})

	ctrl := New(target, pattern, simulator.New(11), testOptions(3), zerolog.Nop())
	out, err := ctrl.Search(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusFound, out.Status)
	require.Len(t, out.Mapping, 2)
	assert.NotEqual(t, out.Mapping[0], out.Mapping[1])
	assert.True(t, target.IsAdjacent(out.Mapping[0], out.Mapping[1]))
	assert.Equal(t, 1.0, out.Confidence)
	assert.Greater(t, out.Shots, 0)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, ctrl.RunID(), out.RunID)
}

func TestSearch_NotFoundWithConfidence(t *testing.T) {
	// Two disjoint edges cannot host a triangle.
	target := graph.MustNew(4, []graph.Edge{{U: 0, V: 1}, {U: 2, V: 3}})
	pattern := cycle(t, 3)

	opts := testOptions(5)
	opts.ConfidenceTarget = 0.99
	var events []Progress
	opts.OnProgress = func(p Progress) { events = append(events, p) }

	ctrl := New(target, pattern, simulator.New(17), opts, zerolog.Nop())
	out, err := ctrl.Search(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusNotFound, out.Status)
	assert.Nil(t, out.Mapping)
	assert.GreaterOrEqual(t, out.Confidence, 0.99)
	assert.Greater(t, out.Rounds, 0)
	assert.Equal(t, out.Rounds*opts.ShotsPerRound, out.Shots)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "not_found", last.State)
	assert.Equal(t, out.RunID, last.RunID)
	for _, ev := range events {
		assert.Equal(t, out.RunID, ev.RunID)
	}
}

func TestSearch_FindsCycleIsomorphism(t *testing.T) {
	if testing.Short() {
		t.Skip("13-qubit statevector round trip")
	}
	target := cycle(t, 3)
	pattern := cycle(t, 3)

	opts := testOptions(29)
	opts.ShotsPerRound = 128
	opts.EscalationCeiling = 64
	opts.MaxRounds = 24
	opts.MaxStalls = 4

	ctrl := New(target, pattern, simulator.New(101), opts, zerolog.Nop())
	out, err := ctrl.Search(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusFound, out.Status)
	require.Len(t, out.Mapping, 3)
	seen := map[int]bool{}
	for _, v := range out.Mapping {
		assert.False(t, seen[v])
		seen[v] = true
	}
	for _, e := range pattern.Edges() {
		assert.True(t, target.IsAdjacent(out.Mapping[e.U], out.Mapping[e.V]))
	}
}

func TestSearch_IncompatibleSize(t *testing.T) {
	target := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})
	pattern := cycle(t, 3)

	ctrl := New(target, pattern, simulator.New(1), testOptions(1), zerolog.Nop())
	_, err := ctrl.Search(context.Background())
	assert.ErrorIs(t, err, oracle.ErrIncompatibleSize)
}

func TestSearch_PatternCapEnforced(t *testing.T) {
	target := cycle(t, 4)
	pattern := cycle(t, 3)

	opts := testOptions(1)
	opts.MaxPatternVertices = 2
	ctrl := New(target, pattern, simulator.New(1), opts, zerolog.Nop())
	_, err := ctrl.Search(context.Background())
	assert.ErrorIs(t, err, oracle.ErrPatternTooLarge)
}

func TestSearch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})
	ctrl := New(target, pattern, simulator.New(1), testOptions(1), zerolog.Nop())

	out, err := ctrl.Search(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusNotFound, out.Status)
	assert.Zero(t, out.Rounds)
}

type slowBackend struct {
	inner backend.Backend
	delay time.Duration
}

func (b *slowBackend) Execute(ctx context.Context, c *circuit.Circuit, shots int) ([]backend.Bitstring, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.delay):
	}
	return b.inner.Execute(ctx, c, shots)
}

func (b *slowBackend) Name() string { return b.inner.Name() + "-slow" }

func TestSearch_DeadlineDuringRounds(t *testing.T) {
	// Impossible pattern so the search runs until the deadline fires.
	target := graph.MustNew(4, []graph.Edge{{U: 0, V: 1}, {U: 2, V: 3}})
	pattern := cycle(t, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	opts := testOptions(9)
	opts.MaxRounds = 10000
	be := &slowBackend{inner: simulator.New(2), delay: 10 * time.Millisecond}
	ctrl := New(target, pattern, be, opts, zerolog.Nop())

	_, err := ctrl.Search(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type failingBackend struct {
	calls int
	mu    sync.Mutex
}

func (b *failingBackend) Execute(ctx context.Context, c *circuit.Circuit, shots int) ([]backend.Bitstring, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return nil, fmt.Errorf("%w: hardware queue rejected the job", backend.ErrExecution)
}

func (b *failingBackend) Name() string { return "failing" }

func TestSearch_BackendFailureAborts(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})

	be := &failingBackend{}
	opts := testOptions(1)
	opts.Retry = backend.RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	ctrl := New(target, pattern, be, opts, zerolog.Nop())

	_, err := ctrl.Search(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, backend.ErrExecution)
	assert.GreaterOrEqual(t, be.calls, 2) // retried before giving up
}

type memCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	hits int
	puts int
}

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.m[key]
	if ok {
		c.hits++
	}
	return payload, ok
}

func (c *memCache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = payload
	c.puts++
}

func TestSearch_OracleCircuitCache(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})
	cache := newMemCache()

	opts := testOptions(3)
	opts.Cache = cache

	first := New(target, pattern, simulator.New(11), opts, zerolog.Nop())
	out1, err := first.Search(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFound, out1.Status)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 0, cache.hits)

	second := New(target, pattern, simulator.New(11), opts, zerolog.Nop())
	out2, err := second.Search(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFound, out2.Status)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 1, cache.hits)
}

func TestSearch_CorruptCacheEntryIgnored(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})
	cache := newMemCache()
	cache.m[target.Fingerprint()+":"+pattern.Fingerprint()] = []byte("not msgpack")

	opts := testOptions(3)
	opts.Cache = cache

	ctrl := New(target, pattern, simulator.New(11), opts, zerolog.Nop())
	out, err := ctrl.Search(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFound, out.Status)
	assert.Equal(t, 1, cache.puts) // recompiled and re-cached
}

func TestSearch_DeterministicForFixedSeeds(t *testing.T) {
	target := graph.MustNew(4, []graph.Edge{{U: 0, V: 1}, {U: 2, V: 3}})
	pattern := cycle(t, 3)

	run := func() Outcome {
		ctrl := New(target, pattern, simulator.New(23), testOptions(7), zerolog.Nop())
		out, err := ctrl.Search(context.Background())
		require.NoError(t, err)
		return out
	}

	a, b := run(), run()
	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Rounds, b.Rounds)
	assert.Equal(t, a.Shots, b.Shots)
	assert.InDelta(t, a.Confidence, b.Confidence, 1e-12)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestSearch_FreshRunIDPerController(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})

	a := New(target, pattern, simulator.New(1), testOptions(1), zerolog.Nop())
	b := New(target, pattern, simulator.New(1), testOptions(1), zerolog.Nop())
	assert.NotEqual(t, a.RunID(), b.RunID())
	assert.NotEmpty(t, a.RunID())
}

func TestVerifyEmbedding(t *testing.T) {
	target := cycle(t, 4)
	pattern := graph.MustNew(2, []graph.Edge{{U: 0, V: 1}})

	assert.True(t, verifyEmbedding(target, pattern, []int{0, 1}))
	assert.True(t, verifyEmbedding(target, pattern, []int{3, 0}))
	assert.False(t, verifyEmbedding(target, pattern, []int{0, 2}), "non-adjacent pair")
	assert.False(t, verifyEmbedding(target, pattern, []int{1, 1}), "not injective")
	assert.False(t, verifyEmbedding(target, pattern, []int{0, 7}), "out of range")
	assert.False(t, verifyEmbedding(target, pattern, []int{0}), "wrong arity")
}

func TestConfidence_Accumulates(t *testing.T) {
	one := []roundRecord{{iterations: 1, shots: 8}}
	two := []roundRecord{{iterations: 1, shots: 8}, {iterations: 2, shots: 8}}

	c1 := confidence(one, 16)
	c2 := confidence(two, 16)
	assert.Greater(t, c1, 0.0)
	assert.Less(t, c1, 1.0)
	assert.Greater(t, c2, c1)
	assert.Zero(t, confidence(nil, 16))
}
