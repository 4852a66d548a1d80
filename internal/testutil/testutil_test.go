package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
)

func TestSequentialIDGenerator(t *testing.T) {
	g := NewSequentialIDGenerator("")
	assert.Equal(t, "cycle-0001", g.Generate())
	assert.Equal(t, "cycle-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "cycle-0001", g.Generate())

	assert.Equal(t, "poll-0001", NewSequentialIDGenerator("poll").Generate())
}

func TestSequentialIDGenerator_Concurrent(t *testing.T) {
	g := NewSequentialIDGenerator("c")
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestScriptedSource(t *testing.T) {
	boom := ir.NewShapeError("script", "bad header")
	src := NewScriptedSource("script",
		Read{Snapshot: ir.RawSnapshot{Participants: ir.Table{{"name"}, {"A"}}}},
		Read{Err: boom},
	)
	ctx := context.Background()

	snap, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "script", snap.Source, "source name is filled in")
	assert.Equal(t, ir.Table{{"name"}, {"A"}}, snap.Participants)

	_, err = src.Fetch(ctx)
	assert.True(t, errors.Is(err, boom))

	_, err = src.Fetch(ctx)
	assert.True(t, ir.IsTransportError(err), "exhausted script fails like a dead source")
	assert.Equal(t, 3, src.Calls())
}

func TestScriptedSource_Cancelled(t *testing.T) {
	src := NewScriptedSource("script", Read{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.Calls())
}

func TestRecordingSink(t *testing.T) {
	fail := errors.New("disk full")
	sink := NewRecordingSink(fail)

	_, ok := sink.Last()
	assert.False(t, ok)

	err := sink.Render(context.Background(), ir.CommittedState{Seq: 1})
	assert.ErrorIs(t, err, fail)
	require.NoError(t, NewRecordingSink(nil).Render(context.Background(), ir.CommittedState{}))

	_ = sink.Render(context.Background(), ir.CommittedState{Seq: 2})
	last, ok := sink.Last()
	require.True(t, ok)
	assert.Equal(t, int64(2), last.Seq)
	assert.Len(t, sink.States(), 2)
}
