package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperRun(t *testing.T) {
	s, clk := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := s.AppendCalledNumber(ctx, "ROOM1", hostKey, 1)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		swept []string
	)
	sw := NewSweeper(s, clk, discardLogger(), SweeperConfig{
		Retention: 30 * time.Minute,
		Interval:  time.Hour,
		OnSwept: func(codes []string) {
			mu.Lock()
			defer mu.Unlock()
			swept = append(swept, codes...)
		},
	})

	trap := clk.Trap().TickerFunc("sweeper")
	defer trap.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sw.Run(runCtx) }()

	call := trap.MustWait(ctx)
	call.MustRelease(ctx)

	mu.Lock()
	assert.Empty(t, swept, "a fresh room survives the startup sweep")
	mu.Unlock()

	clk.Advance(time.Hour).MustWait(ctx)

	mu.Lock()
	assert.Equal(t, []string{"ROOM1"}, swept)
	mu.Unlock()

	stop()
	require.NoError(t, <-done)
}

func TestSweepOnceNothingToDo(t *testing.T) {
	s, clk := newTestStore(t)
	sw := NewSweeper(s, clk, discardLogger(), SweeperConfig{Retention: time.Hour, Interval: time.Hour})

	codes, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, codes)
}
