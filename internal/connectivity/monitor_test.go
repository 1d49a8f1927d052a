package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_Probe(t *testing.T) {
	ctx := context.Background()

	t.Run("starts unknown", func(t *testing.T) {
		m := NewMonitor(func(context.Context) error { return nil }, time.Minute, time.Second)
		assert.False(t, m.IsReachable())
		assert.Equal(t, QualityOffline, m.Quality())
	})

	t.Run("successful probe flips online", func(t *testing.T) {
		m := NewMonitor(func(context.Context) error { return nil }, time.Minute, time.Second)
		assert.True(t, m.Probe(ctx))
		assert.True(t, m.IsReachable())
		assert.Equal(t, QualityExcellent, m.Quality())
	})

	t.Run("failed probe flips offline", func(t *testing.T) {
		m := NewMonitor(func(context.Context) error { return errors.New("refused") }, time.Minute, time.Second)
		assert.False(t, m.Probe(ctx))
		assert.False(t, m.IsReachable())
		assert.Equal(t, QualityOffline, m.Quality())
	})

	t.Run("slow probe degrades quality", func(t *testing.T) {
		m := NewMonitor(func(context.Context) error {
			time.Sleep(250 * time.Millisecond)
			return nil
		}, time.Minute, time.Second)
		assert.True(t, m.Probe(ctx))
		assert.Equal(t, QualityGood, m.Quality())
	})
}

func TestMonitor_Transitions(t *testing.T) {
	ctx := context.Background()
	var err error
	probe := func(context.Context) error { return err }
	m := NewMonitor(probe, time.Minute, time.Second)

	var onlines, offlines int
	m.OnOnline(func() { onlines++ })
	m.OnOffline(func() { offlines++ })

	// unknown -> online announces online.
	m.Probe(ctx)
	assert.Equal(t, 1, onlines)
	assert.Equal(t, 0, offlines)

	// Staying online is not a transition.
	m.Probe(ctx)
	assert.Equal(t, 1, onlines)

	err = errors.New("gone")
	m.Probe(ctx)
	assert.Equal(t, 1, offlines)

	m.Probe(ctx)
	assert.Equal(t, 1, offlines)

	err = nil
	m.Probe(ctx)
	assert.Equal(t, 2, onlines)
}

func TestMonitor_UnknownToOfflineIsQuiet(t *testing.T) {
	m := NewMonitor(func(context.Context) error { return errors.New("refused") }, time.Minute, time.Second)
	var offlines int
	m.OnOffline(func() { offlines++ })

	m.Probe(context.Background())
	assert.Equal(t, 0, offlines)
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	m := NewMonitor(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, time.Minute, 50*time.Millisecond)

	start := time.Now()
	assert.False(t, m.Probe(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
