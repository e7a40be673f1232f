package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/grolu/credcache/internal/types"
)

func TestNewRefresherClampsInterval(t *testing.T) {
	source := &fakeSource{snapshot: &types.Snapshot{}}
	m, _ := newManager(source, nil)

	r := NewRefresher(zap.NewNop(), m, 10*time.Millisecond)
	assert.Equal(t, time.Second, r.interval)

	r = NewRefresher(zap.NewNop(), m, 5*time.Minute)
	assert.Equal(t, 5*time.Minute, r.interval)
}

func TestRefresherStopsOnCancel(t *testing.T) {
	source := &fakeSource{snapshot: &types.Snapshot{}}
	m, _ := newManager(source, nil)
	r := NewRefresher(zap.NewNop(), m, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("refresher did not stop after context cancellation")
	}
	assert.Zero(t, source.fetchCalls)
}
