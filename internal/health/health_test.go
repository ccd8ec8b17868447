package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedPinger struct {
	mu    sync.Mutex
	errs  []error // consumed per call; nil once exhausted
	calls atomic.Int32
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

var fast = Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	MaxDelay:    2 * time.Millisecond,
	Interval:    5 * time.Millisecond,
	PingTimeout: time.Second,
}

func TestState_SetAndWatch(t *testing.T) {
	s := NewState()
	require.False(t, s.Connected())
	require.Equal(t, "disconnected", s.Label())

	var seen []bool
	s.Watch(func(up bool) { seen = append(seen, up) })
	s.Set(true)
	s.Set(true)
	s.Set(false)

	require.Equal(t, []bool{false, true, false}, seen)
	s.Set(true)
	require.Equal(t, "connected", s.Label())
}

func TestSupervisor_ConnectRecovers(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	p := &scriptedPinger{errs: []error{down, down}}
	st := NewState()

	sup := NewSupervisor(p, st, zaptest.NewLogger(t), fast)
	require.NoError(t, sup.Connect(context.Background()))
	require.True(t, st.Connected())
	require.Equal(t, int32(3), p.calls.Load())
}

func TestSupervisor_ConnectGivesUpAfterMaxAttempts(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	p := &scriptedPinger{errs: []error{down, down, down, down, down}}
	st := NewState()
	st.Set(true)

	sup := NewSupervisor(p, st, zaptest.NewLogger(t), fast)
	err := sup.Connect(context.Background())
	require.ErrorIs(t, err, down)
	require.False(t, st.Connected())
	require.Equal(t, int32(3), p.calls.Load())
}

func TestSupervisor_RunTracksOutage(t *testing.T) {
	down := errors.New("timeout")
	// first round fails entirely, the next tick succeeds
	p := &scriptedPinger{errs: []error{down, down, down}}
	st := NewState()

	var (
		mu   sync.Mutex
		seen []bool
	)
	st.Watch(func(up bool) {
		mu.Lock()
		seen = append(seen, up)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSupervisor(p, st, zaptest.NewLogger(t), fast).Run(ctx)
		close(done)
	}()

	require.Eventually(t, st.Connected, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{false, true}, seen)
}
