package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTicker_StartStop(t *testing.T) {
	var tk Ticker
	var n atomic.Int32
	if tk.Active() {
		t.Fatal("zero Ticker reports active")
	}
	if !tk.Start(context.Background(), 5*time.Millisecond, func() { n.Add(1) }) {
		t.Fatal("Start returned false on a stopped ticker")
	}
	if tk.Start(context.Background(), 5*time.Millisecond, func() { t.Error("second loop ran") }) {
		t.Error("Start on an active ticker should reuse the running loop")
	}
	eventually(t, func() bool { return n.Load() >= 2 })

	tk.Stop()
	tk.Wait()
	if tk.Active() {
		t.Error("Active after Stop")
	}
	got := n.Load()
	time.Sleep(30 * time.Millisecond)
	if n.Load() != got {
		t.Error("ticked after Stop")
	}
	tk.Stop()
}

func TestTicker_ParentCancel(t *testing.T) {
	var tk Ticker
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32
	tk.Start(ctx, 5*time.Millisecond, func() { n.Add(1) })
	cancel()
	tk.Wait()
	got := n.Load()
	time.Sleep(20 * time.Millisecond)
	if n.Load() != got {
		t.Error("ticked after parent context was cancelled")
	}
	if tk.Active() {
		t.Error("Active after the parent context was cancelled")
	}
	if !tk.Start(context.Background(), 5*time.Millisecond, func() {}) {
		t.Error("Start should run a new loop once the old one has ended")
	}
	tk.Stop()
	tk.Wait()
}

func TestTicker_OldLoopDoesNotStopNewOne(t *testing.T) {
	var tk Ticker
	ctx, cancel := context.WithCancel(context.Background())
	tk.Start(ctx, time.Hour, func() {})
	tk.Stop()
	if !tk.Start(context.Background(), time.Hour, func() {}) {
		t.Fatal("Start after Stop returned false")
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
	if !tk.Active() {
		t.Error("the stopped loop exiting cleared the running one")
	}
	tk.Stop()
	tk.Wait()
}

func TestTicker_RejectsNonPositiveInterval(t *testing.T) {
	var tk Ticker
	if tk.Start(context.Background(), 0, func() {}) || tk.Active() {
		t.Error("zero interval should not start a loop")
	}
}
