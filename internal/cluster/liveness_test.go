package cluster

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLivenessMonitorMarksUnhealthyAfterThreshold(t *testing.T) {
	m := NewLivenessMonitor(10 * time.Millisecond)
	fail := true
	m.SetCheckFunction(func(addr string) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	var unhealthyCh = make(chan string, 1)
	m.SetOnUnhealthy(func(id string) { unhealthyCh <- id })

	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx, func() []NodeInfo { return []NodeInfo{{ID: "n1", Addr: "x"}} })

	select {
	case id := <-unhealthyCh:
		if id != "n1" {
			t.Fatalf("got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unhealthy callback")
	}

	cancel()
	m.Stop()
}

func TestIsHealthyRecovers(t *testing.T) {
	m := NewLivenessMonitor(time.Hour)
	m.SetCheckFunction(func(addr string) error { return nil })
	m.checkNode(NodeInfo{ID: "n1", Addr: "x"})
	if !m.IsHealthy("n1") {
		t.Fatalf("expected healthy after successful check")
	}
}
