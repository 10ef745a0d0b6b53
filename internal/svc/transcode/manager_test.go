// Tests verify pipeline wiring, profile fan-out, and manager lifecycle.

package transcode

import (
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
)

func TestManagerDisabledConfig(t *testing.T) {
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	if err := manager.StartTasks(nil); err != nil {
		t.Fatalf("StartTasks(nil) returned error: %v", err)
	}
	if manager.TaskCount() != 0 {
		t.Fatalf("expected 0 tasks for nil config, got %d", manager.TaskCount())
	}

	cfg := &config.Config{Transcode: &config.TranscodeConfig{Enabled: false}}
	if err := manager.StartTasks(cfg); err != nil {
		t.Fatalf("StartTasks(disabled) returned error: %v", err)
	}
	if manager.TaskCount() != 0 {
		t.Fatalf("expected 0 tasks when disabled, got %d", manager.TaskCount())
	}
}

func TestManagerInvalidProfile(t *testing.T) {
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	cfg := &config.Config{
		Transcode: &config.TranscodeConfig{
			Enabled: true,
			Profiles: []config.TranscodeProfile{
				{App: "live", Stream: "", Name: "low", Format: "hls"},
			},
		},
	}
	if err := manager.StartTasks(cfg); err == nil {
		t.Fatal("expected error for profile missing stream name")
	}
}

func TestManagerGroupsProfilesBySourceAndRepublishes(t *testing.T) {
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	cfg := &config.Config{
		Transcode: &config.TranscodeConfig{
			Enabled: true,
			Profiles: []config.TranscodeProfile{
				{App: "live", Stream: "cam1", Name: "hi", Format: "hls"},
				{App: "live", Stream: "cam1", Name: "lo", Format: "hls"},
			},
		},
	}

	if err := manager.StartTasks(cfg); err != nil {
		t.Fatalf("StartTasks failed: %v", err)
	}
	if manager.TaskCount() != 1 {
		t.Fatalf("expected 1 task (one source stream), got %d", manager.TaskCount())
	}

	src := registry.Get(bus.NewStreamKey("live", "cam1"))
	if src == nil {
		t.Fatal("expected source stream to be registered")
	}

	hiOut := registry.Get(bus.NewStreamKey("live", "cam1_hi"))
	loOut := registry.Get(bus.NewStreamKey("live", "cam1_lo"))
	if hiOut == nil || loOut == nil {
		t.Fatal("expected both profile output streams to be registered")
	}

	hiSub, hiSubID := hiOut.AttachSubscriber(16, bus.BackpressureDropOldest)
	loSub, loSubID := loOut.AttachSubscriber(16, bus.BackpressureDropOldest)
	defer hiOut.DetachSubscriber(hiSubID)
	defer loOut.DetachSubscriber(loSubID)

	msg := bus.AcquireMessage()
	msg.Type = bus.MessageTypeVideo
	msg.Timestamp = 40
	msg.SetPayload([]byte{1, 2, 3, 4})
	src.Publish(msg)

	deadline := time.Now().Add(2 * time.Second)
	var gotHi, gotLo bool
	for time.Now().Before(deadline) && !(gotHi && gotLo) {
		if !gotHi {
			if _, ok := hiSub.Buffer().Read(); ok {
				gotHi = true
			}
		}
		if !gotLo {
			if _, ok := loSub.Buffer().Read(); ok {
				gotLo = true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !gotHi {
		t.Error("expected the hi profile's output stream to receive a republished message")
	}
	if !gotLo {
		t.Error("expected the lo profile's output stream to receive a republished message")
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}
