package record

import (
	"os"
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/core/bus"
)

func TestManagerDisabledConfig(t *testing.T) {
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	if err := manager.StartTasks(nil, time.Unix(0, 0)); err != nil {
		t.Fatalf("StartTasks(nil) returned error: %v", err)
	}
	if manager.TaskCount() != 0 {
		t.Fatalf("expected 0 tasks for nil config, got %d", manager.TaskCount())
	}

	cfg := &config.Config{Record: &config.RecordConfig{Enabled: false}}
	if err := manager.StartTasks(cfg, time.Unix(0, 0)); err != nil {
		t.Fatalf("StartTasks(disabled) returned error: %v", err)
	}
	if manager.TaskCount() != 0 {
		t.Fatalf("expected 0 tasks when disabled, got %d", manager.TaskCount())
	}
}

func TestManagerMissingDirectory(t *testing.T) {
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	cfg := &config.Config{
		Record: &config.RecordConfig{
			Enabled: true,
			Streams: []config.RecordStream{{App: "live", Stream: "cam1"}},
		},
	}
	if err := manager.StartTasks(cfg, time.Unix(0, 0)); err == nil {
		t.Fatal("expected error for stream with no output directory")
	}
}

func TestManagerArchivesPublishedFrames(t *testing.T) {
	dir := t.TempDir()
	registry := bus.NewRegistry()
	manager := NewManager(registry)

	cfg := &config.Config{
		Record: &config.RecordConfig{
			Enabled: true,
			Dir:     dir,
			Streams: []config.RecordStream{{App: "live", Stream: "cam1"}},
		},
	}

	startedAt := time.Unix(1700000000, 0)
	if err := manager.StartTasks(cfg, startedAt); err != nil {
		t.Fatalf("StartTasks failed: %v", err)
	}
	if manager.TaskCount() != 1 {
		t.Fatalf("expected 1 task, got %d", manager.TaskCount())
	}

	src := registry.Get(bus.NewStreamKey("live", "cam1"))
	if src == nil {
		t.Fatal("expected source stream to be registered")
	}

	msg := bus.AcquireMessage()
	msg.Type = bus.MessageTypeVideo
	msg.Timestamp = 40
	msg.SetPayload([]byte{9, 9, 9})
	src.Publish(msg)

	tasks := manager.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task snapshot, got %d", len(tasks))
	}
	archivePath := tasks[0].Path()

	deadline := time.Now().Add(2 * time.Second)
	var size int64
	for time.Now().Before(deadline) {
		if info, err := os.Stat(archivePath); err == nil && info.Size() > 0 {
			size = info.Size()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	if size == 0 {
		t.Error("expected the archive file to receive at least one record")
	}
}
