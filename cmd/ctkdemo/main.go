// Command ctkdemo is a manual smoke-test binary wiring the event
// manager, ring queue, and concurrent map together. It is not part of
// the toolkit's public API surface.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"

	"github.com/GoCodeAlone/ctk/concurrentmap"
	"github.com/GoCodeAlone/ctk/eventmanager"
	"github.com/GoCodeAlone/ctk/ringqueue"
)

type demoConfig struct {
	EventManager  eventmanager.Config  `toml:"event_manager"`
	RingQueue     ringqueue.Config     `toml:"ring_queue"`
	ConcurrentMap concurrentmap.Config `toml:"concurrent_map"`
}

func defaultConfig() demoConfig {
	return demoConfig{
		EventManager:  eventmanager.Config{ExtraThreads: 4},
		RingQueue:     ringqueue.Config{Capacity: 64},
		ConcurrentMap: concurrentmap.Config{InitialBuckets: 8},
	}
}

func loadConfig(path string) (demoConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return demoConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.EventManager.Validate(); err != nil {
		return demoConfig{}, err
	}
	if err := cfg.RingQueue.Validate(); err != nil {
		return demoConfig{}, err
	}
	if err := cfg.ConcurrentMap.Validate(); err != nil {
		return demoConfig{}, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional; built-in defaults are used when omitted)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	runEventManagerDemo(log, cfg.EventManager)
	runRingQueueDemo(log, cfg.RingQueue)
	runConcurrentMapDemo(log, cfg.ConcurrentMap)
}

func runEventManagerDemo(log *slog.Logger, cfg eventmanager.Config) {
	em := eventmanager.NewManager(cfg.ExtraThreads, eventmanager.WithLogger(log))
	if err := em.Start(); err != nil {
		log.Error("event manager start failed", "error", err)
		return
	}
	defer em.Stop()

	done := make(chan struct{})
	em.AddListener("demo.greeting", func(ev *eventmanager.Event) {
		log.Info("received event", "payload", ev.Payload)
		close(done)
	}, eventmanager.AnyThreads)

	em.FireEvent(eventmanager.NewTypedEvent("demo.greeting", "hello from ctkdemo"))

	select {
	case <-done:
	case <-time.After(time.Second):
		log.Warn("timed out waiting for event delivery")
	}

	stats := em.Stats()
	log.Info("event manager stats", "listeners", stats.ListenerCount, "cycles", stats.DispatchCycles, "invocations", stats.Invocations)
}

func runRingQueueDemo(log *slog.Logger, cfg ringqueue.Config) {
	q := ringqueue.New[int](cfg.Capacity)
	for i := 0; i < cfg.Capacity/2; i++ {
		q.Push(i)
	}

	drained := q.GetAll(nil)
	stats := q.Stats()
	log.Info("ring queue demo", "drained", len(drained), "capacity", stats.Capacity, "dropped", stats.Dropped)
}

func runConcurrentMapDemo(log *slog.Logger, cfg concurrentmap.Config) {
	hasher := concurrentmap.Hasher[string](func(key string) uint64 {
		return xxhash.Sum64String(key)
	})
	m := concurrentmap.New[string, int](cfg.InitialBuckets, concurrentmap.WithHasher(hasher))

	for i := 0; i < 500; i++ {
		m.Insert(fmt.Sprintf("key-%d", i), i)
	}

	stats := m.Stats()
	log.Info("concurrent map demo", "size", stats.Size, "buckets", stats.BucketCount, "resizes", stats.Resizes)
}
