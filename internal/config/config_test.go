package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestLoadDefaultsWhenNoFileGiven(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.MaxCacheBytes != 4<<30 {
		t.Fatalf("expected default 4GiB cache budget, got %d", cfg.MaxCacheBytes)
	}
}

func TestLoadParsesJSONAndByteSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"listen_addr":":9090","max_cache_size":"500MiB","cache_dir":"/tmp/cache"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected overridden listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.MaxCacheBytes != 500*1024*1024 {
		t.Fatalf("expected 500MiB in bytes, got %d", cfg.MaxCacheBytes)
	}
	if cfg.CacheDir != "/tmp/cache" {
		t.Fatalf("expected overridden cache dir, got %q", cfg.CacheDir)
	}
}

func TestLoadAppliesOptionsOverDefaults(t *testing.T) {
	cfg, err := Load("", WithListenAddr(":1234"), WithLimiter(10, 40), WithDev())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":1234" {
		t.Fatalf("expected option override, got %q", cfg.ListenAddr)
	}
	if cfg.RateLimitBurst != 10 || cfg.RateLimitPerMinute != 40 {
		t.Fatalf("expected limiter override, got burst=%d perMinute=%d", cfg.RateLimitBurst, cfg.RateLimitPerMinute)
	}
	if !cfg.DevMode {
		t.Fatal("expected dev mode enabled")
	}
}

func TestWatcherDetectsConfigFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changed := make(chan fsnotify.Event, 1)
	go w.Run(func(event fsnotify.Event) {
		changed <- event
	})

	if err := os.WriteFile(path, []byte(`{"listen_addr":":1"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the watcher to observe the config file rewrite")
	}
}
