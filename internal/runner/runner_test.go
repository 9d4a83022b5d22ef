package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

func memSorter(t *testing.T, files ...string) *sorter.Sorter {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("content"), 0644); err != nil {
			t.Fatalf("创建测试文件失败: %v", err)
		}
	}
	return sorter.New(fs, zerolog.Nop())
}

func newRunner(t *testing.T, s *sorter.Sorter) *Runner {
	t.Helper()
	r, err := New(s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestRunner_Run(t *testing.T) {
	r := newRunner(t, memSorter(t, "/src/a.jpg", "/src/b.pdf"))

	stats, err := r.Run(context.Background(), sorter.Options{Source: "/src", Destination: "/dst"}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Status != internal.BatchCompleted || stats.Moved != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if r.Busy() {
		t.Error("Runner should not be busy after Run returns")
	}
}

func TestRunner_RejectsConcurrentBatch(t *testing.T) {
	r := newRunner(t, memSorter(t, "/src/a.jpg", "/src/b.jpg"))

	started := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	obs := sorter.ObserverFuncs{OnProgress: func(int) {
		once.Do(func() { close(started) })
		<-proceed
	}}

	opts := sorter.Options{Source: "/src", Destination: "/dst"}
	results, err := r.Start(context.Background(), opts, obs)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for batch to start")
	}

	if !r.Busy() {
		t.Error("Expected runner to be busy")
	}
	if _, err := r.Start(context.Background(), opts, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}

	close(proceed)
	res, ok := <-results
	if !ok {
		t.Fatal("Expected one result")
	}
	if res.Err != nil || res.Stats.Moved != 2 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if _, ok := <-results; ok {
		t.Error("Results channel should be closed after the result")
	}

	// 上一个批次结束后可以立即开始新批次
	stats, err := r.Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run() after first batch error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Expected empty source on second run, got %d files", stats.Total)
	}
}

func TestRunner_ConfigErrorReported(t *testing.T) {
	r := newRunner(t, memSorter(t))
	r.Locking = true

	_, err := r.Run(context.Background(), sorter.Options{Source: "/src"}, nil)
	if !errors.Is(err, sorter.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}

func TestRunner_DestinationLocked(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.mp3"), []byte("x"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatal(err)
	}

	held := flock.New(filepath.Join(dst, internal.LockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Skipf("无法获取文件锁: %v", err)
	}

	r := newRunner(t, sorter.New(afero.NewOsFs(), zerolog.Nop()))
	r.Locking = true
	opts := sorter.Options{Source: src, Destination: dst}

	if _, err := r.Run(context.Background(), opts, nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
	if r.Busy() {
		t.Error("Runner should not stay busy after a lock failure")
	}

	// 预演不修改目标目录，不需要锁
	dry := opts
	dry.DryRun = true
	if _, err := r.Run(context.Background(), dry, nil); err != nil {
		t.Errorf("Dry run error = %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatal(err)
	}

	stats, err := r.Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Moved != 1 {
		t.Errorf("Expected 1 moved file, got %d", stats.Moved)
	}
	if _, err := os.Stat(filepath.Join(dst, "musics", "a.mp3")); err != nil {
		t.Errorf("Expected file in musics: %v", err)
	}
}
