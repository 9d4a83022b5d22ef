package sorter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/mover"
	"github.com/moyu-x/file-sorter/pkg/planner"
	"github.com/moyu-x/file-sorter/pkg/resolver"
)

// recorder 记录全部回调，便于断言
type recorder struct {
	percents []int
	statuses []Status
	results  []mover.Result
}

func (r *recorder) Progress(percent int) { r.percents = append(r.percents, percent) }
func (r *recorder) Status(status Status) { r.statuses = append(r.statuses, status) }
func (r *recorder) FileDone(result mover.Result) { r.results = append(r.results, result) }

func (r *recorder) terminal(t *testing.T) Status {
	t.Helper()
	count := 0
	var last Status
	for _, s := range r.statuses {
		if s.Kind.Terminal() {
			count++
			last = s
		}
	}
	if count != 1 {
		t.Fatalf("Expected exactly 1 terminal status, got %d: %+v", count, r.statuses)
	}
	if !r.statuses[len(r.statuses)-1].Kind.Terminal() {
		t.Fatal("Terminal status must be the last status")
	}
	return last
}

type denyMkdirFs struct {
	afero.Fs
	prefix string
}

func (f *denyMkdirFs) MkdirAll(path string, perm os.FileMode) error {
	if strings.HasPrefix(path, f.prefix) {
		return &os.PathError{Op: "mkdir", Path: path, Err: os.ErrPermission}
	}
	return f.Fs.MkdirAll(path, perm)
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("创建测试文件失败: %v", err)
		}
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("读取 %s 失败: %v", path, err)
	}
	return string(data)
}

func TestRun_RenameByCategory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/a.jpg":         "new jpg",
		"/src/b.txt":         "text",
		"/dest/images/a.jpg": "original jpg",
	})

	rec := &recorder{}
	s := New(fs, zerolog.Nop())
	stats, err := s.Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/dest",
		Policy:      resolver.Rename,
		Mode:        planner.Mode{Layout: planner.ByCategory},
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := readFile(t, fs, "/dest/images/a.jpg"); got != "original jpg" {
		t.Errorf("images/a.jpg = %q, want original", got)
	}
	if got := readFile(t, fs, "/dest/images/a_1.jpg"); got != "new jpg" {
		t.Errorf("images/a_1.jpg = %q, want new jpg", got)
	}
	if got := readFile(t, fs, "/dest/others/b.txt"); got != "text" {
		t.Errorf("others/b.txt = %q, want text", got)
	}

	if stats.Total != 2 || stats.Processed != 2 || stats.Moved != 2 || stats.Renamed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.Status != internal.BatchCompleted {
		t.Errorf("Status = %s, want completed", stats.Status)
	}
	if len(rec.results) != 2 {
		t.Errorf("Expected 2 file results, got %d", len(rec.results))
	}

	final := rec.terminal(t)
	if final.Kind != Completed || final.Message != MsgCompleted {
		t.Errorf("Terminal status = %+v", final)
	}
}

func TestRun_ProgressContract(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{}
	for _, name := range []string{"a.jpg", "b.mp4", "c.mp3", "d.zip", "e.pdf", "f.exe", "g.py"} {
		files["/src/"+name] = name
	}
	writeFiles(t, fs, files)

	rec := &recorder{}
	_, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{Source: "/src", Destination: "/dest"}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rec.percents) != 7 {
		t.Fatalf("Expected 7 progress updates, got %d", len(rec.percents))
	}
	for i := 1; i < len(rec.percents); i++ {
		if rec.percents[i] < rec.percents[i-1] {
			t.Errorf("Progress decreased: %v", rec.percents)
		}
	}
	if rec.percents[0] != 14 {
		t.Errorf("First progress = %d, want floor(1/7*100) = 14", rec.percents[0])
	}
	if last := rec.percents[len(rec.percents)-1]; last != 100 {
		t.Errorf("Last progress = %d, want 100", last)
	}

	if len(rec.statuses) != 8 {
		t.Fatalf("Expected 7 running statuses and 1 terminal, got %d", len(rec.statuses))
	}
	for i, s := range rec.statuses[:7] {
		if s.Kind != Running || s.Processed != i+1 || s.Total != 7 {
			t.Errorf("status %d = %+v", i, s)
		}
	}
	if msg := rec.statuses[2].Message; msg != "Processed 3/7 files, 4 files left" {
		t.Errorf("Running message = %q", msg)
	}
	rec.terminal(t)
}

func TestRun_EmptySource(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "src")
	dest := filepath.Join(tempDir, "dest")
	logPath := filepath.Join(tempDir, logger.DefaultFailureLog)
	if err := os.MkdirAll(source, 0755); err != nil {
		t.Fatal(err)
	}

	failureLog := logger.OpenFailureLog(logPath)
	defer failureLog.Close()

	rec := &recorder{}
	stats, err := New(afero.NewOsFs(), failureLog.Logger).Run(context.Background(), Options{
		Source:      source,
		Destination: dest,
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Total != 0 || stats.Moved != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if len(rec.percents) != 0 {
		t.Errorf("Expected no progress updates, got %v", rec.percents)
	}
	final := rec.terminal(t)
	if final.Kind != Completed || final.Total != 0 || final.Processed != 0 {
		t.Errorf("Terminal status = %+v", final)
	}
	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Error("Failure log should not be touched by an empty batch")
	}
}

func TestRun_DestinationDirDenied(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{
		"/src/a.jpg": "jpg",
		"/src/b.txt": "text",
	})
	fs := &denyMkdirFs{Fs: base, prefix: "/dest/images"}

	var failures bytes.Buffer
	rec := &recorder{}
	stats, err := New(fs, zerolog.New(&failures)).Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/dest",
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if n := strings.Count(failures.String(), "\n"); n != 1 {
		t.Errorf("Expected exactly 1 failure log entry, got %d: %s", n, failures.String())
	}
	if ok, _ := afero.Exists(base, "/src/a.jpg"); !ok {
		t.Error("a.jpg should remain in its original location")
	}
	if ok, _ := afero.Exists(base, "/dest/others/b.txt"); !ok {
		t.Error("b.txt should still be moved")
	}

	if stats.Total != 2 || stats.Processed != 2 || stats.Failed != 1 || stats.Moved != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	final := rec.terminal(t)
	if final.Kind != Completed || final.Processed != 2 || final.Total != 2 {
		t.Errorf("Terminal status = %+v", final)
	}
}

func TestRun_MissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	var failures bytes.Buffer
	rec := &recorder{}

	_, err := New(fs, zerolog.New(&failures)).Run(context.Background(), Options{
		Source:      "/missing",
		Destination: "/dest",
	}, rec)

	var traversalErr *TraversalError
	if !errors.As(err, &traversalErr) {
		t.Fatalf("Run() error = %v, want TraversalError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("TraversalError should unwrap to ErrNotExist, got %v", err)
	}
	if len(rec.percents) != 0 {
		t.Errorf("Expected no progress updates, got %v", rec.percents)
	}
	final := rec.terminal(t)
	if final.Kind != Failed || final.Message != MsgFailed {
		t.Errorf("Terminal status = %+v", final)
	}
	if failures.Len() == 0 {
		t.Error("Traversal error should be written to the failure log")
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"empty source", Options{Destination: "/dest"}, ErrEmptySource},
		{"empty destination", Options{Source: "/src"}, ErrEmptyDestination},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			rec := &recorder{}

			_, err := New(fs, zerolog.Nop()).Run(context.Background(), tc.opts, rec)
			if !errors.Is(err, tc.wantErr) || !errors.Is(err, ErrConfig) {
				t.Fatalf("Run() error = %v, want %v", err, tc.wantErr)
			}
			if final := rec.terminal(t); final.Kind != Failed {
				t.Errorf("Terminal status = %+v", final)
			}
			if ok, _ := afero.DirExists(fs, "/dest"); ok {
				t.Error("Destination must not be created for a configuration error")
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/1.txt": "1",
		"/src/2.txt": "2",
		"/src/3.txt": "3",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	obs := Multi{rec, ObserverFuncs{OnFile: func(mover.Result) { cancel() }}}

	stats, err := New(fs, zerolog.Nop()).Run(ctx, Options{Source: "/src", Destination: "/dest"}, obs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if stats.Processed != 1 || stats.Status != internal.BatchCancelled {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if final := rec.terminal(t); final.Kind != Cancelled {
		t.Errorf("Terminal status = %+v", final)
	}
	if ok, _ := afero.Exists(fs, "/src/2.txt"); !ok {
		t.Error("Files after cancellation must not be moved")
	}
}

func TestRun_DestinationInsideSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/a.jpg":                 "new",
		"/src/sorted/images/old.jpg": "old",
	})

	stats, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/src/sorted",
	}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected the destination tree to be excluded, got total %d", stats.Total)
	}
	if got := readFile(t, fs, "/src/sorted/images/old.jpg"); got != "old" {
		t.Errorf("old.jpg = %q", got)
	}
}

func TestRun_SkipPolicyAndDryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/a.jpg":         "new",
		"/src/song.mp3":      "mp3",
		"/dest/images/a.jpg": "old",
	})

	stats, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/dest",
		Policy:      resolver.Skip,
		DryRun:      true,
	}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Skipped != 1 || stats.Moved != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if ok, _ := afero.Exists(fs, "/src/song.mp3"); !ok {
		t.Error("Dry run must not move files")
	}
}

func TestRun_BySizeAndDate(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/src/doc.pdf": "pdf"})

	info, err := fs.Stat("/src/doc.pdf")
	if err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	_, err = New(fs, zerolog.Nop()).Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/dest",
		Mode:        planner.Mode{Layout: planner.ByDate, Monthly: true},
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	expected := filepath.Join("/dest", "documents", info.ModTime().Format("2006-01"), "doc.pdf")
	if len(rec.results) != 1 || rec.results[0].Destination != expected {
		t.Errorf("Destination = %+v, want %s", rec.results, expected)
	}

	writeFiles(t, fs, map[string]string{"/src2/doc.pdf": "pdf"})
	rec = &recorder{}
	_, err = New(fs, zerolog.Nop()).Run(context.Background(), Options{
		Source:      "/src2",
		Destination: "/dest",
		Mode:        planner.Mode{Layout: planner.BySize},
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	expected = filepath.Join("/dest", "documents", planner.SmallFiles, "doc.pdf")
	if len(rec.results) != 1 || rec.results[0].Destination != expected {
		t.Errorf("Destination = %+v, want %s", rec.results, expected)
	}
}

func TestChannelObserver(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/src/a.jpg": "a", "/src/b.jpg": "b"})

	obs := NewChannelObserver(0)
	done := make(chan error, 1)
	go func() {
		_, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{Source: "/src", Destination: "/dest"}, obs)
		done <- err
	}()

	var kinds []EventKind
	var last Event
	for ev := range obs.Events() {
		kinds = append(kinds, ev.Kind)
		last = ev
	}

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 每个文件：进度、状态、结果；最后一条终止状态
	if len(kinds) != 7 {
		t.Errorf("Expected 7 events, got %d: %v", len(kinds), kinds)
	}
	if last.Kind != StatusEvent || last.Status.Kind != Completed {
		t.Errorf("Last event = %+v, want completed status", last)
	}
}

func TestRun_SkipHidden(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/a.pdf":         "a",
		"/src/.env":          "secret",
		"/src/.cache/b.jpg":  "b",
		"/src/sub/.hidden.c": "c",
	})

	s := New(fs, zerolog.Nop())
	stats, err := s.Run(context.Background(), Options{Source: "/src", Destination: "/dst", SkipHidden: true}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Total != 1 || stats.Moved != 1 {
		t.Errorf("Expected only the visible file, got %+v", stats)
	}
	if ok, _ := afero.Exists(fs, "/src/.env"); !ok {
		t.Error("Hidden file should stay in the source")
	}
}

func TestRun_InPlace(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/" + internal.LockFileName: "",
		"/data/b.txt":                    "b",
		"/data/images/a.jpg":             "a",
	})

	for run := 0; run < 2; run++ {
		stats, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{Source: "/data", Destination: "/data"}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.Total != 2 || stats.Failed != 0 || stats.Renamed != 0 {
			t.Errorf("Run %d: unexpected stats %+v", run, stats)
		}
	}

	if got := readFile(t, fs, "/data/images/a.jpg"); got != "a" {
		t.Errorf("images/a.jpg = %q", got)
	}
	if got := readFile(t, fs, "/data/others/b.txt"); got != "b" {
		t.Errorf("others/b.txt = %q", got)
	}
	if ok, _ := afero.Exists(fs, "/data/images/a_1.jpg"); ok {
		t.Error("File already in place must not be renamed")
	}
	if ok, _ := afero.Exists(fs, "/data/"+internal.LockFileName); !ok {
		t.Error("Lock file must stay in the destination root")
	}
	if ok, _ := afero.Exists(fs, "/data/others/"+internal.LockFileName); ok {
		t.Error("Lock file must not be sorted")
	}
}

func TestRun_DryRunSameName(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/x/a.jpg": "x",
		"/src/y/a.jpg": "y",
	})

	rec := &recorder{}
	stats, err := New(fs, zerolog.Nop()).Run(context.Background(), Options{
		Source:      "/src",
		Destination: "/dest",
		DryRun:      true,
	}, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Moved != 2 || stats.Renamed != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if len(rec.results) != 2 ||
		rec.results[0].Destination != "/dest/images/a.jpg" ||
		rec.results[1].Destination != "/dest/images/a_1.jpg" {
		t.Errorf("Unexpected previews: %+v", rec.results)
	}
}
