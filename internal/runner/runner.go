package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/panjf2000/ants/v2"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

var (
	// ErrBusy 已有批次在运行
	ErrBusy = errors.New("已有批次正在运行")
	// ErrLocked 目标目录被另一个进程锁定
	ErrLocked = errors.New("目标目录正被另一个进程整理")

	errAborted = errors.New("批次异常终止")
)

// Result 批次结束后的返回值
type Result struct {
	Stats *internal.BatchStats
	Err   error
}

// Runner 在单 worker 的 goroutine 池中运行批次，同一时间最多一个活动批次
type Runner struct {
	sorter *sorter.Sorter
	pool   *ants.Pool
	busy   atomic.Bool
	wg     sync.WaitGroup

	// Locking 为 true 时在目标目录中持有文件锁，防止多个进程同时整理同一目录
	Locking bool
}

func New(s *sorter.Sorter) (*Runner, error) {
	logger.Get().Debug().Msg("创建批次运行池")

	pool, err := ants.NewPool(1, ants.WithPanicHandler(func(p any) {
		logger.Get().Error().Msgf("批次运行时发生 panic: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("创建 goroutine 池失败: %w", err)
	}

	return &Runner{sorter: s, pool: pool}, nil
}

// Busy 报告是否有批次正在运行
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Start 在后台启动批次并立即返回
// 结果通道在批次结束后收到一个值并关闭；有批次在运行时返回 ErrBusy
func (r *Runner) Start(ctx context.Context, opts sorter.Options, obs sorter.Observer) (<-chan Result, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	lock, err := r.acquire(opts)
	if err != nil {
		r.busy.Store(false)
		return nil, err
	}

	results := make(chan Result, 1)
	r.wg.Add(1)

	task := func() {
		res := Result{Err: errAborted}
		defer func() {
			release(lock)
			r.busy.Store(false)
			results <- res
			close(results)
			r.wg.Done()
		}()

		res.Stats, res.Err = r.sorter.Run(ctx, opts, obs)
	}

	if err := r.pool.Submit(task); err != nil {
		release(lock)
		r.wg.Done()
		r.busy.Store(false)
		return nil, fmt.Errorf("提交批次失败: %w", err)
	}

	return results, nil
}

// Run 启动批次并等待其结束
func (r *Runner) Run(ctx context.Context, opts sorter.Options, obs sorter.Observer) (*internal.BatchStats, error) {
	results, err := r.Start(ctx, opts, obs)
	if err != nil {
		return nil, err
	}
	res := <-results
	return res.Stats, res.Err
}

// Wait 等待当前批次结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close 等待当前批次结束并释放池
func (r *Runner) Close() {
	r.wg.Wait()
	r.pool.Release()
}

func (r *Runner) acquire(opts sorter.Options) (*flock.Flock, error) {
	if !r.Locking || opts.DryRun || opts.Validate() != nil {
		return nil, nil
	}

	dest, err := filepath.Abs(opts.Destination)
	if err != nil {
		return nil, fmt.Errorf("解析目标目录失败: %w", err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("创建目标目录失败: %w", err)
	}

	lock := flock.New(filepath.Join(dest, internal.LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取目录锁失败: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dest)
	}

	logger.Get().Debug().Msgf("已锁定目标目录: %s", dest)
	return lock, nil
}

func release(lock *flock.Flock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		logger.Get().Warn().Err(err).Msg("释放目录锁失败")
	}
}
