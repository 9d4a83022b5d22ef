package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moyu-x/file-sorter/config"
	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/logger"
	"github.com/moyu-x/file-sorter/pkg/mover"
	"github.com/moyu-x/file-sorter/pkg/sorter"
)

// ErrNotFound 找不到指定批次
var ErrNotFound = errors.New("批次不存在")

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	mode TEXT NOT NULL,
	policy TEXT NOT NULL,
	dry_run INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	total INTEGER NOT NULL DEFAULT 0,
	processed INTEGER NOT NULL DEFAULT 0,
	moved INTEGER NOT NULL DEFAULT 0,
	renamed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at);

CREATE TABLE IF NOT EXISTS moves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL,
	source TEXT NOT NULL,
	destination TEXT NOT NULL,
	category TEXT NOT NULL,
	outcome TEXT NOT NULL,
	renamed INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_moves_batch ON moves(batch_id);
`

// Batch 一条批次记录
type Batch struct {
	internal.BatchStats
	Source      string
	Destination string
	Mode        string
	Policy      string
	DryRun      bool
}

// Move 批次中单个文件的处理记录
type Move struct {
	Source      string
	Destination string
	Category    string
	Outcome     string
	Renamed     bool
	Size        int64
	Error       string
}

// Journal 基于 SQLite 的批次历史
type Journal struct {
	conn *sql.DB
}

// Open 打开（必要时创建）历史数据库，路径支持 ~/ 前缀
func Open(dbPath string) (*Journal, error) {
	expandedPath, err := config.ExpandPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("扩展数据库路径失败: %w", err)
	}

	logger.Get().Debug().Msgf("打开历史数据库: %s", expandedPath)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	conn, err := sql.Open("sqlite", expandedPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &Journal{conn: conn}, nil
}

// Close 关闭数据库连接
func (j *Journal) Close() error {
	return j.conn.Close()
}

// Save 在一个事务中写入批次及其文件记录
func (j *Journal) Save(batch Batch, moves []Move) error {
	tx, err := j.conn.Begin()
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO batches
		(id, source, destination, mode, policy, dry_run, status, total, processed, moved, renamed, skipped, failed, bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.Source, batch.Destination, batch.Mode, batch.Policy, batch.DryRun,
		string(batch.Status), batch.Total, batch.Processed, batch.Moved, batch.Renamed, batch.Skipped, batch.Failed, batch.Bytes,
		batch.StartedAt.UnixNano(), batch.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("写入批次记录失败: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO moves
		(batch_id, source, destination, category, outcome, renamed, size, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, m := range moves {
		if _, err := stmt.Exec(batch.ID, m.Source, m.Destination, m.Category, m.Outcome, m.Renamed, m.Size, m.Error); err != nil {
			return fmt.Errorf("写入文件记录失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	logger.Get().Debug().Str("batch", batch.ID).Int("moves", len(moves)).Msg("批次已写入历史")
	return nil
}

const batchColumns = `id, source, destination, mode, policy, dry_run, status, total, processed, moved, renamed, skipped, failed, bytes, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Batch, error) {
	var (
		b        Batch
		status   string
		started  int64
		finished int64
	)
	err := row.Scan(&b.ID, &b.Source, &b.Destination, &b.Mode, &b.Policy, &b.DryRun, &status,
		&b.Total, &b.Processed, &b.Moved, &b.Renamed, &b.Skipped, &b.Failed, &b.Bytes, &started, &finished)
	if err != nil {
		return b, err
	}
	b.Status = internal.BatchStatus(status)
	b.StartedAt = time.Unix(0, started)
	b.FinishedAt = time.Unix(0, finished)
	return b, nil
}

// Recent 按开始时间倒序返回最近的批次
func (j *Journal) Recent(limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.conn.Query(`SELECT `+batchColumns+` FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("读取行数据失败: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果集失败: %w", err)
	}

	return batches, nil
}

// Batch 按 ID 或唯一的 ID 前缀查找批次
func (j *Journal) Batch(id string) (*Batch, error) {
	rows, err := j.conn.Query(`SELECT `+batchColumns+` FROM batches WHERE substr(id, 1, length(?)) = ? LIMIT 2`, id, id)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	var found []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("读取行数据失败: %w", err)
		}
		found = append(found, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果集失败: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("批次 ID 前缀 %s 不唯一", id)
	}
}

// Moves 按处理顺序返回批次中的文件记录
func (j *Journal) Moves(batchID string) ([]Move, error) {
	rows, err := j.conn.Query(`SELECT source, destination, category, outcome, renamed, size, error
		FROM moves WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.Source, &m.Destination, &m.Category, &m.Outcome, &m.Renamed, &m.Size, &m.Error); err != nil {
			return nil, fmt.Errorf("读取行数据失败: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果集失败: %w", err)
	}

	return moves, nil
}

// Recorder 收集批次中每个文件的处理结果，批次结束后交给 Journal.Save
type Recorder struct {
	mu    sync.Mutex
	moves []Move
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Progress(int) {}

func (r *Recorder) Status(sorter.Status) {}

func (r *Recorder) FileDone(result mover.Result) {
	m := Move{
		Source:      result.Task.Path,
		Destination: result.Destination,
		Category:    result.Decision.Category,
		Outcome:     result.Outcome.String(),
		Renamed:     result.Renamed,
		Size:        result.Task.Size,
	}
	if result.Err != nil {
		m.Error = result.Err.Error()
	}

	r.mu.Lock()
	r.moves = append(r.moves, m)
	r.mu.Unlock()
}

// Moves 返回已收集记录的副本
func (r *Recorder) Moves() []Move {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Move(nil), r.moves...)
}
