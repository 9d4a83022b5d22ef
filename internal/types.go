package internal

import "time"

// 待处理文件，遍历源目录时创建，处理完成后丢弃
type FileTask struct {
	Path    string    // 源文件绝对路径
	Name    string    // 文件名
	Ext     string    // 小写扩展名（带点前缀，可能为空）
	Size    int64     // 字节数
	ModTime time.Time // 修改时间
}

// 批次状态
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
	BatchCancelled BatchStatus = "cancelled"
)

// 批次统计
type BatchStats struct {
	ID         string
	Total      int
	Processed  int
	Moved      int
	Renamed    int
	Skipped    int
	Failed     int
	Bytes      int64
	Status     BatchStatus
	StartedAt  time.Time
	FinishedAt time.Time
}

// Remaining 返回尚未处理的文件数
func (s *BatchStats) Remaining() int {
	return s.Total - s.Processed
}

// Percent 返回向下取整的完成百分比，总数为 0 时返回 100
func (s *BatchStats) Percent() int {
	if s.Total == 0 {
		return 100
	}
	return s.Processed * 100 / s.Total
}
