package internal

const (
	// 历史数据库默认路径
	DefaultJournalPath = "~/.file-sorter/history.db"

	// 目标目录中的锁文件名
	LockFileName = ".file-sorter.lock"

	// 事件通道缓冲区大小
	DefaultBufferSize = 100
)
