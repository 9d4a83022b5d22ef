package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultFailureLog 失败日志的默认文件名
const DefaultFailureLog = "file_sorting_log.txt"

// lazyFile 在第一次写入时才以追加模式打开文件，
// 没有失败记录的运行不会创建或修改日志文件
type lazyFile struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return 0, err
		}
		l.file = f
	}
	return l.file.Write(p)
}

func (l *lazyFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// FailureLog 追加写入的失败日志，每行一条 JSON 记录（时间、级别、消息及字段）
type FailureLog struct {
	zerolog.Logger
	out *lazyFile
}

// OpenFailureLog 创建指向 path 的失败日志，文件延迟到第一条记录时才打开
func OpenFailureLog(path string) *FailureLog {
	if path == "" {
		path = DefaultFailureLog
	}
	out := &lazyFile{path: path}
	l := zerolog.New(out).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
	return &FailureLog{Logger: l, out: out}
}

// Close 关闭已打开的日志文件
func (f *FailureLog) Close() error {
	return f.out.Close()
}
