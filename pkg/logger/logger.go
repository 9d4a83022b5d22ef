package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var Logger *zerolog.Logger

// ParseLevel 将配置中的级别字符串转换为 zerolog 级别，无法识别时返回 info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init 初始化 zerolog 日志
// level: 日志级别 ("debug", "info", "warn", "error")
// file: 日志文件路径，为空时仅输出到控制台
func Init(level string, file string) error {
	return InitWithWriter(os.Stderr, level, file)
}

// InitWithWriter 与 Init 相同，但控制台输出写入 out
func InitWithWriter(out io.Writer, level string, file string) error {
	var output io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}

	if file != "" {
		// 文件中保留 JSON 格式，控制台使用友好格式
		fileWriter, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		output = zerolog.MultiLevelWriter(output, fileWriter)
	}

	logger := zerolog.New(output).With().Timestamp().Logger().Level(ParseLevel(level))

	Logger = &logger
	return nil
}

// Get 返回全局 logger 实例
// 如果 logger 未初始化，返回一个默认的 logger（输出到 /dev/null）
func Get() *zerolog.Logger {
	if Logger == nil {
		logger := zerolog.New(io.Discard)
		Logger = &logger
	}
	return Logger
}
