package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/classifier"
	"github.com/moyu-x/file-sorter/pkg/logger"
)

type Config struct {
	Sort struct {
		Source        string
		Destination   string
		Overwrite     string
		Mode          string
		ByMonth       bool `mapstructure:"by_month"`
		IncludeHidden bool `mapstructure:"include_hidden"`
	}
	Logging struct {
		Level string
		File  string
	}
	FailureLog struct {
		Path string
	} `mapstructure:"failure_log"`
	Journal struct {
		Enabled bool
		Path    string
	}
	Categories []classifier.Category
}

// Load 读取配置文件、环境变量（FILE_SORTER_ 前缀）和默认值
// file 为空时依次在 ~/.file-sorter、当前目录和 /etc/file-sorter 中查找 config.yaml
func Load(file string) (*Config, error) {
	v := viper.GetViper()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("$HOME/.file-sorter")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/file-sorter")
	}

	return Decode(v)
}

// Decode 在已配置好来源的 viper 实例上读取并解析配置
// 找不到配置文件时使用默认值
func Decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("FILE_SORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		logger.Get().Debug().Msg("未找到配置文件，使用默认配置")
	} else {
		logger.Get().Debug().Msgf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetDefaults 写入全部默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sort.overwrite", "rename")
	v.SetDefault("sort.mode", "category")
	v.SetDefault("sort.by_month", false)
	v.SetDefault("sort.include_hidden", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("failure_log.path", logger.DefaultFailureLog)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", internal.DefaultJournalPath)
}

// Table 返回配置的分类表，未配置时使用内置表
func (c *Config) Table() (*classifier.Table, error) {
	if len(c.Categories) == 0 {
		return classifier.DefaultTable(), nil
	}
	return classifier.NewTable(c.Categories)
}

// ExpandPath 展开以 ~/ 开头的路径
func ExpandPath(path string) (string, error) {
	if len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\') {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
