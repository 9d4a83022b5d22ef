package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/moyu-x/file-sorter/config"
	"github.com/moyu-x/file-sorter/pkg/logger"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "file-sorter",
	Short: "按扩展名、日期或大小整理目录中的文件",
	Long: `File Sorter 是一个命令行工具，将源目录中的文件整理到目标目录。

主要功能:
- 按分类、扩展名、修改日期或文件大小组织文件
- 目标文件已存在时自动重命名（name_1.ext）或跳过
- 跨设备移动时复制并校验内容后再删除源文件
- 单个文件失败写入失败日志，不中断批次
- 在 SQLite 中记录每个批次的历史`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appCfg = cfg

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logger.Init(level, cfg.Logging.File)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 $HOME/.file-sorter/config.yaml）")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "显示调试日志")
}
