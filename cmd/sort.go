package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moyu-x/file-sorter/app"
	"github.com/moyu-x/file-sorter/internal"
	"github.com/moyu-x/file-sorter/pkg/logger"
)

var sortCmd = &cobra.Command{
	Use:   "sort [source] [destination]",
	Short: "将源目录中的文件整理到目标目录",
	Long: `遍历源目录（含子目录，不跟随符号链接）中的所有文件，按选定方式移动到目标目录:
  category   按扩展名分类（images、videos、documents ...，未知类型归入 others）
  extension  按扩展名大写命名的目录（PDF、JPG ...，无扩展名归入 NO_EXTENSION）
  date       按修改年份，--by-month 时按年-月
  size       Small Files (<1MB)、Medium Files (1MB-1GB)、Large Files (>1GB)

目标文件已存在时，rename 策略使用 name_1.ext、name_2.ext ...，skip 策略保留源文件。
单个文件失败会写入失败日志并继续处理其余文件。`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSort,
}

func runSort(cmd *cobra.Command, args []string) error {
	cfg := appCfg

	source := cfg.Sort.Source
	destination := cfg.Sort.Destination
	if len(args) > 0 {
		source = args[0]
	}
	if len(args) > 1 {
		destination = args[1]
	}

	table, err := cfg.Table()
	if err != nil {
		return fmt.Errorf("加载分类配置失败: %w", err)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	useTUI, _ := cmd.Flags().GetBool("tui")
	noHistory, _ := cmd.Flags().GetBool("no-history")

	opts := &app.SortOptions{
		Source:      source,
		Destination: destination,
		Overwrite:   cfg.Sort.Overwrite,
		Mode:        cfg.Sort.Mode,
		ByMonth:     cfg.Sort.ByMonth,
		DryRun:      dryRun,
		SkipHidden:  !cfg.Sort.IncludeHidden,
		Table:       table,
		FailureLog:  cfg.FailureLog.Path,
		Journal:     cfg.Journal.Enabled && !noHistory,
		JournalPath: cfg.Journal.Path,
		TUI:         useTUI,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := app.RunSort(ctx, opts, newConsoleObserver(cmd.OutOrStdout()))
	if stats != nil && stats.Total > 0 {
		printSummary(cmd, stats, opts)
	}
	return err
}

func printSummary(cmd *cobra.Command, stats *internal.BatchStats, opts *app.SortOptions) {
	elapsed := stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond)

	rows := [][]string{
		{"批次", stats.ID},
		{"状态", string(stats.Status)},
		{"已处理", fmt.Sprintf("%d / %d", stats.Processed, stats.Total)},
		{"已移动", strconv.Itoa(stats.Moved)},
		{"重命名", strconv.Itoa(stats.Renamed)},
		{"已跳过", strconv.Itoa(stats.Skipped)},
		{"失败", strconv.Itoa(stats.Failed)},
		{"数据量", humanize.IBytes(uint64(stats.Bytes))},
		{"耗时", elapsed.String()},
	}
	if opts.DryRun {
		rows = append(rows, []string{"预演", "是，未修改任何文件"})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"项目", "值"}, rows, nil))

	if stats.Failed > 0 {
		logger.Get().Warn().Msgf("有 %d 个文件处理失败，详情见 %s", stats.Failed, opts.FailureLog)
	}
}

func init() {
	sortCmd.Flags().StringP("source", "s", "", "源目录")
	sortCmd.Flags().StringP("destination", "d", "", "目标目录")
	sortCmd.Flags().StringP("overwrite", "o", "rename", "目标已存在时的策略: rename 或 skip")
	sortCmd.Flags().StringP("mode", "m", "category", "组织方式: category、extension、date 或 size")
	sortCmd.Flags().Bool("by-month", false, "date 模式下按年-月建立目录")
	sortCmd.Flags().Bool("include-hidden", true, "包含以点开头的文件和目录")
	sortCmd.Flags().String("failure-log", "", "失败日志路径（默认 file_sorting_log.txt）")
	sortCmd.Flags().Bool("dry-run", false, "预览模式，不实际移动文件")
	sortCmd.Flags().Bool("tui", false, "使用终端界面显示进度")
	sortCmd.Flags().Bool("no-history", false, "不记录本次批次的历史")

	bindings := map[string]string{
		"sort.source":         "source",
		"sort.destination":    "destination",
		"sort.overwrite":      "overwrite",
		"sort.mode":           "mode",
		"sort.by_month":       "by-month",
		"sort.include_hidden": "include-hidden",
		"failure_log.path":    "failure-log",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, sortCmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "绑定参数 %s 失败: %v\n", flag, err)
		}
	}

	rootCmd.AddCommand(sortCmd)
}
