package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/moyu-x/file-sorter/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history [batch-id]",
	Short: "查看历史批次",
	Long:  `不带参数时列出最近的批次；给出批次 ID（或唯一前缀）时列出该批次中每个文件的处理结果。`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, err := journal.Open(appCfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	if len(args) == 1 {
		return printBatch(cmd, j, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	batches, err := j.Recent(limit)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "暂无历史记录")
		return nil
	}

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		status := string(b.Status)
		if b.DryRun {
			status += " (dry-run)"
		}
		rows = append(rows, []string{
			shortID(b.ID),
			humanize.Time(b.StartedAt),
			status,
			b.Mode,
			fmt.Sprintf("%d/%d", b.Processed, b.Total),
			strconv.Itoa(b.Moved),
			strconv.Itoa(b.Failed),
			humanize.IBytes(uint64(b.Bytes)),
			b.Source + " → " + b.Destination,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"批次", "开始", "状态", "方式", "处理", "移动", "失败", "数据量", "目录"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func printBatch(cmd *cobra.Command, j *journal.Journal, id string) error {
	b, err := j.Batch(id)
	if err != nil {
		return err
	}

	moves, err := j.Moves(b.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "批次 %s  %s  %s → %s\n", b.ID, b.Status, b.Source, b.Destination)

	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		dest := m.Destination
		if m.Error != "" {
			dest = m.Error
		}
		rows = append(rows, []string{m.Outcome, m.Category, m.Source, dest})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"结果", "分类", "源文件", "目标"}, rows, nil))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "显示的批次数量")

	rootCmd.AddCommand(historyCmd)
}
