package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moyu-x/file-sorter/pkg/classifier"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "列出当前生效的分类及其扩展名",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := appCfg.Table()
		if err != nil {
			return fmt.Errorf("加载分类配置失败: %w", err)
		}

		rows := make([][]string, 0)
		for _, name := range table.Categories() {
			exts := strings.Join(table.Extensions(name), " ")
			if name == classifier.Others {
				exts = "（其余所有扩展名）"
			}
			rows = append(rows, []string{name, exts})
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"分类", "扩展名"}, rows, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
