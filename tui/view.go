package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

func (m *model) View() string {
	switch m.state {
	case StateRunning:
		return m.processingView()
	case StateComplete:
		return m.completeView(successTitleStyle.Render("✅ 整理完成！"))
	case StateCancelled:
		return m.completeView(errorTitleStyle.Render("⏹ 已取消"))
	case StateFailed:
		return m.failedView()
	default:
		return "未知状态"
	}
}

func (m *model) processingView() string {
	var b strings.Builder

	title := "🔄 正在整理文件..."
	if m.cancelling {
		title = "⏳ 正在取消..."
	}
	b.WriteString(m.spinner.View() + " " + titleStyle.Render(title) + "\n\n")

	b.WriteString(labelStyle.Render("源目录：") + " " + m.opts.Source + "\n")
	b.WriteString(labelStyle.Render("目标目录：") + " " + m.opts.Destination + "\n\n")

	b.WriteString(m.progressBar.ViewAs(float64(m.percent)/100) + "\n")
	if m.status != "" {
		b.WriteString(hintStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(statsBoxStyle.Render(m.renderStats()) + "\n\n")

	if m.currentFile != "" {
		b.WriteString(labelStyle.Render("当前文件：") + "\n")
		b.WriteString(filePathStyle.Render(m.currentFile) + "\n\n")
	}

	b.WriteString(hintStyle.Render("Ctrl+C 取消"))

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}

func (m *model) completeView(title string) string {
	var b strings.Builder

	b.WriteString(title + "\n\n")
	b.WriteString(statsBoxStyle.Render(m.renderStats()) + "\n\n")

	if m.failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("有 %d 个文件处理失败，详情见失败日志", m.failed)) + "\n\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n")
	b.WriteString(hintStyle.Render("按 Enter 或 q 退出") + "\n")

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}

func (m *model) failedView() string {
	var b strings.Builder

	b.WriteString(errorTitleStyle.Render("❌ 整理失败") + "\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n")
	b.WriteString(hintStyle.Render("按 Enter 或 q 退出") + "\n")

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}

func (m *model) renderStats() string {
	var b strings.Builder
	b.WriteString("📊 统计：\n\n")
	b.WriteString(fmt.Sprintf("  已处理：  %d / %d\n", m.processed, m.total))
	b.WriteString(fmt.Sprintf("  已移动：  %d 个文件（%s）\n", m.moved, humanize.IBytes(uint64(m.bytes))))
	b.WriteString(fmt.Sprintf("  重命名：  %d 个文件\n", m.renamed))
	b.WriteString(fmt.Sprintf("  已跳过：  %d 个文件\n", m.skipped))
	b.WriteString(fmt.Sprintf("  失败：    %d 个文件\n", m.failed))
	if m.lastErr != "" {
		b.WriteString("\n  最近错误：" + m.lastErr + "\n")
	}
	return b.String()
}
