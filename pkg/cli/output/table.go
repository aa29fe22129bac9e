// Package output CLI输出工具：彩色表格、JSON和状态消息
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/LENAX/task-queue/pkg/core/task"
)

// Table 简单表格输出
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable 创建表格
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		widths:  widths,
	}
}

// AddRow 添加行，多余的列被忽略
func (t *Table) AddRow(row ...string) {
	for i, cell := range row {
		if i < len(t.widths) {
			if n := utf8.RuneCountInString(cell); n > t.widths[i] {
				t.widths[i] = n
			}
		}
	}
	t.rows = append(t.rows, row)
}

// Len 返回数据行数
func (t *Table) Len() int {
	return len(t.rows)
}

// Render 渲染表格到 w
func (t *Table) Render(w io.Writer) {
	headerColor := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		headerColor.Fprint(w, pad(h, t.widths[i]))
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", t.widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(t.widths) {
				fmt.Fprint(w, pad(cell, t.widths[i]))
			}
		}
		fmt.Fprintln(w)
	}
}

// pad 按字符数右侧补空格
func pad(s string, width int) string {
	n := width - utf8.RuneCountInString(s)
	if n < 0 {
		n = 0
	}
	return s + strings.Repeat(" ", n) + "  "
}

// TaskTable 根据任务快照生成表格
func TaskTable(snaps []task.Snapshot) *Table {
	t := NewTable("ID", "TITLE", "STATUS", "RESULT", "ERROR")
	for _, s := range snaps {
		result := "-"
		if s.Result != nil {
			result = fmt.Sprint(s.Result)
		}
		errMsg := "-"
		if s.DoneWithErrors {
			errMsg = fmt.Sprintf("[%d] %s", s.ErrorCode, s.ErrorMessage)
		}
		t.AddRow(shortID(s.ID), s.Title, FormatStatus(s.Status()), result, errMsg)
	}
	return t
}

// FormatStatus 状态加图标
func FormatStatus(status string) string {
	switch status {
	case "done":
		return "✅ done"
	case "failed":
		return "❌ failed"
	case "running":
		return "🔄 running"
	case "pending":
		return "⏳ pending"
	default:
		return status
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
