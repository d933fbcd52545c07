package ems

import (
	"bufio"
	"io"
	"strings"
	"time"

	"ems-director/pkg/model"

	"github.com/pkg/errors"
)

// CSVHeader Google Calendar 导入格式
const CSVHeader = "Subject,Start date,Start time,End date,End time,Description,Location"

const (
	outputDayLayout  = "01/02/2006"
	outputTimeLayout = "3:04 PM"
)

// Writer 按 Google Calendar 的 CSV 格式输出事件
// 每个字段都用双引号包裹，字段内的双引号替换为两个单引号
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) WriteHeader() error {
	return w.writeLine(CSVHeader)
}

func (w *Writer) Write(ev model.Event) error {
	return w.writeLine(FormatEvent(ev))
}

// Flush 把缓冲写入底层 writer
func (w *Writer) Flush() error {
	return errors.Wrap(w.w.Flush(), "写入 csv 失败")
}

func (w *Writer) writeLine(line string) error {
	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return errors.Wrap(err, "写入 csv 失败")
	}
	return nil
}

// FormatEvent 把事件转成一行 csv，不含换行
func FormatEvent(ev model.Event) string {
	fields := []string{
		ev.Subject,
		formatDay(ev.Start),
		formatTime(ev.Start),
		formatDay(ev.End),
		formatTime(ev.End),
		ev.Description,
		ev.Location,
	}
	for i, f := range fields {
		fields[i] = quote(f)
	}
	return strings.Join(fields, ",")
}

// 双引号只能用来包裹整个字段
func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, "''") + `"`
}

func formatDay(t time.Time) string {
	return t.Format(outputDayLayout)
}

func formatTime(t time.Time) string {
	return t.Format(outputTimeLayout)
}
