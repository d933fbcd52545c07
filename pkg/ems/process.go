package ems

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput  = errors.New("输入必须是存在的 .html 文件")
	ErrInvalidOutput = errors.New("输出必须是 .csv 文件")
)

// CheckInput 输入文件必须存在且以 .html 结尾
func CheckInput(path string) error {
	if path == "" || !strings.HasSuffix(path, ".html") {
		return errors.Wrapf(ErrInvalidInput, "%q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrInvalidInput, "%q: %v", path, err)
	}
	if info.IsDir() {
		return errors.Wrapf(ErrInvalidInput, "%q 是目录", path)
	}
	return nil
}

// CheckOutput 输出文件必须以 .csv 结尾
func CheckOutput(path string) error {
	if path == "" || !strings.HasSuffix(path, ".csv") {
		return errors.Wrapf(ErrInvalidOutput, "%q", path)
	}
	return nil
}

// ProcessFile 把 EMS 报表转换为 csv，返回写入的事件数
// 报表格式错误时仍然写出已解析的事件，同时返回错误
func ProcessFile(input, output string) (int, error) {
	if err := CheckInput(input); err != nil {
		return 0, err
	}
	if err := CheckOutput(output); err != nil {
		return 0, err
	}

	in, err := os.Open(input)
	if err != nil {
		return 0, errors.Wrapf(err, "打开 %s 失败", input)
	}
	defer in.Close()

	events, parseErr := Parse(in)
	if parseErr != nil {
		zap.S().Warnf("处理 %s 时出错: %v", filepath.Base(input), parseErr)
	}

	out, err := os.Create(output)
	if err != nil {
		return 0, errors.Wrapf(err, "创建 %s 失败", output)
	}
	defer out.Close()

	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return 0, err
	}
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, errors.Wrapf(err, "关闭 %s 失败", output)
	}

	zap.S().Infof("已解析 %d 个事件到 %s", len(events), filepath.Base(output))
	return len(events), parseErr
}
