package util

import (
	"os"

	"github.com/pkg/errors"
)

const DefaultDirPermissions = 0755

// CreateDirectoryIfNotExists 目录不存在时创建
func CreateDirectoryIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "创建目录 %s 失败", dir)
		}
	}
	return nil
}

// TruncateFile 创建文件，已存在时清空
func TruncateFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "创建 %s 失败", path)
	}
	return errors.Wrapf(f.Close(), "关闭 %s 失败", path)
}
