package service

import (
	"context"
	"os"
	"strings"
	"time"

	"ems-director/config"
	"ems-director/pkg/model"
	"ems-director/pkg/util"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Director 按顺序完成一次运行：
// 清空输出文件，读取输入中的地址，下载，调用处理程序，删除下载文件
type Director struct {
	cfg        *config.DirectorConfig
	downloader Downloader
	processor  Processor
	recorder   RunRecorder
	now        func() time.Time
}

func NewDirector(cfg *config.DirectorConfig, downloader Downloader, processor Processor) *Director {
	return &Director{
		cfg:        cfg,
		downloader: downloader,
		processor:  processor,
		now:        time.Now,
	}
}

// WithRecorder 设置运行记录的保存位置，为 nil 时不记录
func (d *Director) WithRecorder(recorder RunRecorder) *Director {
	d.recorder = recorder
	return d
}

// Run 执行一次完整流程，返回的运行记录总是非空
func (d *Director) Run(ctx context.Context) (*model.RunRecord, error) {
	rec := &model.RunRecord{
		ID:            newID(),
		OutputPath:    d.cfg.OutputPath,
		DownloadMode:  d.downloader.Mode(),
		ProcessorMode: d.processor.Mode(),
		Events:        UnknownEvents,
		Status:        model.RunStatusRunning,
		StartedAt:     d.now(),
	}

	err := d.run(ctx, rec)

	rec.FinishedAt = d.now()
	if err != nil {
		rec.Status = model.RunStatusFailed
		rec.ErrorReason = err.Error()
	} else {
		rec.Status = model.RunStatusSucceeded
	}
	d.record(ctx, rec)
	return rec, err
}

func (d *Director) run(ctx context.Context, rec *model.RunRecord) (err error) {
	if err := util.TruncateFile(d.cfg.OutputPath); err != nil {
		return err
	}

	src, err := ReadSource(d.cfg.InputPath)
	if err != nil {
		return err
	}
	rec.URL = src

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "运行已取消")
	}
	downloaded, err := d.downloader.Download(ctx, src)
	if err != nil {
		return errors.Wrapf(err, "下载 %s 失败", src)
	}
	rec.DownloadedPath = downloaded

	// 无论处理结果如何都清理下载文件
	if !d.cfg.KeepDownload {
		defer func() {
			if rmErr := os.Remove(downloaded); rmErr != nil {
				err = multierr.Append(err, errors.Wrapf(rmErr, "删除下载文件 %s 失败", downloaded))
				return
			}
			zap.S().Debugf("已删除下载文件 %s", downloaded)
		}()
	}

	n, err := d.processor.Process(ctx, downloaded, d.cfg.OutputPath)
	rec.Events = n
	if err != nil {
		return errors.Wrapf(err, "处理 %s 失败", downloaded)
	}

	zap.S().Infof("运行完成: %s -> %s, 事件数 %d", src, d.cfg.OutputPath, n)
	return nil
}

func (d *Director) record(ctx context.Context, rec *model.RunRecord) {
	if d.recorder == nil {
		return
	}
	// 运行被取消时仍然写入记录
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.recorder.Save(saveCtx, rec); err != nil {
		zap.S().Warnf("保存运行记录 %s 失败: %v", rec.ID, err)
	}
}

// ReadSource 读取输入文件并去掉首尾空白
func ReadSource(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "读取输入文件 %s 失败", path)
	}
	src := strings.TrimSpace(string(raw))
	if src == "" {
		return "", errors.Wrapf(ErrEmptyInput, "%s", path)
	}
	return src, nil
}
