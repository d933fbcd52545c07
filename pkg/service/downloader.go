package service

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"ems-director/config"
	"ems-director/pkg/util"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrEmptyInput = errors.New("输入文件内容为空")
	ErrInvalidURL = errors.New("无效的报表 URL")
)

const downloadFilePrefix = "ems-report-"

// Downloader 把输入文件中的地址变成本地可处理的文件路径
type Downloader interface {
	Download(ctx context.Context, src string) (string, error)
	Mode() string
}

var (
	_ Downloader = LocalDownloader{}
	_ Downloader = (*HTTPDownloader)(nil)
)

// NewDownloader 根据配置选择下载方式
func NewDownloader(cfg *config.DownloadConfig) (Downloader, error) {
	switch cfg.Mode {
	case config.DownloadModeLocal:
		return LocalDownloader{}, nil
	case config.DownloadModeHTTP:
		return NewHTTPDownloader(cfg), nil
	default:
		return nil, errors.Errorf("未知的下载模式: %q", cfg.Mode)
	}
}

// LocalDownloader 输入本身就是本地文件路径，原样返回
type LocalDownloader struct{}

func (LocalDownloader) Download(ctx context.Context, src string) (string, error) {
	if src == "" {
		return "", ErrEmptyInput
	}
	return src, nil
}

func (LocalDownloader) Mode() string {
	return config.DownloadModeLocal
}

// HTTPDownloader 通过 colly 抓取报表并保存到下载目录
type HTTPDownloader struct {
	cfg *config.DownloadConfig
}

func NewHTTPDownloader(cfg *config.DownloadConfig) *HTTPDownloader {
	return &HTTPDownloader{cfg: cfg}
}

func (d *HTTPDownloader) Mode() string {
	return config.DownloadModeHTTP
}

func (d *HTTPDownloader) Download(ctx context.Context, src string) (string, error) {
	u, err := ValidateURL(src)
	if err != nil {
		return "", err
	}
	if err := util.CreateDirectoryIfNotExists(d.cfg.Dir); err != nil {
		return "", err
	}
	target := filepath.Join(d.cfg.Dir, DownloadFileName(u))

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.cfg.RetryDelay):
			case <-ctx.Done():
				return "", errors.Wrap(ctx.Err(), "下载已取消")
			}
			zap.S().Infof("重试下载 %s, 第 %d 次", u, attempt+1)
		}

		lastErr = d.fetch(ctx, u.String(), target)
		if lastErr == nil {
			zap.S().Debugf("已下载 %s 到 %s", u, target)
			return target, nil
		}
		zap.S().Warnf("第 %d 次下载失败: %v", attempt+1, lastErr)

		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "下载已取消")
		}
	}
	return "", lastErr
}

func (d *HTTPDownloader) fetch(ctx context.Context, rawURL, target string) error {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(d.cfg.MaxBodySize),
	}
	if d.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(d.cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	if d.cfg.UserAgent == "" {
		extensions.RandomUserAgent(c)
	}
	if d.cfg.Timeout > 0 {
		c.SetRequestTimeout(d.cfg.Timeout)
	}

	var respErr, saveErr error
	saved := false
	c.OnError(func(r *colly.Response, err error) {
		respErr = errors.Wrapf(err, "请求 %s 失败 (HTTP %d)", rawURL, r.StatusCode)
	})
	c.OnResponse(func(r *colly.Response) {
		if err := r.Save(target); err != nil {
			saveErr = errors.Wrapf(err, "保存 %s 失败", target)
			return
		}
		saved = true
	})

	visitErr := c.Visit(rawURL)
	switch {
	case respErr != nil:
		return respErr
	case visitErr != nil:
		return errors.Wrapf(visitErr, "请求 %s 失败", rawURL)
	case saveErr != nil:
		return saveErr
	case !saved:
		return errors.Errorf("请求 %s 没有返回内容", rawURL)
	}
	return nil
}

// ValidateURL 只接受带 host 的 http/https 绝对地址
func ValidateURL(src string) (*url.URL, error) {
	if src == "" {
		return nil, ErrEmptyInput
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidURL, "%q: %v", src, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Wrapf(ErrInvalidURL, "%q: 仅支持 http/https", src)
	}
	if u.Host == "" {
		return nil, errors.Wrapf(ErrInvalidURL, "%q: 缺少 host", src)
	}
	return u, nil
}

// DownloadFileName 报表处理程序只接受 .html 文件
func DownloadFileName(u *url.URL) string {
	base := path.Base(u.Path)
	ext := path.Ext(base)
	if name := strings.TrimSuffix(base, ext); name != "" {
		switch strings.ToLower(ext) {
		case ".html", ".htm":
			return name + ".html"
		}
	}
	return downloadFilePrefix + newID() + ".html"
}

// newID 优先使用按时间排序的 UUID v7
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
