package service

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"ems-director/config"
	"ems-director/pkg/ems"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// UnknownEvents 处理程序没有报告事件数
const UnknownEvents = -1

const (
	JarFlag = "-jar"

	// ems-processor 输入不合法时只打印用法并以 0 退出
	processorUsagePrefix = "usage:"
)

var ErrProcessorRejected = errors.New("ems-processor 拒绝了输入")

var parsedLineRegex = regexp.MustCompile(`^Parsed (\d+) events to (.+)$`)

// Processor 把下载的报表转换为 csv，返回事件数
type Processor interface {
	Process(ctx context.Context, input, output string) (int, error)
	Mode() string
}

var (
	_ Processor = (*JarProcessor)(nil)
	_ Processor = NativeProcessor{}
)

// NewProcessor 根据配置选择处理方式
func NewProcessor(cfg *config.ProcessorConfig) (Processor, error) {
	switch cfg.Mode {
	case config.ProcessorModeJar:
		return NewJarProcessor(cfg), nil
	case config.ProcessorModeNative:
		return NativeProcessor{}, nil
	default:
		return nil, errors.Errorf("未知的处理模式: %q", cfg.Mode)
	}
}

// JarProcessor 调用外部 ems-processor.jar
type JarProcessor struct {
	cfg *config.ProcessorConfig
}

func NewJarProcessor(cfg *config.ProcessorConfig) *JarProcessor {
	return &JarProcessor{cfg: cfg}
}

func (p *JarProcessor) Mode() string {
	return config.ProcessorModeJar
}

// BuildArgs java 的参数：-jar <jar> <input> <output>
func (p *JarProcessor) BuildArgs(input, output string) []string {
	return []string{JarFlag, p.cfg.JarPath, input, output}
}

func (p *JarProcessor) Process(ctx context.Context, input, output string) (int, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.cfg.Java, p.BuildArgs(input, output)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return UnknownEvents, errors.Wrap(err, "创建 stdout 管道失败")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return UnknownEvents, errors.Wrap(err, "创建 stderr 管道失败")
	}

	zap.S().Debugf("执行 %s %s", p.cfg.Java, strings.Join(p.BuildArgs(input, output), " "))
	if err := cmd.Start(); err != nil {
		return UnknownEvents, errors.Wrapf(err, "启动 %s 失败", p.cfg.Java)
	}

	events := UnknownEvents
	rejected := false
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			zap.S().Infof("[ems-processor] %s", line)
			if n, ok := parseEventCount(line); ok {
				events = n
			}
			if strings.HasPrefix(line, processorUsagePrefix) {
				rejected = true
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			zap.S().Warnf("[ems-processor] %s", line)
		})
	}()
	// 必须在 Wait 之前读完输出
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return events, errors.Wrapf(ctx.Err(), "ems-processor 超时 (%s)", p.cfg.Timeout)
		}
		return events, errors.Wrap(err, "ems-processor 执行失败")
	}
	if rejected {
		return events, errors.Wrapf(ErrProcessorRejected, "输入 %s, 输出 %s", input, output)
	}
	return events, nil
}

// 单行输出上限，超过后剩余输出直接丢弃
const maxOutputLine = 1024 * 1024

// scanLines 逐行处理输出，出错后继续读空管道，避免子进程阻塞在写入上
func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		zap.S().Warnf("读取 ems-processor 输出失败: %v", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

// parseEventCount 解析 "Parsed N events to output.csv"
func parseEventCount(line string) (int, bool) {
	m := parsedLineRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := cast.ToIntE(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NativeProcessor 进程内的 Go 实现，不依赖 Java
type NativeProcessor struct{}

func (NativeProcessor) Mode() string {
	return config.ProcessorModeNative
}

func (NativeProcessor) Process(ctx context.Context, input, output string) (int, error) {
	if err := ctx.Err(); err != nil {
		return UnknownEvents, err
	}
	return ems.ProcessFile(input, output)
}
