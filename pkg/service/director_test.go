package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ems-director/config"
	"ems-director/pkg/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	calls []string
	err   error
}

func (f *fakeDownloader) Download(ctx context.Context, src string) (string, error) {
	f.calls = append(f.calls, src)
	if f.err != nil {
		return "", f.err
	}
	return src, nil
}

func (f *fakeDownloader) Mode() string { return "fake" }

type processCall struct {
	input  string
	output string
	// 调用时输出文件是否已存在
	outputExisted bool
}

type fakeProcessor struct {
	calls  []processCall
	events int
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, input, output string) (int, error) {
	_, statErr := os.Stat(output)
	f.calls = append(f.calls, processCall{input: input, output: output, outputExisted: statErr == nil})
	return f.events, f.err
}

func (f *fakeProcessor) Mode() string { return "fake" }

type memoryRecorder struct {
	records []*model.RunRecord
	err     error
}

func (m *memoryRecorder) Save(ctx context.Context, rec *model.RunRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

// setupWorkdir 切换到临时目录，写入 input.txt 和它指向的报表
func setupWorkdir(t *testing.T, inputContent string, report string) {
	t.Helper()
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("input.txt", []byte(inputContent), 0644))
	if report != "" {
		require.NoError(t, os.WriteFile(report, []byte(reportBody), 0644))
	}
}

func TestDirectorRunSequence(t *testing.T) {
	setupWorkdir(t, "  booking.html \n", "booking.html")
	require.NoError(t, os.WriteFile("output.csv", []byte("stale"), 0644))

	dl := &fakeDownloader{}
	proc := &fakeProcessor{events: 4}
	rec := &memoryRecorder{}
	d := NewDirector(config.NewDefaultDirectorConfig(), dl, proc).WithRecorder(rec)

	run, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"booking.html"}, dl.calls)
	require.Equal(t, []processCall{{input: "booking.html", output: "output.csv", outputExisted: true}}, proc.calls)

	// 输出文件存在且已被清空
	info, err := os.Stat("output.csv")
	require.NoError(t, err)
	require.Zero(t, info.Size())
	// 下载文件被删除
	require.NoFileExists(t, "booking.html")

	require.Equal(t, model.RunStatusSucceeded, run.Status)
	require.Equal(t, "booking.html", run.URL)
	require.Equal(t, "booking.html", run.DownloadedPath)
	require.Equal(t, 4, run.Events)
	require.Len(t, run.ID, 36)
	require.False(t, run.FinishedAt.Before(run.StartedAt))
	require.Len(t, rec.records, 1)
	require.Same(t, run, rec.records[0])
}

func TestDirectorWithJarProcessor(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	java := writeFakeJava(t, argsFile, `echo "Parsed 2 events to $4"`)
	setupWorkdir(t, "booking.html\n", "booking.html")

	d := NewDirector(config.NewDefaultDirectorConfig(), LocalDownloader{}, NewJarProcessor(newJarConfig(java)))
	run, err := d.Run(context.Background())
	require.NoError(t, err)

	require.FileExists(t, "output.csv")
	require.NoFileExists(t, "booking.html")
	require.Equal(t,
		[]string{"-jar", "../out/artifacts/ems_processor_jar/ems-processor.jar", "booking.html", "output.csv"},
		readArgs(t, argsFile))
	require.Equal(t, 2, run.Events)
	require.Equal(t, config.DownloadModeLocal, run.DownloadMode)
	require.Equal(t, config.ProcessorModeJar, run.ProcessorMode)
}

func TestDirectorWithNativeProcessor(t *testing.T) {
	report, err := os.ReadFile("../ems/testdata/report.html")
	require.NoError(t, err)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("report.html", report, 0644))
	require.NoError(t, os.WriteFile("input.txt", []byte("report.html"), 0644))

	run, err := NewDirector(config.NewDefaultDirectorConfig(), LocalDownloader{}, NativeProcessor{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, run.Events)
	require.NoFileExists(t, "report.html")

	out, err := os.ReadFile("output.csv")
	require.NoError(t, err)
	require.Contains(t, string(out), `"Late Night Study","03/04/2019","10:00 PM","03/05/2019","1:00 AM"`)
}

func TestDirectorKeepDownload(t *testing.T) {
	setupWorkdir(t, "booking.html", "booking.html")
	cfg := config.NewDefaultDirectorConfig()
	cfg.KeepDownload = true

	_, err := NewDirector(cfg, &fakeDownloader{}, &fakeProcessor{}).Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, "booking.html")
}

func TestDirectorRemovesDownloadWhenProcessorFails(t *testing.T) {
	setupWorkdir(t, "booking.html", "booking.html")
	proc := &fakeProcessor{events: UnknownEvents, err: errors.New("java: command not found")}
	rec := &memoryRecorder{}

	run, err := NewDirector(config.NewDefaultDirectorConfig(), &fakeDownloader{}, proc).WithRecorder(rec).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "java: command not found")
	require.NoFileExists(t, "booking.html")
	require.Equal(t, model.RunStatusFailed, run.Status)
	require.Equal(t, err.Error(), run.ErrorReason)
	require.Len(t, rec.records, 1)
}

func TestDirectorMissingDownloadedFile(t *testing.T) {
	// input.txt 指向不存在的文件，删除时报错
	setupWorkdir(t, "ghost.html", "")

	_, err := NewDirector(config.NewDefaultDirectorConfig(), &fakeDownloader{}, &fakeProcessor{}).Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
	require.FileExists(t, "output.csv")
}

func TestDirectorInputErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		t.Chdir(t.TempDir())
		proc := &fakeProcessor{}
		run, err := NewDirector(config.NewDefaultDirectorConfig(), &fakeDownloader{}, proc).Run(context.Background())
		require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
		require.Empty(t, proc.calls)
		// 输出文件在读取输入之前创建
		require.FileExists(t, "output.csv")
		require.Equal(t, model.RunStatusFailed, run.Status)
	})

	t.Run("blank input", func(t *testing.T) {
		setupWorkdir(t, " \n\t\n", "")
		dl := &fakeDownloader{}
		_, err := NewDirector(config.NewDefaultDirectorConfig(), dl, &fakeProcessor{}).Run(context.Background())
		require.True(t, errors.Is(err, ErrEmptyInput), "got %v", err)
		require.Empty(t, dl.calls)
	})

	t.Run("download failure", func(t *testing.T) {
		setupWorkdir(t, "booking.html", "booking.html")
		proc := &fakeProcessor{}
		dl := &fakeDownloader{err: ErrInvalidURL}
		_, err := NewDirector(config.NewDefaultDirectorConfig(), dl, proc).Run(context.Background())
		require.True(t, errors.Is(err, ErrInvalidURL), "got %v", err)
		require.Empty(t, proc.calls)
		// 下载失败时不删除任何文件
		require.FileExists(t, "booking.html")
	})

	t.Run("cancelled", func(t *testing.T) {
		setupWorkdir(t, "booking.html", "booking.html")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		dl := &fakeDownloader{}
		_, err := NewDirector(config.NewDefaultDirectorConfig(), dl, &fakeProcessor{}).Run(ctx)
		require.True(t, errors.Is(err, context.Canceled), "got %v", err)
		require.Empty(t, dl.calls)
	})
}

func TestDirectorRecorderFailureDoesNotFailRun(t *testing.T) {
	setupWorkdir(t, "booking.html", "booking.html")
	rec := &memoryRecorder{err: errors.New("database is locked")}

	run, err := NewDirector(config.NewDefaultDirectorConfig(), &fakeDownloader{}, &fakeProcessor{}).WithRecorder(rec).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.RunStatusSucceeded, run.Status)
	require.Len(t, rec.records, 1)
}

func TestDirectorClock(t *testing.T) {
	setupWorkdir(t, "booking.html", "booking.html")
	start := time.Date(2019, time.March, 4, 8, 0, 0, 0, time.UTC)
	ticks := 0
	d := NewDirector(config.NewDefaultDirectorConfig(), &fakeDownloader{}, &fakeProcessor{})
	d.now = func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks-1) * time.Second)
	}

	run, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, start, run.StartedAt)
	require.Equal(t, time.Second, run.Duration())
}
