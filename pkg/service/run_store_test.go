package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ems-director/pkg/model"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *RunStore {
	t.Helper()
	duckDB, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = duckDB.Close() })

	store := NewRunStore(duckDB, nil)
	require.NoError(t, store.EnsureSchema(context.Background()))
	// 重复创建不报错
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestRunStoreSaveAndRecent(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()
	base := time.Date(2019, time.March, 4, 8, 0, 0, 0, time.UTC)

	older := &model.RunRecord{
		ID:             "0195f3a0-0000-7000-8000-000000000001",
		URL:            "booking.html",
		DownloadedPath: "booking.html",
		OutputPath:     "output.csv",
		DownloadMode:   "local",
		ProcessorMode:  "jar",
		Events:         UnknownEvents,
		Status:         model.RunStatusFailed,
		ErrorReason:    "ems-processor 执行失败",
		StartedAt:      base,
		FinishedAt:     base.Add(time.Second),
	}
	newer := &model.RunRecord{
		ID:             "0195f3a0-0000-7000-8000-000000000002",
		URL:            "https://ems.example.edu/daily.html",
		DownloadedPath: "downloads/daily.html",
		OutputPath:     "output.csv",
		DownloadMode:   "http",
		ProcessorMode:  "native",
		Events:         3,
		Status:         model.RunStatusSucceeded,
		StartedAt:      base.Add(time.Hour),
		FinishedAt:     base.Add(time.Hour + 2*time.Second),
	}
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	require.Equal(t, newer.ID, recent[0].ID)
	require.Equal(t, newer.URL, recent[0].URL)
	require.Equal(t, 3, recent[0].Events)
	require.Equal(t, model.RunStatusSucceeded, recent[0].Status)
	require.True(t, newer.StartedAt.Equal(recent[0].StartedAt), "started_at %s", recent[0].StartedAt)

	require.Equal(t, older.ID, recent[1].ID)
	require.Equal(t, UnknownEvents, recent[1].Events)
	require.Equal(t, older.ErrorReason, recent[1].ErrorReason)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRunStoreRejectsDuplicateID(t *testing.T) {
	store := newMemoryStore(t)
	rec := &model.RunRecord{ID: "dup", Status: model.RunStatusSucceeded, StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, store.Save(context.Background(), rec))
	require.Error(t, store.Save(context.Background(), rec))
}

func TestRunStoreWithoutDatabase(t *testing.T) {
	store := NewRunStore(nil, nil)
	ctx := context.Background()
	require.Error(t, store.EnsureSchema(ctx))
	require.Error(t, store.Save(ctx, &model.RunRecord{}))
	_, err := store.Count(ctx)
	require.Error(t, err)
	_, err = store.RecentFromMySQL(ctx, 5)
	require.Error(t, err)
}
