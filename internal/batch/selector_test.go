package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdeltlens/news-pipeline/internal/news"
	"github.com/gdeltlens/news-pipeline/internal/storage/memory"
)

func newSelector(t *testing.T, store news.BlobStore) *Selector {
	t.Helper()
	return NewSelector(store, "cleaned_data/", "backup_data/", t.TempDir(), nil)
}

func TestSelectOldestPicksByTimestamp(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Put("cleaned_data/20240102000000_cleaned.csv", []byte("b"))
	store.Put("cleaned_data/20240101000000_cleaned.csv", []byte("a"))
	store.Put("cleaned_data/20240103120000_cleaned.csv", []byte("c"))

	sel := newSelector(t, store)
	cand, err := sel.SelectOldest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cand)
	require.Equal(t, "cleaned_data/20240101000000_cleaned.csv", cand.Object)
	require.Equal(t, news.BatchDiscovered, cand.State)
	require.Equal(t, "20240101000000", cand.Stamp())
}

func TestSelectOldestSkipsUnparseableNames(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Put("cleaned_data/notatimestamp_cleaned.csv", []byte("x"))
	store.Put("cleaned_data/readme.txt", []byte("y"))
	store.Put("cleaned_data/20240105000000_cleaned.csv", []byte("z"))

	sel := newSelector(t, store)
	cand, err := sel.SelectOldest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cand)
	require.Equal(t, "cleaned_data/20240105000000_cleaned.csv", cand.Object)
}

func TestSelectOldestEmptyPrefix(t *testing.T) {
	t.Parallel()

	sel := newSelector(t, memory.NewStore())
	cand, err := sel.SelectOldest(context.Background())
	require.NoError(t, err)
	require.Nil(t, cand)
}

func TestDownloadWritesScratchFile(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Put("cleaned_data/20240101000000_cleaned.csv", []byte("payload"))

	sel := newSelector(t, store)
	cand, err := sel.SelectOldest(context.Background())
	require.NoError(t, err)

	local, err := sel.Download(context.Background(), cand)
	require.NoError(t, err)
	require.Equal(t, "20240101000000_cleaned.csv", filepath.Base(local))
	require.Equal(t, news.BatchDownloading, cand.State)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestArchiveCopiesThenDeletes(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.Put("cleaned_data/20240101000000_cleaned.csv", []byte("payload"))

	sel := newSelector(t, store)
	cand := &Candidate{Object: "cleaned_data/20240101000000_cleaned.csv"}

	require.NoError(t, sel.Archive(context.Background(), cand))
	require.Equal(t, news.BatchArchived, cand.State)
	require.True(t, store.Exists("backup_data/20240101000000_cleaned.csv"))
	require.False(t, store.Exists("cleaned_data/20240101000000_cleaned.csv"))
}

// partialDownloadStore writes half the payload to destPath and then fails,
// simulating a transfer cut off mid-stream.
type partialDownloadStore struct {
	*memory.Store
}

func (p partialDownloadStore) Download(_ context.Context, _, destPath string) error {
	if err := os.WriteFile(destPath, []byte("part"), 0o600); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func TestDownloadFailureRemovesPartialFile(t *testing.T) {
	t.Parallel()

	inner := memory.NewStore()
	inner.Put("cleaned_data/20240101000000_cleaned.csv", []byte("payload"))

	scratch := t.TempDir()
	sel := NewSelector(partialDownloadStore{Store: inner}, "cleaned_data/", "backup_data/", scratch, nil)
	cand := &Candidate{Object: "cleaned_data/20240101000000_cleaned.csv"}

	local, err := sel.Download(context.Background(), cand)
	require.Error(t, err)
	require.Empty(t, local)
	require.Equal(t, news.BatchFailed, cand.State)

	_, statErr := os.Stat(filepath.Join(scratch, "20240101000000_cleaned.csv"))
	require.True(t, os.IsNotExist(statErr))
}

// failingCopyStore wraps the memory store and fails every Copy.
type failingCopyStore struct {
	*memory.Store
}

func (f failingCopyStore) Copy(context.Context, string, string) error {
	return errors.New("copy unavailable")
}

func TestArchiveCopyFailureKeepsSource(t *testing.T) {
	t.Parallel()

	inner := memory.NewStore()
	inner.Put("cleaned_data/20240101000000_cleaned.csv", []byte("payload"))

	sel := newSelector(t, failingCopyStore{Store: inner})
	cand := &Candidate{Object: "cleaned_data/20240101000000_cleaned.csv"}

	err := sel.Archive(context.Background(), cand)
	require.Error(t, err)
	require.Equal(t, news.BatchFailed, cand.State)
	// Copy-then-delete order means the source survives a failed copy.
	require.True(t, inner.Exists("cleaned_data/20240101000000_cleaned.csv"))
	require.False(t, inner.Exists("backup_data/20240101000000_cleaned.csv"))
}
