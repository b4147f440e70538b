// Package batch implements discovery, download, and archival of remote batch
// files, plus parsing of their tabular contents.
package batch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

const (
	fileSuffix      = "_cleaned.csv"
	timestampLayout = "20060102150405"
)

// Candidate is one remote batch file chosen for processing.
type Candidate struct {
	Object    string
	Timestamp time.Time
	State     news.BatchState
}

// Base returns the file name without the prefix, e.g. 20240101000000_cleaned.csv.
func (c Candidate) Base() string {
	return path.Base(c.Object)
}

// Stamp returns the timestamp portion of the file name.
func (c Candidate) Stamp() string {
	return strings.TrimSuffix(c.Base(), fileSuffix)
}

// Selector scans a remote prefix for batch files and moves them through the
// download/archive lifecycle. Only one candidate is in flight at a time.
type Selector struct {
	store         news.BlobStore
	sourcePrefix  string
	archivePrefix string
	scratchDir    string
	logger        *zap.Logger
}

// NewSelector wires a Selector over the given blob store.
func NewSelector(store news.BlobStore, sourcePrefix, archivePrefix, scratchDir string, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		store:         store,
		sourcePrefix:  sourcePrefix,
		archivePrefix: archivePrefix,
		scratchDir:    scratchDir,
		logger:        logger,
	}
}

// SelectOldest lists the source prefix and returns the single oldest batch
// file by the timestamp encoded in its name, or nil when none remain.
// Files whose names do not parse are skipped with a warning, never fatally.
func (s *Selector) SelectOldest(ctx context.Context) (*Candidate, error) {
	objects, err := s.store.List(ctx, s.sourcePrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.sourcePrefix, err)
	}

	var oldest *Candidate
	for _, obj := range objects {
		if !strings.HasSuffix(obj, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(obj, s.sourcePrefix), fileSuffix)
		ts, err := time.Parse(timestampLayout, stamp)
		if err != nil {
			s.logger.Warn("Could not parse timestamp from filename; skipping",
				zap.String("object", obj))
			continue
		}
		if oldest == nil || ts.Before(oldest.Timestamp) {
			oldest = &Candidate{Object: obj, Timestamp: ts, State: news.BatchDiscovered}
		}
	}
	return oldest, nil
}

// Download fetches the candidate to local scratch storage and returns the
// local path. The caller owns cleanup of the returned file.
func (s *Selector) Download(ctx context.Context, cand *Candidate) (string, error) {
	cand.State = news.BatchDownloading
	local := filepath.Join(s.scratchDir, cand.Base())
	if err := s.store.Download(ctx, cand.Object, local); err != nil {
		cand.State = news.BatchFailed
		// A failed transfer may have left a partial file behind.
		_ = os.Remove(local)
		return "", fmt.Errorf("download %s: %w", cand.Object, err)
	}
	return local, nil
}

// Archive copies the candidate to the archive prefix and then deletes the
// original. Copy-then-delete order is mandatory: the source is only removed
// once the archive copy is confirmed.
func (s *Selector) Archive(ctx context.Context, cand *Candidate) error {
	dst := s.archivePrefix + cand.Base()
	if err := s.store.Copy(ctx, cand.Object, dst); err != nil {
		cand.State = news.BatchFailed
		return fmt.Errorf("copy %s to archive: %w", cand.Object, err)
	}
	if err := s.store.Delete(ctx, cand.Object); err != nil {
		cand.State = news.BatchFailed
		return fmt.Errorf("delete archived source %s: %w", cand.Object, err)
	}
	cand.State = news.BatchArchived
	s.logger.Info("Archived batch file",
		zap.String("object", cand.Object), zap.String("archive", dst))
	return nil
}
