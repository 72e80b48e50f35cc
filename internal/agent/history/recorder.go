package history

import (
	"context"
	"fmt"
	"time"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
	logx "github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/pkg/logger"
)

const defaultKey = "answerer"

// Recorder appends finished runs to a HistoryRepository under one key.
type Recorder struct {
	repo model.HistoryRepository
	key  string
	now  func() time.Time
}

func NewRecorder(repo model.HistoryRepository, key string) *Recorder {
	if key == "" {
		key = defaultKey
	}
	return &Recorder{repo: repo, key: key, now: time.Now}
}

// Record stores a copy of report. Failures are logged and returned; the
// pipeline treats history as best effort.
func (r *Recorder) Record(ctx context.Context, report *model.Report) error {
	if r == nil || r.repo == nil || report == nil {
		return nil
	}
	entry := model.HistoryEntry{Report: *report, RecordedAt: r.now().UTC()}
	if err := r.repo.Append(ctx, r.key, entry); err != nil {
		logx.Warn().Err(err).Str("key", r.key).Msg("failed to record run history")
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest runs, oldest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]model.HistoryEntry, error) {
	if r == nil || r.repo == nil || n <= 0 {
		return nil, nil
	}
	return r.repo.Recent(ctx, r.key, n)
}

func (r *Recorder) Count(ctx context.Context) (int, error) {
	if r == nil || r.repo == nil {
		return 0, nil
	}
	return r.repo.Count(ctx, r.key)
}

func (r *Recorder) Clear(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return nil
	}
	return r.repo.Clear(ctx, r.key)
}
