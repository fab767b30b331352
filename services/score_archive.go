package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"player-progression/models"
)

const archiveBatchSize = 5000

// DefaultCommitLag is how far behind the cursor each run re-reads. created_at
// is stamped before the row commits, so a slower concurrent writer can land
// a row older than one already archived.
const DefaultCommitLag = time.Minute

type ScoreSource interface {
	ScoresSince(ctx context.Context, since time.Time, limit int) ([]models.GameScore, error)
}

type ObjectUploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ScoreArchiver copies newly logged game scores to object storage as JSON
// Lines. The cursor only moves past rows that were uploaded; rows inside the
// commit lag window are remembered by id so they are exported once.
type ScoreArchiver struct {
	Source    ScoreSource
	Uploader  ObjectUploader
	Prefix    string
	CommitLag time.Duration

	mu       sync.Mutex
	cursor   time.Time
	archived map[string]time.Time // id -> created_at, pruned below cursor-CommitLag
}

func NewScoreArchiver(src ScoreSource, up ObjectUploader, since time.Time) *ScoreArchiver {
	return &ScoreArchiver{
		Source:    src,
		Uploader:  up,
		Prefix:    "game-scores",
		CommitLag: DefaultCommitLag,
		cursor:    since,
		archived:  make(map[string]time.Time),
	}
}

// Cursor is the created_at of the newest archived row.
func (a *ScoreArchiver) Cursor() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Run archives everything not yet exported that is newer than the cursor
// minus the commit lag, in batches, and returns the number of rows uploaded.
func (a *ScoreArchiver) Run(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	archived := 0
	since := a.cursor.Add(-a.CommitLag)
	for {
		scores, err := a.Source.ScoresSince(ctx, since, archiveBatchSize)
		if err != nil {
			return archived, fmt.Errorf("read scores since %s: %w", since.Format(time.RFC3339), err)
		}
		if len(scores) == 0 {
			break
		}

		fresh := make([]models.GameScore, 0, len(scores))
		for _, sc := range scores {
			if _, done := a.archived[sc.ID]; !done {
				fresh = append(fresh, sc)
			}
		}

		if len(fresh) > 0 {
			if err := a.upload(ctx, fresh); err != nil {
				return archived, err
			}
			for _, sc := range fresh {
				a.archived[sc.ID] = sc.CreatedAt
				if sc.CreatedAt.After(a.cursor) {
					a.cursor = sc.CreatedAt
				}
			}
			archived += len(fresh)
		}

		if len(scores) < archiveBatchSize {
			break
		}
		// Step back a nanosecond so rows sharing the boundary timestamp are
		// re-read; the id set drops the ones already sent.
		next := scores[len(scores)-1].CreatedAt.Add(-time.Nanosecond)
		if !next.After(since) {
			break
		}
		since = next
	}

	a.prune()
	return archived, nil
}

func (a *ScoreArchiver) upload(ctx context.Context, scores []models.GameScore) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range scores {
		if err := enc.Encode(&scores[i]); err != nil {
			return fmt.Errorf("encode score %s: %w", scores[i].ID, err)
		}
	}

	first, last := scores[0].CreatedAt.UTC(), scores[len(scores)-1].CreatedAt.UTC()
	key := fmt.Sprintf("%s/%s/%s_%s_%s.jsonl",
		strings.TrimSuffix(a.Prefix, "/"),
		first.Format("2006-01-02"),
		first.Format("20060102T150405.000000000Z"),
		last.Format("20060102T150405.000000000Z"),
		scores[0].ID,
	)
	url, err := a.Uploader.PutObject(ctx, key, buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.Printf("[ARCHIVE] uploaded %d score(s) -> %s", len(scores), url)
	return nil
}

// prune forgets ids that fell out of the re-read window.
func (a *ScoreArchiver) prune() {
	floor := a.cursor.Add(-a.CommitLag)
	for id, created := range a.archived {
		if !created.After(floor) {
			delete(a.archived, id)
		}
	}
}
