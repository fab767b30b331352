// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartArchiveScheduler runs the score archiver every interval until the
// returned scheduler is shut down.
func StartArchiveScheduler(ctx context.Context, archiver *ScoreArchiver, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := archiver.Run(ctx)
			if err != nil {
				log.Printf("[ARCHIVE] run failed after %d row(s): %v", n, err)
				return
			}
			if n > 0 {
				log.Printf("✅ [ARCHIVE] archived %d score(s), cursor=%s", n, archiver.Cursor().Format(time.RFC3339))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule archive job: %w", err)
	}

	sched.Start()
	return sched, nil
}
