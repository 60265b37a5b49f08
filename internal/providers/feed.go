package providers

import (
	"context"
	"sync"
	"time"

	"github.com/scrypster/clawscope/internal/timeline"
)

// Feed builds the unified timeline from the three providers.
type Feed struct {
	Sessions      *SessionProvider
	Tasks         *TaskProvider
	Activity      *ActivityProvider
	ActivityLimit int
}

// Timeline fetches sessions, tasks and activity concurrently and merges them
// in that order, so activity overwrites cron which overwrites sessions for a
// shared id. Failing sources contribute nothing.
func (f *Feed) Timeline(ctx context.Context, since time.Time, limit int) []timeline.Event {
	var (
		wg                       sync.WaitGroup
		sessions, cron, activity []timeline.Event
	)

	if f.Sessions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, _ := f.Sessions.List(ctx)
			sessions = SessionEvents(list)
		}()
	}
	if f.Tasks != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, _ := f.Tasks.List(ctx)
			cron = TaskEvents(list)
		}()
	}
	if f.Activity != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activity, _ = f.Activity.List(ctx, f.ActivityLimit)
		}()
	}
	wg.Wait()

	return timeline.Aggregate([][]timeline.Event{sessions, cron, activity}, since, limit)
}
