package schedule_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
	publishermemory "github.com/siteloom/llmstxt-worker/internal/publisher/memory"
	"github.com/siteloom/llmstxt-worker/internal/schedule"
	"github.com/siteloom/llmstxt-worker/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestNextRunTime(t *testing.T) {
	t.Parallel()

	// 2026-08-24 is a Monday, 2026-08-23 a Sunday.
	tests := []struct {
		name string
		cron string
		now  time.Time
		want time.Time
	}{
		{
			name: "daily before 2am",
			cron: schedule.CronDaily2AM,
			now:  time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "daily after 2am",
			cron: schedule.CronDaily2AM,
			now:  time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "daily exactly at 2am rolls over",
			cron: schedule.CronDaily2AM,
			now:  time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly from monday",
			cron: schedule.CronWeeklySunday2AM,
			now:  time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly on sunday before 2am",
			cron: schedule.CronWeeklySunday2AM,
			now:  time.Date(2026, 8, 23, 1, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 23, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly on sunday after 2am",
			cron: schedule.CronWeeklySunday2AM,
			now:  time.Date(2026, 8, 23, 3, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "unsupported expression",
			cron: "*/5 * * * *",
			now:  time.Date(2026, 8, 24, 1, 0, 0, 0, time.UTC),
			want: time.Time{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, schedule.NextRunTime(tc.cron, tc.now))
		})
	}
}

func TestScheduleNextRunPublishesAndRecords(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.SeedSchedule(crawl.ProjectSchedule{
		ProjectID:      "proj-1",
		Domain:         "example.com",
		CronExpression: schedule.CronDaily2AM,
		IsEnabled:      true,
	})
	publisher := publishermemory.New()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	scheduler := schedule.NewScheduler(store, publisher, fixedClock{t: now}, nil)

	require.NoError(t, scheduler.ScheduleNextRun(context.Background(), "proj-1", "run-1"))

	payloads := publisher.Payloads()
	require.Len(t, payloads, 1)

	raw, err := json.Marshal(payloads[0])
	require.NoError(t, err)
	var job map[string]any
	require.NoError(t, json.Unmarshal(raw, &job))

	require.Equal(t, "proj-1", job["projectId"])
	require.Equal(t, "https://example.com", job["url"])
	require.Equal(t, true, job["isScheduled"])
	require.NotEmpty(t, job["id"])

	sched, err := store.GetProjectSchedule(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, sched.LastRunAt)
	require.Equal(t, now, *sched.LastRunAt)
	require.NotNil(t, sched.NextRunAt)
	require.Equal(t, time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC), *sched.NextRunAt)
}

func TestScheduleNextRunNoOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sched *crawl.ProjectSchedule
	}{
		{name: "missing schedule", sched: nil},
		{
			name: "disabled",
			sched: &crawl.ProjectSchedule{
				ProjectID: "proj-1", Domain: "example.com",
				CronExpression: schedule.CronDaily2AM, IsEnabled: false,
			},
		},
		{
			name: "no domain",
			sched: &crawl.ProjectSchedule{
				ProjectID: "proj-1", CronExpression: schedule.CronDaily2AM, IsEnabled: true,
			},
		},
		{
			name: "unsupported cron",
			sched: &crawl.ProjectSchedule{
				ProjectID: "proj-1", Domain: "example.com",
				CronExpression: "*/5 * * * *", IsEnabled: true,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := memory.NewStore()
			if tc.sched != nil {
				store.SeedSchedule(*tc.sched)
			}
			publisher := publishermemory.New()
			scheduler := schedule.NewScheduler(store, publisher, fixedClock{t: time.Now()}, nil)

			require.NoError(t, scheduler.ScheduleNextRun(context.Background(), "proj-1", "run-1"))
			require.Empty(t, publisher.Payloads())
		})
	}
}
