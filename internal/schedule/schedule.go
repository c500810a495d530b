// Package schedule computes and enqueues a project's next recurring run.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// The two cron expressions the product currently offers. A proper cron
// parser comes in when custom schedules do.
const (
	CronDaily2AM        = "0 2 * * *"
	CronWeeklySunday2AM = "0 2 * * 0"
)

// Publisher enqueues a job payload for later execution.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// NextRunTime computes the next run after now for a supported cron
// expression. It returns the zero time for anything it cannot interpret.
func NextRunTime(cronExpression string, now time.Time) time.Time {
	now = now.UTC()
	switch cronExpression {
	case CronDaily2AM:
		next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case CronWeeklySunday2AM:
		next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
		daysUntilSunday := (7 - int(now.Weekday())) % 7
		if daysUntilSunday == 0 && !next.After(now) {
			daysUntilSunday = 7
		}
		return next.AddDate(0, 0, daysUntilSunday)
	default:
		return time.Time{}
	}
}

// Scheduler enqueues the next run for projects with recurring schedules.
type Scheduler struct {
	repo      crawl.Repository
	publisher Publisher
	clock     crawl.Clock
	logger    *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(repo crawl.Repository, publisher Publisher, clock crawl.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{repo: repo, publisher: publisher, clock: clock, logger: logger}
}

// scheduledJob is the payload enqueued for the next run.
type scheduledJob struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"projectId"`
	URL         string            `json:"url"`
	IsScheduled bool              `json:"isScheduled"`
	ScheduledAt int64             `json:"scheduledAt"`
	Metadata    map[string]string `json:"metadata"`
}

// ScheduleNextRun computes and enqueues the next run for the project.
// Missing or disabled schedules are a no-op, not an error.
func (s *Scheduler) ScheduleNextRun(ctx context.Context, projectID, runID string) error {
	sched, err := s.repo.GetProjectSchedule(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project schedule: %w", err)
	}
	if sched == nil || !sched.IsEnabled || sched.CronExpression == "" {
		s.logger.Info("scheduling disabled for project", zap.String("project_id", projectID))
		return nil
	}
	if sched.Domain == "" {
		s.logger.Warn("project has no domain, skipping scheduling", zap.String("project_id", projectID))
		return nil
	}

	now := s.clock.Now()
	nextRun := NextRunTime(sched.CronExpression, now)
	if nextRun.IsZero() {
		s.logger.Warn("unsupported cron expression",
			zap.String("project_id", projectID),
			zap.String("cron", sched.CronExpression),
		)
		return nil
	}

	job := scheduledJob{
		ID:          fmt.Sprintf("scheduled_%s_%d", projectID, nextRun.Unix()),
		ProjectID:   projectID,
		URL:         crawl.NormalizeURL(sched.Domain),
		IsScheduled: true,
		ScheduledAt: nextRun.UnixMilli(),
		Metadata: map[string]string{
			"cron_expression": sched.CronExpression,
			"scheduled_by":    "worker",
			"previous_run_id": runID,
		},
	}
	msgID, err := s.publisher.Publish(ctx, job)
	if err != nil {
		return fmt.Errorf("enqueue scheduled run: %w", err)
	}

	if err := s.repo.UpdateProjectNextRun(ctx, projectID, now, nextRun); err != nil {
		return fmt.Errorf("record next run time: %w", err)
	}

	s.logger.Info("scheduled next run",
		zap.String("project_id", projectID),
		zap.Time("next_run_at", nextRun),
		zap.String("message_id", msgID),
	)
	return nil
}
