// Package run executes one crawl+generate job through its state machine.
package run

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
	"github.com/siteloom/llmstxt-worker/internal/generator"
	"github.com/siteloom/llmstxt-worker/internal/schedule"
	"github.com/siteloom/llmstxt-worker/internal/webhook"
)

const llmsTextContentType = "text/plain; charset=utf-8"

// Orchestrator drives a run through
// IN_PROGRESS -> {COMPLETE_NO_DIFFS | COMPLETE_WITH_DIFFS | FAILED}.
type Orchestrator struct {
	repo      crawl.Repository
	fetcher   crawl.Fetcher
	hasher    crawl.Hasher
	blobs     crawl.BlobStore
	notifier  *webhook.Notifier
	scheduler *schedule.Scheduler
	opts      crawl.Options
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	repo crawl.Repository,
	fetcher crawl.Fetcher,
	hasher crawl.Hasher,
	blobs crawl.BlobStore,
	notifier *webhook.Notifier,
	scheduler *schedule.Scheduler,
	opts crawl.Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repo:      repo,
		fetcher:   fetcher,
		hasher:    hasher,
		blobs:     blobs,
		notifier:  notifier,
		scheduler: scheduler,
		opts:      opts,
		logger:    logger,
	}
}

// ValidateJob rejects malformed job payloads before any I/O happens.
func ValidateJob(job crawl.Job) error {
	switch {
	case job.ID == "":
		return fmt.Errorf("job id is required")
	case job.URL == "":
		return fmt.Errorf("job url is required")
	case job.ProjectID == "":
		return fmt.Errorf("job projectId is required")
	case job.RunID == "":
		return fmt.Errorf("job runId is required")
	}
	return nil
}

// Execute runs one job end to end. On any unhandled error the run is
// marked FAILED with a "Generation failed" summary and the error propagates
// to the caller; webhooks and scheduling are suppressed on that path.
func (o *Orchestrator) Execute(ctx context.Context, job crawl.Job) (crawl.JobResult, error) {
	if err := ValidateJob(job); err != nil {
		return crawl.JobResult{}, err
	}

	logger := o.logger.With(
		zap.String("job_id", job.ID),
		zap.String("project_id", job.ProjectID),
		zap.String("run_id", job.RunID),
	)
	logger.Info("starting job",
		zap.String("url", job.URL),
		zap.Bool("is_scheduled", job.IsScheduled),
		zap.Bool("is_initial_run", job.IsInitialRun),
	)

	o.updateRunStatus(ctx, job.RunID, crawl.RunStatusInProgress, "", logger)

	crawler := crawl.NewIncrementalCrawler(
		job.ProjectID, job.RunID, o.repo, o.fetcher, o.hasher, logger,
	)
	result := crawler.CrawlWithChangeDetection(ctx, job.URL, o.opts)

	jobResult := crawl.JobResult{
		PagesCrawled:    result.PagesCrawled,
		ChangesDetected: result.ChangesDetected,
		Changed:         result.Changed,
		New:             result.New,
		Unchanged:       result.Unchanged,
	}

	if !result.ChangesDetected {
		o.updateRunStatus(ctx, job.RunID, crawl.RunStatusCompleteNoDiffs, "No changes detected", logger)
		if job.IsScheduled {
			o.scheduleNextRun(ctx, job, logger)
		}
		logger.Info("job complete, no changes detected")
		return jobResult, nil
	}

	artifactURL, err := o.generateAndUpload(ctx, job, result, logger)
	if err != nil {
		summary := fmt.Sprintf("Generation failed: %v", err)
		o.updateRunStatus(ctx, job.RunID, crawl.RunStatusFailed, summary, logger)
		return crawl.JobResult{}, err
	}
	jobResult.ArtifactURL = artifactURL

	status := crawl.RunStatusCompleteNoDiffs
	summary := "Content unchanged, reused existing revisions"
	if result.RevisionsCreated > 0 {
		status = crawl.RunStatusCompleteWithDiffs
		summary = fmt.Sprintf("Crawled %d pages, created %d new revisions",
			result.PagesCrawled, result.RevisionsCreated)
	}
	o.updateRunStatus(ctx, job.RunID, status, summary, logger)

	if !job.IsScheduled || status == crawl.RunStatusCompleteWithDiffs {
		o.notifier.NotifyProject(ctx, job.ProjectID, job.RunID, artifactURL)
	}
	if job.IsScheduled {
		o.scheduleNextRun(ctx, job, logger)
	}

	logger.Info("job complete",
		zap.String("status", string(status)),
		zap.Int("pages_crawled", result.PagesCrawled),
		zap.Int("revisions_created", result.RevisionsCreated),
		zap.String("artifact_url", artifactURL),
	)
	return jobResult, nil
}

// generateAndUpload renders the llms.txt document, uploads it, and records
// the artifact. Upload failure is fatal for the run; the artifact record is
// bookkeeping and only logged when it fails.
func (o *Orchestrator) generateAndUpload(
	ctx context.Context,
	job crawl.Job,
	result crawl.CrawlResult,
	logger *zap.Logger,
) (string, error) {
	content := generator.Generate(result)
	fileName := generator.Filename(job.ID)
	storagePath := fmt.Sprintf("%s/%s", job.ProjectID, fileName)

	artifactURL, err := o.blobs.PutObject(ctx, storagePath, llmsTextContentType, []byte(content))
	if err != nil {
		return "", fmt.Errorf("upload llms.txt: %w", err)
	}

	artifact := crawl.Artifact{
		ProjectID:   job.ProjectID,
		RunID:       job.RunID,
		Type:        crawl.ArtifactTypeLLMSText,
		StoragePath: storagePath,
		FileName:    fileName,
		SizeBytes:   int64(len(content)),
		Metadata:    map[string]string{"public_url": artifactURL},
	}
	if _, err := o.repo.CreateArtifactRecord(ctx, artifact); err != nil {
		logger.Error("record artifact failed", zap.Error(err))
	}

	logger.Info("uploaded llms.txt",
		zap.String("storage_path", storagePath),
		zap.Int("size_bytes", len(content)),
	)
	return artifactURL, nil
}

func (o *Orchestrator) updateRunStatus(
	ctx context.Context,
	runID string,
	status crawl.RunStatus,
	summary string,
	logger *zap.Logger,
) {
	if err := o.repo.UpdateRunStatus(ctx, runID, status, summary); err != nil {
		logger.Error("update run status failed",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) scheduleNextRun(ctx context.Context, job crawl.Job, logger *zap.Logger) {
	if o.scheduler == nil {
		return
	}
	if err := o.scheduler.ScheduleNextRun(ctx, job.ProjectID, job.RunID); err != nil {
		logger.Error("schedule next run failed", zap.Error(err))
	}
}
