package crawl

import (
	"net/http"
	"time"
)

// RunStatus represents the lifecycle state of a crawl run.
type RunStatus string

// Run status values persisted in the runs table.
const (
	RunStatusQueued            RunStatus = "QUEUED"
	RunStatusInProgress        RunStatus = "IN_PROGRESS"
	RunStatusCompleteNoDiffs   RunStatus = "COMPLETE_NO_DIFFS"
	RunStatusCompleteWithDiffs RunStatus = "COMPLETE_WITH_DIFFS"
	RunStatusFailed            RunStatus = "FAILED"
)

// RenderModeStatic is the only render mode in current scope.
const RenderModeStatic = "STATIC"

// ArtifactTypeLLMSText identifies the generated llms.txt digest artifact.
const ArtifactTypeLLMSText = "LLMS_TXT"

// Page is the persisted identity of one URL within a project.
type Page struct {
	ID                string            `json:"id"`
	ProjectID         string            `json:"project_id"`
	URL               string            `json:"url"`
	Path              string            `json:"path"`
	CanonicalURL      string            `json:"canonical_url"`
	RenderMode        string            `json:"render_mode"`
	IsIndexable       bool              `json:"is_indexable"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CurrentRevisionID string            `json:"current_revision_id,omitempty"`
	LastSeenAt        time.Time         `json:"last_seen_at"`
}

// PageRevision is an immutable snapshot of a page's content.
type PageRevision struct {
	ID            string            `json:"id"`
	PageID        string            `json:"page_id"`
	RunID         string            `json:"run_id"`
	Content       string            `json:"content"`
	ContentSHA256 string            `json:"content_sha256"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Revision metadata keys used by the header-based change check.
const (
	RevisionMetaETag         = "etag"
	RevisionMetaLastModified = "last_modified"
	RevisionMetaChangeReason = "change_reason"
)

// PageWithRevision is the repository read model: a page joined with its
// current revision, or a nil revision when the page has never been saved.
type PageWithRevision struct {
	Page
	CurrentRevision *PageRevision `json:"current_revision,omitempty"`
}

// PageInfo is the minimal record produced for a newly discovered URL.
// No fetch happens at discovery time; the crawler fills in the rest.
type PageInfo struct {
	URL          string            `json:"url"`
	Path         string            `json:"path"`
	CanonicalURL string            `json:"canonical_url"`
	RenderMode   string            `json:"render_mode"`
	IsIndexable  bool              `json:"is_indexable"`
	Metadata     map[string]string `json:"metadata"`
}

// ChangeResult is the verdict of the two-stage change check for one URL.
type ChangeResult struct {
	HasChanged     bool   `json:"has_changed"`
	Reason         string `json:"reason"`
	OldRevisionID  string `json:"old_revision_id,omitempty"`
	NewContentHash string `json:"new_content_hash,omitempty"`
}

// CandidatePage is one entry of the crawl worklist: either an existing
// page that changed (PageID set) or a newly discovered one (Info set).
type CandidatePage struct {
	URL           string   `json:"url"`
	PageID        string   `json:"page_id,omitempty"`
	Info          PageInfo `json:"info"`
	ChangeReason  string   `json:"change_reason,omitempty"`
	OldRevisionID string   `json:"old_revision_id,omitempty"`
}

// DetectionResult partitions every candidate URL of one reconciliation pass.
type DetectionResult struct {
	HasChanges   bool               `json:"has_changes"`
	Changed      []CandidatePage    `json:"changed_pages"`
	New          []CandidatePage    `json:"new_pages"`
	Unchanged    []PageWithRevision `json:"unchanged_pages"`
	TotalChecked int                `json:"total_checked"`
}

// CrawledPage is one successfully fetched and persisted page.
type CrawledPage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PageID      string `json:"page_id"`
	RevisionID  string `json:"revision_id"`
}

// CrawlResult is the transient outcome of one crawl, owned by the run
// orchestrator for the duration of a job.
type CrawlResult struct {
	StartURL         string             `json:"start_url"`
	PagesCrawled     int                `json:"pages_crawled"`
	MaxPages         int                `json:"max_pages"`
	MaxDepth         int                `json:"max_depth"`
	Pages            []CrawledPage      `json:"pages"`
	ChangesDetected  bool               `json:"changes_detected"`
	Changed          []CandidatePage    `json:"changed_pages"`
	New              []CandidatePage    `json:"new_pages"`
	Unchanged        []PageWithRevision `json:"unchanged_pages"`
	RevisionsCreated int                `json:"revisions_created"`
}

// Artifact describes a generated digest document and where it lives.
type Artifact struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	RunID       string            `json:"run_id"`
	Type        string            `json:"type"`
	StoragePath string            `json:"storage_path"`
	FileName    string            `json:"file_name"`
	SizeBytes   int64             `json:"size_bytes"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Webhook is a registered notification target for a project.
type Webhook struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	URL       string `json:"url"`
	Secret    string `json:"secret,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// WebhookEvent records one delivery attempt, successful or not.
type WebhookEvent struct {
	WebhookID    string    `json:"webhook_id"`
	EventType    string    `json:"event_type"`
	Payload      []byte    `json:"payload"`
	StatusCode   int       `json:"status_code,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	AttemptedAt  time.Time `json:"attempted_at"`
}

// ProjectSchedule holds the recurring-run configuration for a project.
type ProjectSchedule struct {
	ProjectID      string     `json:"project_id"`
	Domain         string     `json:"domain"`
	CronExpression string     `json:"cron_expression"`
	IsEnabled      bool       `json:"is_enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
}

// Job is the inbound job descriptor accepted at the orchestration boundary.
type Job struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ProjectID    string `json:"projectId"`
	RunID        string `json:"runId"`
	IsScheduled  bool   `json:"isScheduled"`
	IsInitialRun bool   `json:"isInitialRun"`
}

// JobResult is returned to the job's caller after a run completes.
type JobResult struct {
	ArtifactURL     string             `json:"artifact_url,omitempty"`
	PagesCrawled    int                `json:"pages_crawled"`
	ChangesDetected bool               `json:"changes_detected"`
	Changed         []CandidatePage    `json:"changed_pages"`
	New             []CandidatePage    `json:"new_pages"`
	Unchanged       []PageWithRevision `json:"unchanged_pages"`
}

// FetchResponse is the result of a full GET through a Fetcher.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// HeadResponse is the result of a lightweight HEAD probe.
type HeadResponse struct {
	StatusCode int
	Headers    http.Header
}
