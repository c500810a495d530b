package crawl

import (
	"context"
	"time"
)

// Repository is the persistence surface the pipeline depends on. The core
// never holds a connection or transaction across steps; every call is a
// single request against the external data store.
type Repository interface {
	// GetExistingPagesWithRevisions returns all pages for a project with
	// each page's current revision attached. Implementations must resolve
	// the join in at most one batched query.
	GetExistingPagesWithRevisions(ctx context.Context, projectID string) ([]PageWithRevision, error)
	CreatePageRecord(ctx context.Context, projectID string, info PageInfo) (string, error)
	UpdatePageLastSeen(ctx context.Context, pageID string) error
	CreatePageRevision(ctx context.Context, rev PageRevision) (string, error)
	// UpdatePageRevision advances the page's current-revision pointer.
	UpdatePageRevision(ctx context.Context, pageID, revisionID string) error
	GetRevisionByID(ctx context.Context, revisionID string) (*PageRevision, error)
	GetPageCurrentRevision(ctx context.Context, pageID string) (*PageRevision, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, summary string) error
	CreateArtifactRecord(ctx context.Context, artifact Artifact) (string, error)
	GetActiveWebhooks(ctx context.Context, projectID string) ([]Webhook, error)
	LogWebhookEvent(ctx context.Context, event WebhookEvent) error
	GetProjectSchedule(ctx context.Context, projectID string) (*ProjectSchedule, error)
	UpdateProjectNextRun(ctx context.Context, projectID string, lastRunAt, nextRunAt time.Time) error
}

// Fetcher performs outbound HTTP against crawl targets.
type Fetcher interface {
	Get(ctx context.Context, url string) (FetchResponse, error)
	Head(ctx context.Context, url string) (HeadResponse, error)
}

// BlobStore writes generated artifacts and returns a public URL.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for content-addressed revisions.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
