// Package postgres provides the Postgres-backed Repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB is the pool surface the store uses. pgxpool.Pool satisfies it, as
// does pgxmock's pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements crawl.Repository against Postgres. Every method is a
// single statement; the pipeline never holds a transaction across steps.
type Store struct {
	db DB
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a Store from an existing pool (primarily for testing).
func NewWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

const pagesWithRevisionsQuery = `
SELECT
	p.id, p.project_id, p.url, p.path, p.canonical_url, p.render_mode,
	p.is_indexable, p.metadata, p.current_revision_id, p.last_seen_at,
	r.id, r.page_id, r.run_id, r.content, r.content_sha256,
	r.title, r.description, r.metadata, r.created_at
FROM pages p
LEFT JOIN page_revisions r ON r.id = p.current_revision_id
WHERE p.project_id = $1
ORDER BY p.url`

// GetExistingPagesWithRevisions loads every page of a project with its
// current revision attached, resolved in a single LEFT JOIN.
func (s *Store) GetExistingPagesWithRevisions(ctx context.Context, projectID string) ([]crawl.PageWithRevision, error) {
	rows, err := s.db.Query(ctx, pagesWithRevisionsQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("query pages with revisions: %w", err)
	}
	defer rows.Close()

	var out []crawl.PageWithRevision
	for rows.Next() {
		var (
			page         crawl.Page
			pageMeta     []byte
			currentRevID *string

			revID, revPageID, revRunID *string
			revContent, revHash        *string
			revTitle, revDescription   *string
			revMeta                    []byte
			revCreatedAt               *time.Time
		)
		err := rows.Scan(
			&page.ID, &page.ProjectID, &page.URL, &page.Path, &page.CanonicalURL,
			&page.RenderMode, &page.IsIndexable, &pageMeta, &currentRevID, &page.LastSeenAt,
			&revID, &revPageID, &revRunID, &revContent, &revHash,
			&revTitle, &revDescription, &revMeta, &revCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		if currentRevID != nil {
			page.CurrentRevisionID = *currentRevID
		}
		page.Metadata, err = unmarshalMetadata(pageMeta)
		if err != nil {
			return nil, fmt.Errorf("decode page metadata: %w", err)
		}

		pwr := crawl.PageWithRevision{Page: page}
		if revID != nil {
			rev := crawl.PageRevision{ID: *revID}
			if revPageID != nil {
				rev.PageID = *revPageID
			}
			if revRunID != nil {
				rev.RunID = *revRunID
			}
			if revContent != nil {
				rev.Content = *revContent
			}
			if revHash != nil {
				rev.ContentSHA256 = *revHash
			}
			if revTitle != nil {
				rev.Title = *revTitle
			}
			if revDescription != nil {
				rev.Description = *revDescription
			}
			if revCreatedAt != nil {
				rev.CreatedAt = *revCreatedAt
			}
			rev.Metadata, err = unmarshalMetadata(revMeta)
			if err != nil {
				return nil, fmt.Errorf("decode revision metadata: %w", err)
			}
			pwr.CurrentRevision = &rev
		}
		out = append(out, pwr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page rows: %w", err)
	}
	return out, nil
}

// CreatePageRecord inserts a page row and returns its generated ID.
func (s *Store) CreatePageRecord(ctx context.Context, projectID string, info crawl.PageInfo) (string, error) {
	meta, err := marshalMetadata(info.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal page metadata: %w", err)
	}
	var id string
	err = s.db.QueryRow(ctx, `
INSERT INTO pages (project_id, url, path, canonical_url, render_mode, is_indexable, metadata, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id`,
		projectID, info.URL, info.Path, info.CanonicalURL, info.RenderMode, info.IsIndexable, meta,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert page: %w", err)
	}
	return id, nil
}

// UpdatePageLastSeen bumps the page's last-seen timestamp.
func (s *Store) UpdatePageLastSeen(ctx context.Context, pageID string) error {
	if _, err := s.db.Exec(ctx, `UPDATE pages SET last_seen_at = NOW() WHERE id = $1`, pageID); err != nil {
		return fmt.Errorf("update page last seen: %w", err)
	}
	return nil
}

// CreatePageRevision inserts an immutable revision row and returns its ID.
func (s *Store) CreatePageRevision(ctx context.Context, rev crawl.PageRevision) (string, error) {
	meta, err := marshalMetadata(rev.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal revision metadata: %w", err)
	}
	var id string
	err = s.db.QueryRow(ctx, `
INSERT INTO page_revisions (page_id, run_id, content, content_sha256, title, description, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		rev.PageID, rev.RunID, rev.Content, rev.ContentSHA256, rev.Title, rev.Description, meta,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert page revision: %w", err)
	}
	return id, nil
}

// UpdatePageRevision advances the page's current-revision pointer.
func (s *Store) UpdatePageRevision(ctx context.Context, pageID, revisionID string) error {
	if _, err := s.db.Exec(ctx, `
UPDATE pages SET current_revision_id = $2, last_seen_at = NOW() WHERE id = $1`,
		pageID, revisionID,
	); err != nil {
		return fmt.Errorf("update page revision pointer: %w", err)
	}
	return nil
}

const revisionColumns = `id, page_id, run_id, content, content_sha256, title, description, metadata, created_at`

// GetRevisionByID loads one revision, or nil when it does not exist.
func (s *Store) GetRevisionByID(ctx context.Context, revisionID string) (*crawl.PageRevision, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+revisionColumns+` FROM page_revisions WHERE id = $1`, revisionID)
	return scanRevision(row)
}

// GetPageCurrentRevision loads the revision the page currently points at,
// or nil when the page has none.
func (s *Store) GetPageCurrentRevision(ctx context.Context, pageID string) (*crawl.PageRevision, error) {
	row := s.db.QueryRow(ctx, `
SELECT r.id, r.page_id, r.run_id, r.content, r.content_sha256, r.title, r.description, r.metadata, r.created_at
FROM page_revisions r
JOIN pages p ON p.current_revision_id = r.id
WHERE p.id = $1`, pageID)
	return scanRevision(row)
}

func scanRevision(row pgx.Row) (*crawl.PageRevision, error) {
	var (
		rev  crawl.PageRevision
		meta []byte
	)
	err := row.Scan(
		&rev.ID, &rev.PageID, &rev.RunID, &rev.Content, &rev.ContentSHA256,
		&rev.Title, &rev.Description, &meta, &rev.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan revision: %w", err)
	}
	rev.Metadata, err = unmarshalMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("decode revision metadata: %w", err)
	}
	return &rev, nil
}

// UpdateRunStatus updates the run's status and human-readable summary.
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status crawl.RunStatus, summary string) error {
	if _, err := s.db.Exec(ctx, `
UPDATE runs SET status = $2, summary = $3, updated_at = NOW() WHERE id = $1`,
		runID, string(status), summary,
	); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// CreateArtifactRecord inserts a generated-artifact row and returns its ID.
func (s *Store) CreateArtifactRecord(ctx context.Context, artifact crawl.Artifact) (string, error) {
	meta, err := marshalMetadata(artifact.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal artifact metadata: %w", err)
	}
	var id string
	err = s.db.QueryRow(ctx, `
INSERT INTO artifacts (project_id, run_id, type, storage_path, file_name, size_bytes, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		artifact.ProjectID, artifact.RunID, artifact.Type,
		artifact.StoragePath, artifact.FileName, artifact.SizeBytes, meta,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}
	return id, nil
}

// GetActiveWebhooks lists the project's active webhooks.
func (s *Store) GetActiveWebhooks(ctx context.Context, projectID string) ([]crawl.Webhook, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, project_id, url, secret, is_active
FROM webhooks
WHERE project_id = $1 AND is_active = TRUE
ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var out []crawl.Webhook
	for rows.Next() {
		var (
			hook   crawl.Webhook
			secret *string
		)
		if err := rows.Scan(&hook.ID, &hook.ProjectID, &hook.URL, &secret, &hook.IsActive); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		if secret != nil {
			hook.Secret = *secret
		}
		out = append(out, hook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return out, nil
}

// LogWebhookEvent records one delivery attempt.
func (s *Store) LogWebhookEvent(ctx context.Context, event crawl.WebhookEvent) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if _, err := s.db.Exec(ctx, `
INSERT INTO webhook_events (webhook_id, event_type, payload, status_code, response_body, attempted_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		event.WebhookID, event.EventType, payload, event.StatusCode, event.ResponseBody, event.AttemptedAt,
	); err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

// GetProjectSchedule loads the project's recurring-run configuration, or
// nil when the project does not exist.
func (s *Store) GetProjectSchedule(ctx context.Context, projectID string) (*crawl.ProjectSchedule, error) {
	var (
		sched  crawl.ProjectSchedule
		domain *string
		cron   *string
	)
	err := s.db.QueryRow(ctx, `
SELECT id, domain, cron_expression, is_scheduling_enabled, last_run_at, next_run_at
FROM projects
WHERE id = $1`, projectID,
	).Scan(&sched.ProjectID, &domain, &cron, &sched.IsEnabled, &sched.LastRunAt, &sched.NextRunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query project schedule: %w", err)
	}
	if domain != nil {
		sched.Domain = *domain
	}
	if cron != nil {
		sched.CronExpression = *cron
	}
	return &sched, nil
}

// UpdateProjectNextRun records the run that just finished and the one
// coming next.
func (s *Store) UpdateProjectNextRun(ctx context.Context, projectID string, lastRunAt, nextRunAt time.Time) error {
	if _, err := s.db.Exec(ctx, `
UPDATE projects SET last_run_at = $2, next_run_at = $3 WHERE id = $1`,
		projectID, lastRunAt, nextRunAt,
	); err != nil {
		return fmt.Errorf("update project next run: %w", err)
	}
	return nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
