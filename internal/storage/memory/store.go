// Package memory provides in-memory implementations for development and
// testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// Store is an in-memory crawl.Repository.
type Store struct {
	mu        sync.RWMutex
	seq       int
	pages     map[string]crawl.Page
	revisions map[string]crawl.PageRevision
	runs      map[string]runState
	artifacts map[string]crawl.Artifact
	webhooks  map[string][]crawl.Webhook
	events    []crawl.WebhookEvent
	schedules map[string]crawl.ProjectSchedule
}

type runState struct {
	Status  crawl.RunStatus
	Summary string
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		pages:     make(map[string]crawl.Page),
		revisions: make(map[string]crawl.PageRevision),
		runs:      make(map[string]runState),
		artifacts: make(map[string]crawl.Artifact),
		webhooks:  make(map[string][]crawl.Webhook),
		schedules: make(map[string]crawl.ProjectSchedule),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

// SeedPage inserts a page directly, for tests and local runs.
func (s *Store) SeedPage(page crawl.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.ID] = page
}

// SeedRevision inserts a revision directly, for tests and local runs.
func (s *Store) SeedRevision(rev crawl.PageRevision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[rev.ID] = rev
}

// SeedWebhook registers a webhook for a project.
func (s *Store) SeedWebhook(hook crawl.Webhook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[hook.ProjectID] = append(s.webhooks[hook.ProjectID], hook)
}

// SeedSchedule registers a project schedule.
func (s *Store) SeedSchedule(sched crawl.ProjectSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ProjectID] = sched
}

// GetExistingPagesWithRevisions returns every page of a project joined
// with its current revision.
func (s *Store) GetExistingPagesWithRevisions(_ context.Context, projectID string) ([]crawl.PageWithRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawl.PageWithRevision
	for _, page := range s.pages {
		if page.ProjectID != projectID {
			continue
		}
		pwr := crawl.PageWithRevision{Page: page}
		if page.CurrentRevisionID != "" {
			if rev, ok := s.revisions[page.CurrentRevisionID]; ok {
				revCopy := rev
				pwr.CurrentRevision = &revCopy
			}
		}
		out = append(out, pwr)
	}
	return out, nil
}

// CreatePageRecord stores a new page and returns its generated ID.
func (s *Store) CreatePageRecord(_ context.Context, projectID string, info crawl.PageInfo) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("page")
	s.pages[id] = crawl.Page{
		ID:           id,
		ProjectID:    projectID,
		URL:          info.URL,
		Path:         info.Path,
		CanonicalURL: info.CanonicalURL,
		RenderMode:   info.RenderMode,
		IsIndexable:  info.IsIndexable,
		Metadata:     info.Metadata,
		LastSeenAt:   time.Now().UTC(),
	}
	return id, nil
}

// UpdatePageLastSeen bumps the page's last-seen timestamp.
func (s *Store) UpdatePageLastSeen(_ context.Context, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return errors.New("page not found")
	}
	page.LastSeenAt = time.Now().UTC()
	s.pages[pageID] = page
	return nil
}

// CreatePageRevision stores a new revision and returns its generated ID.
func (s *Store) CreatePageRevision(_ context.Context, rev crawl.PageRevision) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev.ID = s.nextID("rev")
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	s.revisions[rev.ID] = rev
	return rev.ID, nil
}

// UpdatePageRevision advances the page's current-revision pointer.
func (s *Store) UpdatePageRevision(_ context.Context, pageID, revisionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return errors.New("page not found")
	}
	page.CurrentRevisionID = revisionID
	page.LastSeenAt = time.Now().UTC()
	s.pages[pageID] = page
	return nil
}

// GetRevisionByID returns one revision, or nil when unknown.
func (s *Store) GetRevisionByID(_ context.Context, revisionID string) (*crawl.PageRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rev, ok := s.revisions[revisionID]
	if !ok {
		return nil, nil
	}
	revCopy := rev
	return &revCopy, nil
}

// GetPageCurrentRevision returns the revision the page points at, or nil.
func (s *Store) GetPageCurrentRevision(_ context.Context, pageID string) (*crawl.PageRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok || page.CurrentRevisionID == "" {
		return nil, nil
	}
	rev, ok := s.revisions[page.CurrentRevisionID]
	if !ok {
		return nil, nil
	}
	revCopy := rev
	return &revCopy, nil
}

// UpdateRunStatus records the run's status and summary.
func (s *Store) UpdateRunStatus(_ context.Context, runID string, status crawl.RunStatus, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = runState{Status: status, Summary: summary}
	return nil
}

// RunStatus reads back a run's recorded state, for tests.
func (s *Store) RunStatus(runID string) (crawl.RunStatus, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.runs[runID]
	return state.Status, state.Summary, ok
}

// CreateArtifactRecord stores an artifact row and returns its ID.
func (s *Store) CreateArtifactRecord(_ context.Context, artifact crawl.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact.ID = s.nextID("artifact")
	s.artifacts[artifact.ID] = artifact
	return artifact.ID, nil
}

// Artifacts returns all recorded artifacts, for tests.
func (s *Store) Artifacts() []crawl.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a)
	}
	return out
}

// GetActiveWebhooks lists the project's active webhooks.
func (s *Store) GetActiveWebhooks(_ context.Context, projectID string) ([]crawl.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawl.Webhook
	for _, hook := range s.webhooks[projectID] {
		if hook.IsActive {
			out = append(out, hook)
		}
	}
	return out, nil
}

// LogWebhookEvent appends a delivery-attempt record.
func (s *Store) LogWebhookEvent(_ context.Context, event crawl.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// WebhookEvents returns all logged delivery attempts, for tests.
func (s *Store) WebhookEvents() []crawl.WebhookEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.WebhookEvent, len(s.events))
	copy(out, s.events)
	return out
}

// GetProjectSchedule returns the project's schedule, or nil when unknown.
func (s *Store) GetProjectSchedule(_ context.Context, projectID string) (*crawl.ProjectSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[projectID]
	if !ok {
		return nil, nil
	}
	schedCopy := sched
	return &schedCopy, nil
}

// UpdateProjectNextRun records the last and next run times for a project.
func (s *Store) UpdateProjectNextRun(_ context.Context, projectID string, lastRunAt, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[projectID]
	if !ok {
		return errors.New("project not found")
	}
	last := lastRunAt
	next := nextRunAt
	sched.LastRunAt = &last
	sched.NextRunAt = &next
	s.schedules[projectID] = sched
	return nil
}
