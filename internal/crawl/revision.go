package crawl

import (
	"context"

	"go.uber.org/zap"
)

// RevisionWriter persists fetched content as page revisions. A revision is
// only written when the normalized content hash differs from what the page
// already points at; this is the final safety net against races where
// content reverted between detection and fetch, and it makes duplicate
// concurrent work harmless.
type RevisionWriter struct {
	runID  string
	repo   Repository
	hasher Hasher
	logger *zap.Logger
}

// NewRevisionWriter constructs a writer scoped to one run.
func NewRevisionWriter(runID string, repo Repository, hasher Hasher, logger *zap.Logger) *RevisionWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RevisionWriter{runID: runID, repo: repo, hasher: hasher, logger: logger}
}

// SavePageRevision writes a new revision for the page unless its hash
// already matches the prior or current revision. It returns the revision id
// the page now points at and whether a new row was created. Persistence
// failures never propagate: an empty id means the revision was not saved
// and the caller continues with the rest of the crawl.
func (w *RevisionWriter) SavePageRevision(
	ctx context.Context,
	pageID string,
	content string,
	title string,
	description string,
	metadata map[string]string,
	oldRevisionID string,
) (revisionID string, created bool) {
	normalized := NormalizeContent(content)
	contentHash, err := w.hasher.Hash([]byte(normalized))
	if err != nil {
		w.logger.Error("hash content failed", zap.String("page_id", pageID), zap.Error(err))
		return "", false
	}

	if existing := w.matchingRevision(ctx, pageID, oldRevisionID, contentHash); existing != "" {
		w.logger.Info("content hash unchanged, skipping revision",
			zap.String("page_id", pageID),
			zap.String("hash", hashPrefix(contentHash)),
		)
		if err := w.repo.UpdatePageLastSeen(ctx, pageID); err != nil {
			w.logger.Warn("update last_seen_at failed", zap.String("page_id", pageID), zap.Error(err))
		}
		TotalRevisionsReused.Inc()
		return existing, false
	}

	id, err := w.repo.CreatePageRevision(ctx, PageRevision{
		PageID:        pageID,
		RunID:         w.runID,
		Content:       content,
		ContentSHA256: contentHash,
		Title:         title,
		Description:   description,
		Metadata:      metadata,
	})
	if err != nil || id == "" {
		w.logger.Error("create revision failed", zap.String("page_id", pageID), zap.Error(err))
		return "", false
	}
	if err := w.repo.UpdatePageRevision(ctx, pageID, id); err != nil {
		w.logger.Error("advance current revision failed",
			zap.String("page_id", pageID),
			zap.String("revision_id", id),
			zap.Error(err),
		)
	}
	TotalRevisionsCreated.Inc()
	w.logger.Info("saved page revision",
		zap.String("page_id", pageID),
		zap.String("revision_id", id),
		zap.String("hash", hashPrefix(contentHash)),
	)
	return id, true
}

// matchingRevision returns the id of a revision whose digest equals
// contentHash: the explicit prior revision first, then the page's current
// revision so repeated saves of identical content stay idempotent.
func (w *RevisionWriter) matchingRevision(ctx context.Context, pageID, oldRevisionID, contentHash string) string {
	if oldRevisionID != "" {
		old, err := w.repo.GetRevisionByID(ctx, oldRevisionID)
		if err != nil {
			w.logger.Warn("load prior revision failed",
				zap.String("revision_id", oldRevisionID),
				zap.Error(err),
			)
		} else if old != nil && old.ContentSHA256 == contentHash {
			return old.ID
		}
	}
	current, err := w.repo.GetPageCurrentRevision(ctx, pageID)
	if err != nil {
		w.logger.Warn("load current revision failed", zap.String("page_id", pageID), zap.Error(err))
		return ""
	}
	if current != nil && current.ContentSHA256 == contentHash {
		return current.ID
	}
	return ""
}
