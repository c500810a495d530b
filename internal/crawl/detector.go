package crawl

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds how many URLs one reconciliation step handles.
// Batch boundaries carry no semantic meaning; they only cap per-step work.
const DefaultBatchSize = 10

// ChangeDetector reconciles the sitemap URL set and the persisted page set
// for one project, classifying every URL as new, changed, or unchanged.
// It holds no state between invocations.
//
// The change check is two-stage: a cheap HEAD probe against the stored
// ETag/Last-Modified values first, then an authoritative GET plus content
// hash. Matching headers prove a page unchanged without fetching the body;
// differing headers are a weak signal only and always confirmed by hash.
type ChangeDetector struct {
	projectID string
	runID     string
	repo      Repository
	fetcher   Fetcher
	sitemaps  *SitemapResolver
	hasher    Hasher
	batchSize int
	logger    *zap.Logger
}

// NewChangeDetector constructs a detector scoped to one project and run.
func NewChangeDetector(
	projectID string,
	runID string,
	repo Repository,
	fetcher Fetcher,
	hasher Hasher,
	logger *zap.Logger,
) *ChangeDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeDetector{
		projectID: projectID,
		runID:     runID,
		repo:      repo,
		fetcher:   fetcher,
		sitemaps:  NewSitemapResolver(fetcher, logger),
		hasher:    hasher,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// DetectChanges runs one reconciliation pass over the union of the sitemap
// URL set, the persisted page URLs, and the seed URL itself.
func (d *ChangeDetector) DetectChanges(ctx context.Context, baseURL string) DetectionResult {
	d.logger.Info("starting change detection",
		zap.String("project_id", d.projectID),
		zap.String("run_id", d.runID),
	)

	sitemapURLs := d.sitemaps.FetchSitemapURLs(ctx, baseURL)
	d.logger.Info("sitemap resolved", zap.Int("urls", len(sitemapURLs)))

	existing, err := d.repo.GetExistingPagesWithRevisions(ctx, d.projectID)
	if err != nil {
		// Fail open: with no page set every URL classifies as new and gets
		// re-processed rather than silently skipped.
		d.logger.Warn("loading existing pages failed", zap.Error(err))
		existing = nil
	}
	existingByURL := make(map[string]PageWithRevision, len(existing))
	for _, page := range existing {
		existingByURL[page.URL] = page
	}

	urlSet := make(map[string]struct{}, len(sitemapURLs)+len(existing)+1)
	for _, u := range sitemapURLs {
		urlSet[u] = struct{}{}
	}
	for _, page := range existing {
		urlSet[page.URL] = struct{}{}
	}
	urlSet[NormalizeURL(baseURL)] = struct{}{}

	// Sorted order keeps classification deterministic and batch-independent.
	allURLs := make([]string, 0, len(urlSet))
	for u := range urlSet {
		allURLs = append(allURLs, u)
	}
	sort.Strings(allURLs)

	result := DetectionResult{TotalChecked: len(allURLs)}
	for start := 0; start < len(allURLs); start += d.batchSize {
		end := start + d.batchSize
		if end > len(allURLs) {
			end = len(allURLs)
		}
		d.classifyBatch(ctx, allURLs[start:end], existingByURL, &result)
	}

	result.HasChanges = len(result.Changed) > 0 || len(result.New) > 0
	TotalURLsChecked.Add(float64(result.TotalChecked))
	d.logger.Info("change detection complete",
		zap.Int("changed", len(result.Changed)),
		zap.Int("new", len(result.New)),
		zap.Int("unchanged", len(result.Unchanged)),
		zap.Bool("has_changes", result.HasChanges),
	)
	return result
}

func (d *ChangeDetector) classifyBatch(
	ctx context.Context,
	urls []string,
	existingByURL map[string]PageWithRevision,
	result *DetectionResult,
) {
	for _, u := range urls {
		page, ok := existingByURL[u]
		if !ok {
			result.New = append(result.New, CandidatePage{URL: u, Info: pageInfoForURL(u)})
			TotalPagesNew.Inc()
			continue
		}
		verdict := d.checkPageChanges(ctx, u, page)
		if verdict.HasChanged {
			result.Changed = append(result.Changed, CandidatePage{
				URL:           u,
				PageID:        page.ID,
				ChangeReason:  verdict.Reason,
				OldRevisionID: verdict.OldRevisionID,
			})
			TotalPagesChanged.Inc()
			d.logger.Info("page changed", zap.String("url", u), zap.String("reason", verdict.Reason))
			continue
		}
		result.Unchanged = append(result.Unchanged, page)
		TotalPagesUnchanged.Inc()
		d.logger.Debug("page unchanged", zap.String("url", u), zap.String("reason", verdict.Reason))
	}
}

type headerVerdict int

const (
	headerInconclusive headerVerdict = iota
	headerUnchanged
	headerMismatch
)

// checkPageChanges runs the two-stage check for one existing page.
func (d *ChangeDetector) checkPageChanges(ctx context.Context, pageURL string, page PageWithRevision) ChangeResult {
	verdict := d.checkHeaders(ctx, pageURL, page.CurrentRevision)
	if verdict == headerUnchanged {
		return ChangeResult{
			HasChanged:    false,
			Reason:        "headers match stored values",
			OldRevisionID: page.CurrentRevisionID,
		}
	}
	result := d.checkContentHash(ctx, pageURL, page.CurrentRevision)
	if !result.HasChanged && verdict == headerMismatch {
		result.Reason = "headers changed but content identical"
	}
	return result
}

// checkHeaders is stage A. It can prove a page unchanged (stored and
// served validators both present and identical) but never changed on its
// own: servers regenerate ETags freely, so a mismatch only escalates to
// the content hash.
func (d *ChangeDetector) checkHeaders(ctx context.Context, pageURL string, rev *PageRevision) headerVerdict {
	if rev == nil {
		return headerInconclusive
	}
	storedETag := rev.Metadata[RevisionMetaETag]
	storedLastMod := rev.Metadata[RevisionMetaLastModified]
	if storedETag == "" && storedLastMod == "" {
		return headerInconclusive
	}

	head, err := d.fetcher.Head(ctx, pageURL)
	if err != nil {
		d.logger.Debug("head probe failed", zap.String("url", pageURL), zap.Error(err))
		return headerInconclusive
	}
	if head.StatusCode != http.StatusOK {
		return headerInconclusive
	}

	etag := head.Headers.Get("ETag")
	lastMod := head.Headers.Get("Last-Modified")

	comparable := 0
	mismatch := false
	if storedETag != "" && etag != "" {
		comparable++
		if etag != storedETag {
			mismatch = true
		}
	}
	if storedLastMod != "" && lastMod != "" {
		comparable++
		if lastMod != storedLastMod {
			mismatch = true
		}
	}
	// A validator the server now sends but we never stored is also a weak
	// change signal.
	newlyPresent := (storedETag == "" && etag != "") || (storedLastMod == "" && lastMod != "")

	switch {
	case mismatch || newlyPresent:
		return headerMismatch
	case comparable > 0:
		return headerUnchanged
	default:
		return headerInconclusive
	}
}

// checkContentHash is stage B: fetch the body, normalize, hash, and compare
// against the current revision's stored digest. Any failure classifies the
// page as changed so it gets re-processed.
func (d *ChangeDetector) checkContentHash(ctx context.Context, pageURL string, rev *PageRevision) ChangeResult {
	oldRevisionID := ""
	if rev != nil {
		oldRevisionID = rev.ID
	}

	resp, err := d.fetcher.Get(ctx, pageURL)
	if err != nil {
		return ChangeResult{
			HasChanged:    true,
			Reason:        fmt.Sprintf("error checking content hash: %v", err),
			OldRevisionID: oldRevisionID,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return ChangeResult{
			HasChanged:    true,
			Reason:        fmt.Sprintf("HTTP %d on full fetch", resp.StatusCode),
			OldRevisionID: oldRevisionID,
		}
	}

	normalized := NormalizeContent(string(resp.Body))
	contentHash, err := d.hasher.Hash([]byte(normalized))
	if err != nil {
		return ChangeResult{
			HasChanged:    true,
			Reason:        fmt.Sprintf("error hashing content: %v", err),
			OldRevisionID: oldRevisionID,
		}
	}

	if rev == nil {
		return ChangeResult{
			HasChanged:     true,
			Reason:         "no previous revision found",
			NewContentHash: contentHash,
		}
	}
	if rev.ContentSHA256 == "" {
		return ChangeResult{
			HasChanged:     true,
			Reason:         "no stored content hash",
			OldRevisionID:  rev.ID,
			NewContentHash: contentHash,
		}
	}
	if contentHash != rev.ContentSHA256 {
		return ChangeResult{
			HasChanged: true,
			Reason: fmt.Sprintf("content hash changed: %s... -> %s...",
				hashPrefix(rev.ContentSHA256), hashPrefix(contentHash)),
			OldRevisionID:  rev.ID,
			NewContentHash: contentHash,
		}
	}
	return ChangeResult{
		HasChanged:    false,
		Reason:        "no changes detected",
		OldRevisionID: rev.ID,
	}
}

func hashPrefix(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
