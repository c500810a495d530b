package crawl

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Crawler defaults, overridable per job via Options.
const (
	DefaultMaxPages   = 200
	DefaultMaxDepth   = 2
	DefaultCrawlDelay = 500 * time.Millisecond
)

// Options bounds one incremental crawl.
type Options struct {
	MaxPages int
	MaxDepth int
	Delay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Delay <= 0 {
		o.Delay = DefaultCrawlDelay
	}
	return o
}

// IncrementalCrawler fetches only the pages the change detector flagged as
// new or changed, one URL at a time with a fixed inter-request delay.
type IncrementalCrawler struct {
	projectID string
	detector  *ChangeDetector
	revisions *RevisionWriter
	repo      Repository
	fetcher   Fetcher
	logger    *zap.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewIncrementalCrawler constructs a crawler scoped to one project and run.
func NewIncrementalCrawler(
	projectID string,
	runID string,
	repo Repository,
	fetcher Fetcher,
	hasher Hasher,
	logger *zap.Logger,
) *IncrementalCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncrementalCrawler{
		projectID: projectID,
		detector:  NewChangeDetector(projectID, runID, repo, fetcher, hasher, logger),
		revisions: NewRevisionWriter(runID, repo, hasher, logger),
		repo:      repo,
		fetcher:   fetcher,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// CrawlWithChangeDetection runs detection and then fetches only the
// new/changed subset. A fully unchanged site returns immediately with zero
// pages crawled, which is the pipeline's main efficiency property.
func (c *IncrementalCrawler) CrawlWithChangeDetection(ctx context.Context, startURL string, opts Options) CrawlResult {
	opts = opts.withDefaults()

	changes := c.detector.DetectChanges(ctx, startURL)
	result := CrawlResult{
		StartURL:        NormalizeURL(startURL),
		MaxPages:        opts.MaxPages,
		MaxDepth:        opts.MaxDepth,
		Changed:         changes.Changed,
		New:             changes.New,
		Unchanged:       changes.Unchanged,
		ChangesDetected: changes.HasChanges,
	}
	if !changes.HasChanges {
		c.logger.Info("no changes detected, skipping crawl")
		return result
	}

	worklist := buildWorklist(result.StartURL, changes, opts.MaxPages)
	c.logger.Info("crawling changed and new pages",
		zap.Int("changed", len(changes.Changed)),
		zap.Int("new", len(changes.New)),
		zap.Int("worklist", len(worklist)),
	)

	for i, candidate := range worklist {
		if page, created, ok := c.crawlOne(ctx, candidate); ok {
			result.Pages = append(result.Pages, page)
			if created {
				result.RevisionsCreated++
			}
		}
		if i < len(worklist)-1 {
			c.sleep(opts.Delay)
		}
	}
	result.PagesCrawled = len(result.Pages)
	return result
}

// buildWorklist concatenates changed then new pages and truncates to
// maxPages, always keeping the start URL when it appears anywhere so the
// generated artifact has a stable home-page entry.
func buildWorklist(startURL string, changes DetectionResult, maxPages int) []CandidatePage {
	candidates := make([]CandidatePage, 0, len(changes.Changed)+len(changes.New))
	candidates = append(candidates, changes.Changed...)
	candidates = append(candidates, changes.New...)

	worklist := make([]CandidatePage, 0, maxPages)
	for _, candidate := range candidates {
		if candidate.URL == startURL {
			worklist = append(worklist, candidate)
			break
		}
	}
	remaining := maxPages - len(worklist)
	for _, candidate := range candidates {
		if remaining == 0 {
			break
		}
		if candidate.URL == startURL {
			continue
		}
		worklist = append(worklist, candidate)
		remaining--
	}
	return worklist
}

// crawlOne fetches a single candidate and persists its revision. Failures
// skip the entry; they never abort the run and are never retried within it.
func (c *IncrementalCrawler) crawlOne(ctx context.Context, candidate CandidatePage) (CrawledPage, bool, bool) {
	c.logger.Info("crawling page", zap.String("url", candidate.URL))

	resp, err := c.fetcher.Get(ctx, candidate.URL)
	if err != nil {
		TotalFetchErrors.Inc()
		c.logger.Warn("fetch failed", zap.String("url", candidate.URL), zap.Error(err))
		return CrawledPage{}, false, false
	}
	if resp.StatusCode != http.StatusOK {
		TotalFetchErrors.Inc()
		c.logger.Warn("fetch returned non-200",
			zap.String("url", candidate.URL),
			zap.Int("status", resp.StatusCode),
		)
		return CrawledPage{}, false, false
	}

	body := string(resp.Body)
	title, description := ExtractPageMeta(body)

	pageID := candidate.PageID
	oldRevisionID := candidate.OldRevisionID
	if pageID == "" {
		pageID, err = c.repo.CreatePageRecord(ctx, c.projectID, candidate.Info)
		if err != nil || pageID == "" {
			c.logger.Error("create page record failed", zap.String("url", candidate.URL), zap.Error(err))
			return CrawledPage{}, false, false
		}
		oldRevisionID = ""
		c.logger.Info("created page record",
			zap.String("url", candidate.URL),
			zap.String("page_id", pageID),
		)
	}

	metadata := revisionMetadata(candidate, resp.Headers)
	revisionID, created := c.revisions.SavePageRevision(
		ctx, pageID, body, title, description, metadata, oldRevisionID,
	)
	if revisionID == "" {
		return CrawledPage{}, false, false
	}
	return CrawledPage{
		URL:         candidate.URL,
		Title:       title,
		Description: description,
		PageID:      pageID,
		RevisionID:  revisionID,
	}, created, true
}

// revisionMetadata records why the page was crawled and the response
// validators, which the next run's header check compares against.
func revisionMetadata(candidate CandidatePage, headers http.Header) map[string]string {
	metadata := map[string]string{}
	reason := candidate.ChangeReason
	if reason == "" {
		reason = "new page"
	}
	metadata[RevisionMetaChangeReason] = reason
	if etag := headers.Get("ETag"); etag != "" {
		metadata[RevisionMetaETag] = etag
	}
	if lastMod := headers.Get("Last-Modified"); lastMod != "" {
		metadata[RevisionMetaLastModified] = lastMod
	}
	return metadata
}
