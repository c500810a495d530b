package crawl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
	"github.com/siteloom/llmstxt-worker/internal/hash/sha256"
	"github.com/siteloom/llmstxt-worker/internal/storage/memory"
)

func TestSavePageRevisionCreatesAndAdvancesPointer(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	pageID, err := store.CreatePageRecord(context.Background(), "proj-1", crawl.PageInfo{URL: "https://example.com"})
	require.NoError(t, err)

	writer := crawl.NewRevisionWriter("run-1", store, sha256.New(), nil)
	revID, created := writer.SavePageRevision(
		context.Background(), pageID,
		"<html><body>hello</body></html>", "Hello", "Desc",
		map[string]string{crawl.RevisionMetaChangeReason: "new page"},
		"",
	)

	require.True(t, created)
	require.NotEmpty(t, revID)

	current, err := store.GetPageCurrentRevision(context.Background(), pageID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, revID, current.ID)
	require.Equal(t, "run-1", current.RunID)
	require.Equal(t, "Hello", current.Title)
	require.Equal(t, "new page", current.Metadata[crawl.RevisionMetaChangeReason])
	require.NotEmpty(t, current.ContentSHA256)
}

func TestSavePageRevisionIdempotentForIdenticalContent(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	pageID, err := store.CreatePageRecord(context.Background(), "proj-1", crawl.PageInfo{URL: "https://example.com"})
	require.NoError(t, err)

	writer := crawl.NewRevisionWriter("run-1", store, sha256.New(), nil)
	content := "<html><body>same</body></html>"

	first, created := writer.SavePageRevision(context.Background(), pageID, content, "T", "", nil, "")
	require.True(t, created)
	require.NotEmpty(t, first)

	second, created := writer.SavePageRevision(context.Background(), pageID, content, "T", "", nil, first)
	require.False(t, created)
	require.Equal(t, first, second)

	// Markup churn around identical visible text is also a no-op.
	churned := "<html><head><script>x()</script></head><body>\n  same\t</body></html>"
	third, created := writer.SavePageRevision(context.Background(), pageID, churned, "T", "", nil, first)
	require.False(t, created)
	require.Equal(t, first, third)
}

func TestSavePageRevisionNewContentCreatesNewRevision(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	pageID, err := store.CreatePageRecord(context.Background(), "proj-1", crawl.PageInfo{URL: "https://example.com"})
	require.NoError(t, err)

	writer := crawl.NewRevisionWriter("run-1", store, sha256.New(), nil)

	first, created := writer.SavePageRevision(context.Background(), pageID, "<p>v1</p>", "", "", nil, "")
	require.True(t, created)

	second, created := writer.SavePageRevision(context.Background(), pageID, "<p>v2</p>", "", "", nil, first)
	require.True(t, created)
	require.NotEqual(t, first, second)

	current, err := store.GetPageCurrentRevision(context.Background(), pageID)
	require.NoError(t, err)
	require.Equal(t, second, current.ID)
}

func TestSavePageRevisionMatchesCurrentWithoutOldID(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	pageID, err := store.CreatePageRecord(context.Background(), "proj-1", crawl.PageInfo{URL: "https://example.com"})
	require.NoError(t, err)

	writer := crawl.NewRevisionWriter("run-1", store, sha256.New(), nil)
	content := "<p>stable</p>"

	first, created := writer.SavePageRevision(context.Background(), pageID, content, "", "", nil, "")
	require.True(t, created)

	// No old revision hint: the page's current revision still deduplicates.
	second, created := writer.SavePageRevision(context.Background(), pageID, content, "", "", nil, "")
	require.False(t, created)
	require.Equal(t, first, second)
}
