package crawl_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// fakeFetcher serves canned responses keyed by URL. Unknown URLs return 404.
type fakeFetcher struct {
	mu        sync.Mutex
	gets      map[string]crawl.FetchResponse
	heads     map[string]crawl.HeadResponse
	getErrs   map[string]error
	headErrs  map[string]error
	getCalls  []string
	headCalls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		gets:     map[string]crawl.FetchResponse{},
		heads:    map[string]crawl.HeadResponse{},
		getErrs:  map[string]error{},
		headErrs: map[string]error{},
	}
}

func (f *fakeFetcher) servePage(url, body string, headers http.Header) {
	if headers == nil {
		headers = http.Header{}
	}
	f.gets[url] = crawl.FetchResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       []byte(body),
	}
	f.heads[url] = crawl.HeadResponse{StatusCode: http.StatusOK, Headers: headers}
}

func (f *fakeFetcher) serveStatus(url string, status int) {
	f.gets[url] = crawl.FetchResponse{URL: url, StatusCode: status, Headers: http.Header{}}
	f.heads[url] = crawl.HeadResponse{StatusCode: status, Headers: http.Header{}}
}

func (f *fakeFetcher) Get(_ context.Context, url string) (crawl.FetchResponse, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, url)
	f.mu.Unlock()
	if err, ok := f.getErrs[url]; ok {
		return crawl.FetchResponse{}, err
	}
	if resp, ok := f.gets[url]; ok {
		return resp, nil
	}
	return crawl.FetchResponse{URL: url, StatusCode: http.StatusNotFound, Headers: http.Header{}}, nil
}

func (f *fakeFetcher) Head(_ context.Context, url string) (crawl.HeadResponse, error) {
	f.mu.Lock()
	f.headCalls = append(f.headCalls, url)
	f.mu.Unlock()
	if err, ok := f.headErrs[url]; ok {
		return crawl.HeadResponse{}, err
	}
	if resp, ok := f.heads[url]; ok {
		return resp, nil
	}
	return crawl.HeadResponse{StatusCode: http.StatusNotFound, Headers: http.Header{}}, nil
}

func (f *fakeFetcher) gotGet(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.getCalls {
		if u == url {
			return true
		}
	}
	return false
}
