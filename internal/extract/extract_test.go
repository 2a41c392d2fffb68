package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractTextSkipsBoilerplate(t *testing.T) {
	doc := `<html><head><title>T</title><style>p{}</style></head><body>
		<nav>menu</nav>
		<h1>Title</h1>
		<p>First   paragraph
		   continues.</p>
		<script>alert(1)</script>
		<div>Second <b>bold</b> part</div>
		<footer>copyright</footer>
	</body></html>`

	text, err := NewExtractor().ExtractText(doc)
	require.NoError(t, err)
	assert.Equal(t, "Title\nFirst paragraph continues.\nSecond bold part", text)
}

func TestExtractTextPlainInput(t *testing.T) {
	text, err := NewExtractor().ExtractText("just text")
	require.NoError(t, err)
	assert.Equal(t, "just text", text)
}

func TestLinksResolvesAndDropsFragments(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/index.html")
	links, err := Links(base, `
		<a href="a.html#top">a</a>
		<a href="/b">b</a>
		<a href="https://other.org/c">c</a>
		<a href="mailto:x@example.com">mail</a>
		<a>no href</a>`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/docs/a.html",
		"https://example.com/b",
		"https://other.org/c",
	}, links)
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<p>home</p><a href="/docs/one">1</a><a href="/blog/two">2</a><a href="/missing">x</a><a href="https://elsewhere.invalid/">ext</a>`)
	})
	mux.HandleFunc("/docs/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>doc one</p><a href="/docs/deep">deep</a><a href="/">home</a>`)
	})
	mux.HandleFunc("/blog/two", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>blog two</p>`)
	})
	mux.HandleFunc("/docs/deep", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>deep</p>`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pageURLs(pages []Page) []string {
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	sort.Strings(urls)
	return urls
}

func TestCrawlStartPageOnly(t *testing.T) {
	srv := newSite(t)
	pages, err := NewCrawler(time.Second, zap.NewNop()).Crawl(context.Background(), srv.URL+"/", CrawlOptions{})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "home", pages[0].Text)
}

func TestCrawlFollowsSameDomainLinks(t *testing.T) {
	srv := newSite(t)
	pages, err := NewCrawler(time.Second, zap.NewNop()).Crawl(context.Background(), srv.URL+"/", CrawlOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/blog/two", srv.URL + "/docs/one"}, pageURLs(pages))
}

func TestCrawlFilter(t *testing.T) {
	srv := newSite(t)
	pages, err := NewCrawler(time.Second, zap.NewNop()).Crawl(context.Background(), srv.URL+"/", CrawlOptions{
		MaxDepth: 2,
		Filter:   regexp.MustCompile(`/docs/`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/docs/deep", srv.URL + "/docs/one"}, pageURLs(pages))
}

func TestCrawlCancelled(t *testing.T) {
	srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCrawler(time.Second, zap.NewNop()).Crawl(ctx, srv.URL+"/", CrawlOptions{MaxDepth: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawlInvalidURL(t *testing.T) {
	_, err := NewCrawler(0, zap.NewNop()).Crawl(context.Background(), "not a url", CrawlOptions{})
	assert.Error(t, err)
}
