package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/eapache/queue"
	"github.com/ragatool/backend-go/internal/logger"
	"go.uber.org/zap"
)

const maxBodySize = 10 << 20

// Page 抓取结果
type Page struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// CrawlOptions 抓取参数
type CrawlOptions struct {
	// MaxDepth 0 只抓取起始页
	MaxDepth int
	// Filter 非空时只跟随匹配的链接
	Filter *regexp.Regexp
}

// Crawler 同域名广度优先抓取器
type Crawler struct {
	client    *http.Client
	extractor *Extractor
	logger    *zap.Logger
}

// NewCrawler 创建抓取器，timeout 为单页请求超时
func NewCrawler(timeout time.Duration, log *zap.Logger) *Crawler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Named("crawler")
	}
	return &Crawler{
		client:    &http.Client{Timeout: timeout},
		extractor: NewExtractor(),
		logger:    log,
	}
}

type visit struct {
	url   string
	depth int
}

// Crawl 从 startURL 开始抓取，单页失败会跳过，ctx 结束时返回 ctx.Err()
func (c *Crawler) Crawl(ctx context.Context, startURL string, opts CrawlOptions) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("invalid url %q", startURL)
	}

	pending := queue.New()
	pending.Add(visit{url: startURL})
	visited := make(map[string]bool)
	var pages []Page

	for pending.Length() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v := pending.Remove().(visit)
		if visited[v.url] || v.depth > opts.MaxDepth {
			continue
		}
		visited[v.url] = true
		c.logger.Debug("抓取页面", zap.String("url", v.url), zap.Int("depth", v.depth))

		body, err := c.fetch(ctx, v.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("页面抓取失败，已跳过", zap.String("url", v.url), zap.Error(err))
			continue
		}

		if text, err := c.extractor.ExtractText(body); err == nil && text != "" {
			pages = append(pages, Page{URL: v.url, Text: text})
		}
		if v.depth == opts.MaxDepth {
			continue
		}

		base, _ := url.Parse(v.url)
		links, err := Links(base, body)
		if err != nil {
			continue
		}
		for _, link := range links {
			target, err := url.Parse(link)
			if err != nil || target.Host != start.Host {
				continue
			}
			if opts.Filter != nil && !opts.Filter.MatchString(link) {
				continue
			}
			if !visited[link] {
				pending.Add(visit{url: link, depth: v.depth + 1})
			}
		}
	}
	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
