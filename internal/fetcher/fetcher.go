// Package fetcher retrieves best-effort page metadata for a bookmark URL.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotHTML means the endpoint answered with something we cannot
// extract metadata from (a PDF, an image, a JSON API).
var ErrNotHTML = errors.New("response is not an HTML document")

// StatusError is a non-2xx response from the target site.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Meta is the extracted page metadata. Empty fields are valid: plenty of
// pages carry no title or description.
type Meta struct {
	Title       string
	Description string
}

const (
	maxTitleLen = 100
	maxDescLen  = 200
)

// MetaFetcher issues one GET per call and scrapes title/description out
// of the response. It never retries; retry policy belongs to the caller
// so fetch and classify share one budget.
type MetaFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// New creates a MetaFetcher with a per-call timeout. Redirects are
// followed with the default client policy.
func New(timeout time.Duration, userAgent string) *MetaFetcher {
	return &MetaFetcher{
		client:    &http.Client{},
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch retrieves url and extracts metadata. Failure kinds, in the order
// they can occur: network/connection errors and timeouts from the
// transport, *StatusError for non-2xx answers, ErrNotHTML for non-HTML
// bodies or bodies goquery cannot parse.
func (f *MetaFetcher) Fetch(ctx context.Context, url string) (Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Meta{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Meta{}, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil && mt != "text/html" && mt != "application/xhtml+xml" {
			return Meta{}, fmt.Errorf("%s: content type %q: %w", url, mt, ErrNotHTML)
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w: %v", url, ErrNotHTML, err)
	}

	return extract(doc), nil
}

// extract pulls a title and description with the same preference order
// the site scraper always used: <title>, then <h1>, then og:title; meta
// description, then og:description, then the first paragraph.
func extract(doc *goquery.Document) Meta {
	var m Meta

	m.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if m.Title == "" {
		m.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if m.Title == "" {
		m.Title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		m.Title = strings.TrimSpace(m.Title)
	}

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		m.Description = strings.TrimSpace(desc)
	}
	if m.Description == "" {
		if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
			m.Description = strings.TrimSpace(desc)
		}
	}
	if m.Description == "" {
		m.Description = strings.TrimSpace(doc.Find("p").First().Text())
	}

	m.Title = truncate(m.Title, maxTitleLen)
	m.Description = truncate(m.Description, maxDescLen)
	return m
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
