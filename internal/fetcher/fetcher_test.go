package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchExtractsTitleAndDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
			<title>Example Site</title>
			<meta name="description" content="A site used in tests.">
		</head><body><p>hello</p></body></html>`)
	}))
	defer server.Close()

	f := New(2*time.Second, "test-agent")
	meta, err := f.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Equal(t, "Example Site", meta.Title)
	assert.Equal(t, "A site used in tests.", meta.Description)
}

func TestFetchFallsBackToOgTagsAndFirstParagraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<meta property="og:title" content="OG Title">
		</head><body><p>First paragraph text.</p></body></html>`)
	}))
	defer server.Close()

	f := New(2*time.Second, "test-agent")
	meta, err := f.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "First paragraph text.", meta.Description)
}

func TestFetchEmptyMetadataIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head></head><body></body></html>`)
	}))
	defer server.Close()

	f := New(2*time.Second, "test-agent")
	meta, err := f.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Empty(t, meta.Title)
	assert.Empty(t, meta.Description)
}

func TestFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := New(2*time.Second, "test-agent")
	_, err := f.Fetch(context.Background(), server.URL)

	var statusErr *StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, server.URL, statusErr.URL)
}

func TestFetchNonHTMLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	}))
	defer server.Close()

	f := New(2*time.Second, "test-agent")
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrNotHTML)
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	f := New(50*time.Millisecond, "test-agent")
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchConnectionRefused(t *testing.T) {
	f := New(time.Second, "test-agent")
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestFetchSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>x</title></head></html>")
	}))
	defer server.Close()

	f := New(time.Second, "custom-agent/1.0")
	_, err := f.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Equal(t, "custom-agent/1.0", gotUA)
}

func TestTruncateLongTitle(t *testing.T) {
	long := strings.Repeat("a", 150)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>%s</title></head></html>", long)
	}))
	defer server.Close()

	f := New(time.Second, "test-agent")
	meta, err := f.Fetch(context.Background(), server.URL)
	assert.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", maxTitleLen)+"...", meta.Title)
}
