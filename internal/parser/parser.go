// Package parser reads exported Netscape bookmark documents into the
// flat record list the pipeline operates on.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

// ErrNoBookmarks means the document parsed cleanly but contained no
// bookmark anchors, so there is nothing to process.
var ErrNoBookmarks = errors.New("no bookmarks found in document")

// ParseError wraps a failure to read or parse the input document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing bookmark file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile parses the bookmark file at path.
func ParseFile(path string) ([]*models.BookmarkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return records, nil
}

// Parse walks the document tree collecting bookmark anchors. Folder
// nesting comes from the H3/DL structure browsers emit: an H3 names the
// folder, the DL that follows holds its contents. Only http(s) anchors
// become records; everything else (javascript:, place:, chrome:) is
// dropped. Record indices are assigned in document order.
func Parse(r io.Reader) ([]*models.BookmarkRecord, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var records []*models.BookmarkRecord
	var folders []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "h3" && n.FirstChild != nil {
			folders = append(folders, strings.TrimSpace(n.FirstChild.Data))
		}

		if n.Type == html.ElementNode && n.Data == "a" {
			var href, addDate string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "href":
					href = strings.TrimSpace(attr.Val)
				case "add_date":
					addDate = attr.Val
				}
			}
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				rec := &models.BookmarkRecord{
					Index:      len(records),
					URL:        href,
					FolderPath: append([]string(nil), folders...),
					AddDate:    addDate,
				}
				if n.FirstChild != nil {
					rec.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				records = append(records, rec)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		// Leaving a DL closes the folder its H3 opened.
		if n.Type == html.ElementNode && n.Data == "dl" && len(folders) > 0 {
			folders = folders[:len(folders)-1]
		}
	}

	walk(doc)

	if len(records) == 0 {
		return nil, ErrNoBookmarks
	}
	return records, nil
}
