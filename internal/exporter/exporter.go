// Package exporter writes the categorized records back out as a
// standard Netscape bookmark document, one top-level folder per
// category.
package exporter

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

// Exporter serializes grouped records. Category folders appear in
// configured order with the fallback bucket last; empty categories are
// skipped.
type Exporter struct {
	categories *models.CategorySet
	now        func() time.Time
}

// New creates an Exporter for the given category set.
func New(categories *models.CategorySet) *Exporter {
	return &Exporter{categories: categories, now: time.Now}
}

// WriteFile exports groups to path, creating parent directories as
// needed.
func (e *Exporter) WriteFile(path string, groups map[models.Category][]*models.BookmarkRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := e.Write(f, groups); err != nil {
		return err
	}

	total := 0
	for _, recs := range groups {
		total += len(recs)
	}
	log.Info().Str("path", path).Int("bookmarks", total).Msg("Exported bookmark file")
	return nil
}

// Write emits the Netscape bookmark document to w.
func (e *Exporter) Write(w io.Writer, groups map[models.Category][]*models.BookmarkRecord) error {
	stamp := strconv.FormatInt(e.now().Unix(), 10)

	fmt.Fprintln(w, "<!DOCTYPE NETSCAPE-Bookmark-file-1>")
	fmt.Fprintln(w, `<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">`)
	fmt.Fprintln(w, "<TITLE>Bookmarks</TITLE>")
	fmt.Fprintln(w, "<H1>Bookmarks</H1>")
	fmt.Fprintln(w, "<DL><p>")
	fmt.Fprintf(w, "    <DT><H3 ADD_DATE=\"%s\" PERSONAL_TOOLBAR_FOLDER=\"true\">Bookmarks Bar</H3>\n", stamp)
	fmt.Fprintln(w, "    <DL><p>")

	for _, cat := range e.exportOrder() {
		recs := groups[cat]
		if len(recs) == 0 {
			continue
		}
		fmt.Fprintf(w, "        <DT><H3 ADD_DATE=\"%s\">%s</H3>\n", stamp, html.EscapeString(string(cat)))
		fmt.Fprintln(w, "        <DL><p>")
		for _, rec := range recs {
			e.writeBookmark(w, rec, stamp)
		}
		fmt.Fprintln(w, "        </DL><p>")
	}

	fmt.Fprintln(w, "    </DL><p>")
	_, err := fmt.Fprintln(w, "</DL><p>")
	return err
}

func (e *Exporter) exportOrder() []models.Category {
	return append(e.categories.Labels(), models.Uncategorized)
}

func (e *Exporter) writeBookmark(w io.Writer, rec *models.BookmarkRecord, stamp string) {
	text := rec.BestTitle()
	if rec.DisplayName != "" && rec.Summary != "" {
		text = rec.DisplayName + " - " + rec.Summary
	}
	addDate := rec.AddDate
	if addDate == "" {
		addDate = stamp
	}
	fmt.Fprintf(w, "            <DT><A HREF=\"%s\" ADD_DATE=\"%s\">%s</A>\n",
		html.EscapeString(rec.URL), addDate, html.EscapeString(text))
}
