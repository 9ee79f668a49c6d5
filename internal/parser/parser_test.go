package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDoc = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><H3 ADD_DATE="1700000000" PERSONAL_TOOLBAR_FOLDER="true">Bookmarks Bar</H3>
    <DL><p>
        <DT><A HREF="https://github.com" ADD_DATE="1700000001">GitHub</A>
        <DT><H3 ADD_DATE="1700000002">Dev</H3>
        <DL><p>
            <DT><A HREF="https://go.dev" ADD_DATE="1700000003">The Go Programming Language</A>
            <DT><A HREF="javascript:void(0)">Bookmarklet</A>
        </DL><p>
        <DT><A HREF="https://news.ycombinator.com">Hacker News</A>
    </DL><p>
</DL><p>
`

func TestParseExtractsRecordsInDocumentOrder(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleDoc))
	assert.NoError(t, err)
	assert.Len(t, records, 3)

	assert.Equal(t, "https://github.com", records[0].URL)
	assert.Equal(t, "GitHub", records[0].Title)
	assert.Equal(t, "1700000001", records[0].AddDate)

	assert.Equal(t, "https://go.dev", records[1].URL)
	assert.Equal(t, "The Go Programming Language", records[1].Title)

	assert.Equal(t, "https://news.ycombinator.com", records[2].URL)
	assert.Empty(t, records[2].AddDate)

	for i, rec := range records {
		assert.Equal(t, i, rec.Index)
	}
}

func TestParseTracksFolderNesting(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleDoc))
	assert.NoError(t, err)

	assert.Equal(t, []string{"Bookmarks Bar"}, records[0].FolderPath)
	assert.Equal(t, []string{"Bookmarks Bar", "Dev"}, records[1].FolderPath)
	// Hacker News sits after the nested DL closed.
	assert.Equal(t, []string{"Bookmarks Bar"}, records[2].FolderPath)
}

func TestParseSkipsNonHTTPAnchors(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleDoc))
	assert.NoError(t, err)
	for _, rec := range records {
		assert.True(t, strings.HasPrefix(rec.URL, "http"))
	}
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse(strings.NewReader("<html><body><p>not a bookmark file</p></body></html>"))
	assert.ErrorIs(t, err, ErrNoBookmarks)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("does-not-exist.html")
	assert.Error(t, err)

	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, "does-not-exist.html", perr.Path)
}
