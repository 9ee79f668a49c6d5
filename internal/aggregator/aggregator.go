// Package aggregator partitions terminal records by final category for
// the exporter.
package aggregator

import (
	"sort"

	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

// Group buckets records by their final category. Within each bucket,
// records are ordered by their stable input index, so output order is
// deterministic regardless of completion order. Pure and synchronous:
// it expects every record to already be terminal.
func Group(records []*models.BookmarkRecord) map[models.Category][]*models.BookmarkRecord {
	groups := make(map[models.Category][]*models.BookmarkRecord)
	for _, rec := range records {
		cat := rec.Category
		if cat == "" {
			cat = models.Uncategorized
		}
		groups[cat] = append(groups[cat], rec)
	}
	for _, recs := range groups {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].Index < recs[j].Index
		})
	}
	return groups
}

// Statistics returns per-category record counts.
func Statistics(groups map[models.Category][]*models.BookmarkRecord) map[models.Category]int {
	stats := make(map[models.Category]int, len(groups))
	for cat, recs := range groups {
		stats[cat] = len(recs)
	}
	return stats
}
