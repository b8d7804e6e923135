// Package compare diffs freshly scraped chapter listings against the set of
// chapters already persisted. The diff is the system's idempotence anchor:
// everything downstream (inserts, notifications) keys off it.
package compare

import "mangawatch/internal/source"

// FindNewChapters returns the scraped chapters whose ids are not in the known
// set, preserving scraped order. Pure function; same inputs always yield the
// same result. Runs in O(known + scraped).
func FindNewChapters(known map[string]struct{}, scraped []source.ChapterRecord) []source.ChapterRecord {
	if len(scraped) == 0 {
		return nil
	}

	var fresh []source.ChapterRecord
	seen := make(map[string]struct{}, len(scraped))
	for _, chapter := range scraped {
		if chapter.ID == "" {
			continue
		}
		if _, dup := seen[chapter.ID]; dup {
			continue
		}
		seen[chapter.ID] = struct{}{}
		if _, ok := known[chapter.ID]; ok {
			continue
		}
		fresh = append(fresh, chapter)
	}
	return fresh
}

// ShouldBatch reports whether a set of new chapters warrants one grouped
// notification instead of one per chapter. A title dumping many chapters at
// once would otherwise spam the user.
func ShouldBatch(newChapters []source.ChapterRecord, threshold int) bool {
	if threshold < 1 {
		threshold = 1
	}
	return len(newChapters) >= threshold
}
