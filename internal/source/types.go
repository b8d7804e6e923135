package source

import "time"

// ChapterRecord is one chapter as listed by the upstream site.
type ChapterRecord struct {
	ID          string
	Label       string
	PublishedAt time.Time
	Views       int64
}

// ChapterList is the result of fetching a title's chapter listing.
type ChapterList struct {
	TitleName string
	Chapters  []ChapterRecord
}

// Metadata is the result of fetching a title's detail page.
type Metadata struct {
	Name   string
	Status string
}
