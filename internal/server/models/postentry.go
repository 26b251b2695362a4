package models

import (
	"fmt"
	"time"
)

// ContentType tags a post entry for the client's renderer. The server never
// parses entry content; the tag is advisory metadata only.
type ContentType string

const (
	ContentMarkdown ContentType = "markdown"
	ContentFile     ContentType = "file"
)

func (c ContentType) String() string { return string(c) }

// ParseContentType converts the stored/wire representation into a ContentType.
func ParseContentType(s string) (ContentType, error) {
	switch s {
	case "markdown":
		return ContentMarkdown, nil
	case "file":
		return ContentFile, nil
	default:
		return "", fmt.Errorf("invalid content type: %q", s)
	}
}

// PostEntry is one ordered chunk of an appendable post. Order values are
// assigned strictly increasing from 0 and never reused.
type PostEntry struct {
	RecordID string
	Order    int64
	// Content is the client's transport-safe encoding of the encrypted
	// chunk; stored verbatim.
	Content     string
	ContentType ContentType

	// File-chunk hints, set only when ContentType is ContentFile.
	MimeType      string
	FileExtension string
	ContentSize   int64

	AppendedAt time.Time
}
