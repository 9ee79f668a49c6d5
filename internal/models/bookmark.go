package models

// RecordState tracks where a bookmark currently sits in the pipeline.
type RecordState int

const (
	StatePending RecordState = iota
	StateFetching
	StateClassifying
	StateDone
	StateFailed
)

func (s RecordState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateClassifying:
		return "classifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind tags the last failure observed for a record.
type ErrorKind string

const (
	ErrKindNone        ErrorKind = ""
	ErrKindNetwork     ErrorKind = "network_failure"
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindHTTPStatus  ErrorKind = "http_status"
	ErrKindNotHTML     ErrorKind = "unparseable_content"
	ErrKindUpstream    ErrorKind = "upstream_service_failure"
	ErrKindRateLimited ErrorKind = "rate_limited"
	ErrKindBadLabel    ErrorKind = "invalid_label"
	ErrKindBadResponse ErrorKind = "unparseable_response"
	ErrKindSkipped     ErrorKind = "skipped"
)

// BookmarkRecord is one saved-link entry flowing through the pipeline.
// Index is the position in the source document and never changes; it is
// what restores deterministic output order after concurrent processing.
// Each record is owned by at most one worker at a time, so the mutable
// fields need no locking.
type BookmarkRecord struct {
	Index      int
	URL        string
	Title      string
	FolderPath []string
	AddDate    string

	// Populated by the metadata fetcher.
	FetchedTitle       string
	FetchedDescription string

	// Populated by the classifier on success.
	DisplayName string
	Summary     string

	Category     Category
	AttemptCount int
	LastError    ErrorKind
	State        RecordState
}

// Terminal reports whether the record has left the pipeline.
func (b *BookmarkRecord) Terminal() bool {
	return b.State == StateDone || b.State == StateFailed
}

// Finish assigns the final category exactly once and moves the record to
// its terminal state. Calling Finish on an already-terminal record is a
// no-op: the first outcome wins.
func (b *BookmarkRecord) Finish(category Category, kind ErrorKind) {
	if b.Terminal() {
		return
	}
	b.Category = category
	b.LastError = kind
	if kind == ErrKindNone {
		b.State = StateDone
	} else {
		b.State = StateFailed
	}
}

// BestTitle returns the most useful title available for display: the
// classifier's cleaned-up name, then the fetched page title, then the
// title from the source file, then the URL itself.
func (b *BookmarkRecord) BestTitle() string {
	for _, t := range []string{b.DisplayName, b.FetchedTitle, b.Title} {
		if t != "" {
			return t
		}
	}
	return b.URL
}
