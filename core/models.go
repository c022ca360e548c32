package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents.
// It is generated by content-based hashing so re-ingesting the same
// document yields the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Kind identifies which enrichment a batch job produces.
type Kind int

const (
	// KindSummary enriches documents with a generated summary.
	KindSummary Kind = iota + 1
	// KindEmbedding enriches documents with a vector embedding.
	KindEmbedding
)

// String returns the wire name of the kind ("summary" or "embedding").
func (k Kind) String() string {
	switch k {
	case KindSummary:
		return "summary"
	case KindEmbedding:
		return "embedding"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSummary || k == KindEmbedding
}

// ParseKind parses a kind name as used on the CLI and in custom IDs.
// Plural spellings are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "summary", "summaries":
		return KindSummary, nil
	case "embedding", "embeddings":
		return KindEmbedding, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// JobState is the lifecycle state of a batch job.
//
// The state graph is closed:
//
//	BUILT -> SUBMITTED -> IN_PROGRESS -> COMPLETED -> MERGED
//	                                  -> FAILED
//	                                  -> EXPIRED
//	                                  -> CANCELLED
//
// MERGED, FAILED, EXPIRED and CANCELLED are terminal.
type JobState int

const (
	// StateBuilt means the request artifact exists and the job is registered
	// but nothing has been sent to the vendor yet.
	StateBuilt JobState = iota + 1
	// StateSubmitted means the vendor accepted the job.
	StateSubmitted
	// StateInProgress mirrors the vendor's validating/in_progress/finalizing statuses.
	StateInProgress
	// StateCompleted means the vendor finished and output files are available.
	StateCompleted
	// StateMerged means results were reconciled into document storage.
	StateMerged
	// StateFailed mirrors a vendor-reported job failure.
	StateFailed
	// StateExpired means the vendor expired the job, or the local poll
	// deadline elapsed before a terminal vendor status was observed.
	StateExpired
	// StateCancelled means the job was cancelled by the operator or vendor.
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateBuilt:
		return "BUILT"
	case StateSubmitted:
		return "SUBMITTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCompleted:
		return "COMPLETED"
	case StateMerged:
		return "MERGED"
	case StateFailed:
		return "FAILED"
	case StateExpired:
		return "EXPIRED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is a known state.
func (s JobState) Valid() bool {
	return s >= StateBuilt && s <= StateCancelled
}

// Terminal reports whether no further transition is permitted from s.
func (s JobState) Terminal() bool {
	switch s {
	case StateMerged, StateFailed, StateExpired, StateCancelled:
		return true
	default:
		return false
	}
}

// jobTransitions encodes the closed state graph.
var jobTransitions = map[JobState][]JobState{
	StateBuilt:      {StateSubmitted},
	StateSubmitted:  {StateInProgress, StateCompleted, StateFailed, StateExpired, StateCancelled},
	StateInProgress: {StateCompleted, StateFailed, StateExpired, StateCancelled},
	StateCompleted:  {StateMerged},
}

// CanTransition reports whether moving from s to next is permitted by the
// state graph. Terminal states admit no transitions, and no state may move
// backward.
func (s JobState) CanTransition(next JobState) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RequestCounts are the per-request tallies the vendor reports for a job.
type RequestCounts struct {
	Total     int
	Completed int
	Failed    int
}

// MergeCounts summarize reconciling a completed job into storage.
type MergeCounts struct {
	Merged int // results upserted into documents (including no-op re-merges)
	Failed int // results recorded as per-document enrichment failures
}

// Document is a stored source document awaiting or carrying enrichments.
type Document struct {
	Id          ID
	Title       string
	Contents    string
	PublishedAt time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time

	// Summary enrichment, populated by the merger.
	Summary      string
	SummaryModel string
	SummarizedAt time.Time
	SummaryError string

	// Embedding enrichment, populated by the merger.
	Vector         []float32
	EmbeddingModel string
	EmbeddedAt     time.Time
	EmbeddingError string
}

// Enriched reports whether the document already carries the target
// enrichment produced by the given model. A document enriched by a
// different model counts as unenriched, matching the builder's selection
// predicate.
func (d *Document) Enriched(kind Kind, model string) bool {
	switch kind {
	case KindSummary:
		return d.Summary != "" && d.SummaryModel == model
	case KindEmbedding:
		return len(d.Vector) > 0 && d.EmbeddingModel == model
	default:
		return false
	}
}

// BatchJob is the persistent record of one vendor batch job. It is owned
// by the job repository; other components mutate it only through the
// repository's named update operations.
type BatchJob struct {
	Id    string // internal stable key, assigned at creation
	Kind  Kind
	Model string
	State JobState

	// ArtifactPath is the local JSONL request artifact this job was built from.
	ArtifactPath string

	// Vendor-assigned identifiers, empty until assigned.
	VendorBatchID      string
	VendorInputFileID  string
	VendorOutputFileID string
	VendorErrorFileID  string

	RequestCount     int
	CompletedCount   int
	FailedCount      int
	MergedCount      int
	MergeFailedCount int

	CreatedAt   time.Time
	SubmittedAt time.Time
	CompletedAt time.Time
	MergedAt    time.Time
}

// Enrichment is one merge outcome ready to be upserted into a document.
type Enrichment struct {
	DocumentID ID
	Kind       Kind
	Model      string
	Summary    string    // set for KindSummary
	Vector     []float32 // set for KindEmbedding
}

const customIDPrefix = "doc"

// CustomID builds the deterministic correlation key for one request:
// "doc:<id>:<kind>". Rebuilding requests for the same unenriched document
// always yields the same key, which is what makes merges idempotent.
func CustomID(id ID, kind Kind) string {
	return fmt.Sprintf("%s:%d:%s", customIDPrefix, uint64(id), kind)
}

// ParseCustomID is the inverse of CustomID.
func ParseCustomID(s string) (ID, Kind, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCustomID, s)
	}
	raw, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %w", ErrInvalidCustomID, s, err)
	}
	kind, err := ParseKind(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %w", ErrInvalidCustomID, s, err)
	}
	return ID(raw), kind, nil
}
