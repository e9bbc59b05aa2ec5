package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rating is a reviewer's verdict on a section.
type Rating string

// Ratings.
const (
	RatingOK      Rating = "ok"
	RatingPartial Rating = "partial"
	RatingBad     Rating = "bad"
)

// IsValid returns true if the rating is recognised.
func (r Rating) IsValid() bool {
	switch r {
	case RatingOK, RatingPartial, RatingBad:
		return true
	default:
		return false
	}
}

// NeedsDetail reports whether the rating requires text and evaluation answers.
func (r Rating) NeedsDetail() bool {
	return r == RatingPartial || r == RatingBad
}

// FeedbackEntry is a reviewer rating of one section of a version.
type FeedbackEntry struct {
	ID        string
	EPCID     string
	Section   SectionName
	Rating    Rating
	FreeText  string
	Author    string
	Timestamp time.Time

	// Evaluation answers, required for partial and bad ratings.
	HasOmissions   *bool
	HasRepetitions *bool
	IsConfusing    *bool

	// OriginalContent is the section text at the time of rating.
	OriginalContent string
}

// Validate checks the entry before it is stored.
func (f *FeedbackEntry) Validate() error {
	if f.EPCID == "" {
		return fmt.Errorf("%w: epc id is required", ErrInvalidInput)
	}
	if !f.Section.IsValid() {
		return fmt.Errorf("%w: unknown section %q", ErrInvalidInput, f.Section)
	}
	if !f.Rating.IsValid() {
		return fmt.Errorf("%w: rating must be ok, partial or bad", ErrInvalidInput)
	}
	if !f.Rating.NeedsDetail() {
		return nil
	}
	if strings.TrimSpace(f.FreeText) == "" {
		return fmt.Errorf("%w: feedback text is required for rating %s", ErrInvalidInput, f.Rating)
	}
	if f.HasOmissions == nil || f.HasRepetitions == nil || f.IsConfusing == nil {
		return fmt.Errorf("%w: evaluation answers are required for rating %s", ErrInvalidInput, f.Rating)
	}
	return nil
}

// Normalize clears evaluation answers that only apply to partial and bad ratings.
func (f *FeedbackEntry) Normalize() {
	f.FreeText = strings.TrimSpace(f.FreeText)
	if !f.Rating.NeedsDetail() {
		f.HasOmissions = nil
		f.HasRepetitions = nil
		f.IsConfusing = nil
	}
}

// FeedbackSummary counts ratings per section for one version.
type FeedbackSummary struct {
	EPCID  string
	Total  int
	Counts map[SectionName]map[Rating]int
}

// Summarize builds a summary from entries.
func Summarize(epcID string, entries []FeedbackEntry) FeedbackSummary {
	s := FeedbackSummary{EPCID: epcID, Counts: make(map[SectionName]map[Rating]int)}
	for _, e := range entries {
		if s.Counts[e.Section] == nil {
			s.Counts[e.Section] = make(map[Rating]int)
		}
		s.Counts[e.Section][e.Rating]++
		s.Total++
	}
	return s
}

// DefaultActor is recorded when an event has no user.
const DefaultActor = "sistema"

// Audit actions.
const (
	ActionGenerated        = "EPC generada"
	ActionRegenerated      = "EPC regenerada"
	ActionFeedbackRecorded = "Feedback registrado"
)

// AuditEvent is an append-only history entry for a version.
type AuditEvent struct {
	ID        string
	EPCID     string
	EpisodeID string
	Actor     string
	Action    string
	At        time.Time
}

// Exemplar is a prior section used as few-shot guidance.
type Exemplar struct {
	ID           string
	Section      SectionName
	Context      string
	Content      string
	EpisodeID    string
	FromFeedback bool
	CreatedAt    time.Time
}
