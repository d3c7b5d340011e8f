package domain

import "time"

// Trial is a bounded format comparison campaign. While StandardFormat is
// nil the trial is in its trial phase; once set the trial is terminal.
type Trial struct {
	ID             string
	Name           string
	Kind           ItemKind
	Schedule       []string
	CurrentStep    int
	StandardFormat *string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsStandardized reports whether the lock-in decision has been made.
func (t *Trial) IsStandardized() bool {
	return t.StandardFormat != nil
}

// NextFormat returns the format of the current schedule slot, or false
// when the schedule is exhausted or the trial is standardized.
func (t *Trial) NextFormat() (string, bool) {
	if t.IsStandardized() || t.CurrentStep >= len(t.Schedule) {
		return "", false
	}
	return t.Schedule[t.CurrentStep], true
}

// HasFormat reports whether the format appears in the trial schedule.
func (t *Trial) HasFormat(format string) bool {
	for _, f := range t.Schedule {
		if f == format {
			return true
		}
	}
	return false
}

// RatingDimensions is the fixed set of 1-5 scored dimensions.
var RatingDimensions = []string{"naturalness", "energy", "clarity", "hook", "pacing"}

// IsRatingDimension checks membership in the fixed dimension set.
func IsRatingDimension(name string) bool {
	for _, d := range RatingDimensions {
		if d == name {
			return true
		}
	}
	return false
}

// FormatStats holds aggregated ratings for one format within a trial.
// DimensionMeans carries running means; a dimension absent from the map
// has no ratings yet and must be excluded from comparisons, not zeroed.
type FormatStats struct {
	TrialID         string
	Format          string
	Count           int
	ShareCount      int
	DimensionMeans  map[string]float64
	DimensionCounts map[string]int
	UpdatedAt       time.Time
}

// ShareRate is the fraction of raters who said they would share.
func (s *FormatStats) ShareRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.ShareCount) / float64(s.Count)
}

// OverallMean is the unweighted arithmetic mean across rated dimensions.
// Returns false when no dimension has any ratings.
func (s *FormatStats) OverallMean() (float64, bool) {
	if len(s.DimensionMeans) == 0 {
		return 0, false
	}
	var sum float64
	for _, mean := range s.DimensionMeans {
		sum += mean
	}
	return sum / float64(len(s.DimensionMeans)), true
}

// Fold merges one rating into the running aggregates.
func (s *FormatStats) Fold(r *Rating) {
	s.Count++
	if r.WouldShare {
		s.ShareCount++
	}
	if s.DimensionMeans == nil {
		s.DimensionMeans = make(map[string]float64)
		s.DimensionCounts = make(map[string]int)
	}
	for dim, value := range r.Scores {
		n := s.DimensionCounts[dim] + 1
		old := s.DimensionMeans[dim]
		s.DimensionCounts[dim] = n
		s.DimensionMeans[dim] = old + (float64(value)-old)/float64(n)
	}
}

// ReviewDecision is the operator's verdict on a pending-review item.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionRework  ReviewDecision = "rework"
	DecisionSalvage ReviewDecision = "salvage"
	DecisionKill    ReviewDecision = "kill"
)

// IsValid checks if the decision is a known value.
func (d ReviewDecision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionRework, DecisionSalvage, DecisionKill:
		return true
	}
	return false
}

// AdvancesStep reports whether the decision consumes the current
// schedule slot. Rework keeps the slot so the format is regenerated.
func (d ReviewDecision) AdvancesStep() bool {
	return d != DecisionRework
}

// Rating is one operator's structured review of a pending item.
type Rating struct {
	ID             string
	ItemID         string
	TrialID        string
	Format         string
	Scores         map[string]int
	WouldShare     bool
	WhatWorked     string
	WhatDidnt      string
	Notes          string
	Decision       ReviewDecision
	DecisionReason string
	CreatedBy      string
	CreatedAt      time.Time
}
