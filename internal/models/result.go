package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutcomeKind identifies which of the mutually exclusive outcomes a record carries
type OutcomeKind string

const (
	OutcomeStructured OutcomeKind = "structured"
	OutcomeFallback   OutcomeKind = "fallback"
	OutcomeFailure    OutcomeKind = "failure"
)

// ErrorCode classifies a failed run
type ErrorCode string

const (
	ErrSearchInputNotFound ErrorCode = "SEARCH_INPUT_NOT_FOUND"
	ErrCompanyLinkNotFound ErrorCode = "COMPANY_LINK_NOT_FOUND"
	ErrPipelineNotFound    ErrorCode = "PIPELINE_NOT_FOUND"
	ErrLoginRequired       ErrorCode = "LOGIN_REQUIRED"
)

// RankedItem is one entry of a top-N list such as disease domains or targets
type RankedItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TableEntry is one key/value row of a fallback table
type TableEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FallbackTable is the best matching table of the detail view
type FallbackTable struct {
	Entries []TableEntry `json:"entries"`
	Rows    [][]string   `json:"rows"`
}

// ResultRecord is the terminal output of one scrape run.
// Exactly one of the outcome groups is populated, as indicated by Kind.
type ResultRecord struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id,omitempty"`
	Company   string      `json:"company"`
	DetailURL string      `json:"detail_url,omitempty"`
	Kind      OutcomeKind `json:"kind"`

	// Structured outcome
	PipelineSnapshot PhaseSnapshot `json:"pipeline_snapshot,omitempty"`
	Tags             []string      `json:"tags,omitempty"`
	TagSummary       string        `json:"tag_summary,omitempty"`
	DiseaseDomains   []RankedItem  `json:"disease_domains,omitempty"`
	DrugTypes        []RankedItem  `json:"drug_types,omitempty"`
	Targets          []RankedItem  `json:"targets,omitempty"`

	// Fallback outcome
	Pipeline *FallbackTable `json:"pipeline,omitempty"`

	// Failure outcome
	Error ErrorCode `json:"error,omitempty"`
	Hints []string  `json:"hints,omitempty"`

	Duration  time.Duration `json:"duration_ns"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewStructuredRecord builds a structured outcome from a merged extraction
func NewStructuredRecord(company, detailURL string, ex *Extraction) *ResultRecord {
	r := &ResultRecord{
		Company:   company,
		DetailURL: detailURL,
		Kind:      OutcomeStructured,
		CreatedAt: time.Now(),
	}
	if ex != nil {
		r.PipelineSnapshot = ex.Phases
		r.Tags = ex.Tags
		r.TagSummary = ex.TagSummary
		r.DiseaseDomains = ex.DiseaseDomains
		r.DrugTypes = ex.DrugTypes
		r.Targets = ex.Targets
	}
	return r
}

// NewFallbackRecord builds a fallback outcome from a parsed table
func NewFallbackRecord(company, detailURL string, table *FallbackTable) *ResultRecord {
	return &ResultRecord{
		Company:   company,
		DetailURL: detailURL,
		Kind:      OutcomeFallback,
		Pipeline:  table,
		CreatedAt: time.Now(),
	}
}

// NewFailureRecord builds a failure outcome. A nil hints list is stored as empty.
func NewFailureRecord(company, detailURL string, code ErrorCode, hints []string) *ResultRecord {
	if hints == nil {
		hints = []string{}
	}
	return &ResultRecord{
		Company:   company,
		DetailURL: detailURL,
		Kind:      OutcomeFailure,
		Error:     code,
		Hints:     hints,
		CreatedAt: time.Now(),
	}
}

// MarshalJSON writes hints on every failure record, as [] when there are none,
// and omits them on the other outcome kinds.
func (r ResultRecord) MarshalJSON() ([]byte, error) {
	type plain ResultRecord
	out := struct {
		plain
		Hints *[]string `json:"hints,omitempty"`
	}{plain: plain(r)}
	if r.Kind == OutcomeFailure {
		hints := r.Hints
		if hints == nil {
			hints = []string{}
		}
		out.Hints = &hints
	}
	return json.Marshal(out)
}

// Failed reports whether the record carries a failure outcome
func (r *ResultRecord) Failed() bool {
	return r.Kind == OutcomeFailure
}

// Validate checks that exactly one outcome group is populated
func (r *ResultRecord) Validate() error {
	hasStructured := len(r.PipelineSnapshot) > 0 || len(r.Tags) > 0 || r.TagSummary != "" ||
		len(r.DiseaseDomains) > 0 || len(r.DrugTypes) > 0 || len(r.Targets) > 0
	hasFallback := r.Pipeline != nil
	hasFailure := r.Error != ""

	switch r.Kind {
	case OutcomeStructured:
		if !hasStructured || hasFallback || hasFailure {
			return fmt.Errorf("structured record for %q must carry only structured fields", r.Company)
		}
	case OutcomeFallback:
		if !hasFallback || hasStructured || hasFailure {
			return fmt.Errorf("fallback record for %q must carry only the fallback table", r.Company)
		}
	case OutcomeFailure:
		if !hasFailure || hasStructured || hasFallback {
			return fmt.Errorf("failure record for %q must carry only an error code", r.Company)
		}
	default:
		return fmt.Errorf("record for %q has unknown kind %q", r.Company, r.Kind)
	}
	return nil
}
