package models

import "strings"

// Extraction is a partial structured result. Each extraction strategy fills
// only its own fields; the engine merges partials in priority order.
type Extraction struct {
	Phases         PhaseSnapshot `json:"pipeline_snapshot,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	TagSummary     string        `json:"tag_summary,omitempty"`
	DiseaseDomains []RankedItem  `json:"disease_domains,omitempty"`
	DrugTypes      []RankedItem  `json:"drug_types,omitempty"`
	Targets        []RankedItem  `json:"targets,omitempty"`
}

// IsEmpty reports whether no field carries data
func (e *Extraction) IsEmpty() bool {
	if e == nil {
		return true
	}
	return len(e.Phases) == 0 && len(e.Tags) == 0 && e.TagSummary == "" &&
		len(e.DiseaseDomains) == 0 && len(e.DrugTypes) == 0 && len(e.Targets) == 0
}

// Merge copies every non-empty field of other that is still empty in e
func (e *Extraction) Merge(other *Extraction) {
	if other == nil {
		return
	}
	if len(e.Phases) == 0 && len(other.Phases) > 0 {
		e.Phases = other.Phases
	}
	if len(e.Tags) == 0 && len(other.Tags) > 0 {
		e.Tags = other.Tags
		e.TagSummary = other.TagSummary
	}
	if len(e.DiseaseDomains) == 0 && len(other.DiseaseDomains) > 0 {
		e.DiseaseDomains = other.DiseaseDomains
	}
	if len(e.DrugTypes) == 0 && len(other.DrugTypes) > 0 {
		e.DrugTypes = other.DrugTypes
	}
	if len(e.Targets) == 0 && len(other.Targets) > 0 {
		e.Targets = other.Targets
	}
}

// Fields lists the populated field names, used for logging
func (e *Extraction) Fields() []string {
	var fields []string
	if e == nil {
		return fields
	}
	if len(e.Phases) > 0 {
		fields = append(fields, "pipeline_snapshot")
	}
	if len(e.Tags) > 0 {
		fields = append(fields, "tags")
	}
	if len(e.DiseaseDomains) > 0 {
		fields = append(fields, "disease_domains")
	}
	if len(e.DrugTypes) > 0 {
		fields = append(fields, "drug_types")
	}
	if len(e.Targets) > 0 {
		fields = append(fields, "targets")
	}
	return fields
}

// TagSummaryFor renders the descriptive string carried next to a tag list
func TagSummaryFor(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "Tags: " + strings.Join(tags, ", ")
}
