package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseSnapshot_AddIgnoresDuplicates(t *testing.T) {
	var p PhaseSnapshot
	assert.True(t, p.Add("Phase 1", 2))
	assert.False(t, p.Add("phase 1", 9))
	assert.False(t, p.Add("", 1))
	assert.False(t, p.Add("Phase 2", -1))

	count, ok := p.Get("PHASE 1")
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"Phase 1"}, p.Labels())
}

func TestPhaseSnapshot_JSONKeepsOrder(t *testing.T) {
	var p PhaseSnapshot
	p.Add("Preclinical", 4)
	p.Add("Phase 1", 2)
	p.Add("Approved", 1)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"Preclinical":4,"Phase 1":2,"Approved":1}`, string(data))

	var decoded PhaseSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"Approved":1,"Preclinical":4}`), &decoded))
	assert.Equal(t, []string{"Approved", "Preclinical"}, decoded.Labels())

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"Approved":"one"}`), &decoded))
}

func TestResultRecord_Validate(t *testing.T) {
	var phases PhaseSnapshot
	phases.Add("Approved", 3)

	structured := NewStructuredRecord("Acme", "https://synapse.test/company/acme", &Extraction{Phases: phases})
	assert.NoError(t, structured.Validate())

	fallback := NewFallbackRecord("Acme", "", &FallbackTable{Entries: []TableEntry{{Key: "Drug A", Value: "Phase 2"}}})
	assert.NoError(t, fallback.Validate())

	failure := NewFailureRecord("Acme", "", ErrPipelineNotFound, nil)
	assert.NoError(t, failure.Validate())
	assert.True(t, failure.Failed())
	assert.False(t, structured.Failed())

	mixed := NewStructuredRecord("Acme", "", &Extraction{Phases: phases})
	mixed.Error = ErrLoginRequired
	assert.Error(t, mixed.Validate())

	empty := NewStructuredRecord("Acme", "", nil)
	assert.Error(t, empty.Validate())

	unknown := &ResultRecord{Company: "Acme", Kind: "partial"}
	assert.Error(t, unknown.Validate())
}

func TestResultRecord_FailureJSON(t *testing.T) {
	record := NewFailureRecord("Acme Bio", "", ErrCompanyLinkNotFound, []string{"Acme Biologics"})

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "failure", body["kind"])
	assert.Equal(t, "COMPANY_LINK_NOT_FOUND", body["error"])
	assert.NotContains(t, body, "pipeline_snapshot")
	assert.NotContains(t, body, "pipeline")
	assert.Equal(t, []interface{}{"Acme Biologics"}, body["hints"])
}

func TestResultRecord_EmptyHintsAreWritten(t *testing.T) {
	failure := NewFailureRecord("Zenith Pharma", "", ErrCompanyLinkNotFound, nil)
	assert.NotNil(t, failure.Hints)

	data, err := json.Marshal(failure)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hints":[]`)

	// Records read back from storage may carry nil hints
	failure.Hints = nil
	data, err = json.Marshal(failure)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hints":[]`)

	structured := NewStructuredRecord("Acme", "", &Extraction{Tags: []string{"Oncology"}})
	data, err = json.Marshal(structured)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"hints"`)
}

func TestScrapeRequest_Targets(t *testing.T) {
	req := ScrapeRequest{Companies: []string{"Beta", "Acme"}}
	assert.Equal(t, []TargetRequest{{EntityName: "Beta"}, {EntityName: "Acme"}}, req.Targets())
	assert.Empty(t, ScrapeRequest{}.Targets())
}

func TestExtraction_Merge(t *testing.T) {
	primary := &Extraction{Tags: []string{"Oncology"}, TagSummary: TagSummaryFor([]string{"Oncology"})}
	primary.Merge(&Extraction{
		Tags:    []string{"Ignored"},
		Targets: []RankedItem{{Name: "PD-1", Count: 3}},
	})

	assert.Equal(t, []string{"Oncology"}, primary.Tags)
	assert.Equal(t, "Tags: Oncology", primary.TagSummary)
	assert.Equal(t, []RankedItem{{Name: "PD-1", Count: 3}}, primary.Targets)
	assert.Equal(t, []string{"tags", "targets"}, primary.Fields())
	assert.True(t, (*Extraction)(nil).IsEmpty())
}
