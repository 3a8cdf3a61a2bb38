package extraction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/pharmascout/internal/models"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := NewDocument("<html><body>" + body + "</body></html>")
	require.NoError(t, err)
	return doc
}

const rankedFixture = `
<div class="card">
  <div class="card-title">Disease Domain</div>
  <ul>
    <li><span>Oncology</span><span>12</span></li>
    <li><span>Neurology</span><span>8</span></li>
    <li><span>oncology</span><span>4</span></li>
    <li><span>Immunology</span><span>6</span></li>
    <li><span>Cardiology</span><span>5</span></li>
    <li><span>NEUROLOGY</span><span>3</span></li>
    <li><span>Infectious Disease</span><span>2</span></li>
  </ul>
</div>
<div class="card">
  <div class="card-title">Drug Type</div>
  <ul><li>Small molecule 9</li><li>Monoclonal antibody (4)</li></ul>
</div>
<div class="card">
  <h3>Target</h3>
  <table><tbody>
    <tr><td>PD-1</td><td>7</td></tr>
    <tr><td>CD19</td><td>3</td></tr>
  </tbody></table>
</div>`

func TestRankedList_DeduplicatesAndTruncates(t *testing.T) {
	doc := mustDoc(t, rankedFixture)

	items := RankedList(doc, DiseaseDomainHeading, 5)

	require.Len(t, items, 5)
	assert.Equal(t, []models.RankedItem{
		{Name: "Oncology", Count: 12},
		{Name: "Neurology", Count: 8},
		{Name: "Immunology", Count: 6},
		{Name: "Cardiology", Count: 5},
		{Name: "Infectious Disease", Count: 2},
	}, items)

	seen := map[string]bool{}
	for _, item := range items {
		key := strings.ToLower(item.Name)
		assert.False(t, seen[key], "duplicate %s", item.Name)
		seen[key] = true
	}
}

func TestRankedList_ScopedToHeading(t *testing.T) {
	doc := mustDoc(t, rankedFixture)

	drugTypes := RankedList(doc, DrugTypeHeading, 5)
	assert.Equal(t, []models.RankedItem{
		{Name: "Small molecule", Count: 9},
		{Name: "Monoclonal antibody", Count: 4},
	}, drugTypes)

	targets := RankedList(doc, TargetHeading, 5)
	assert.Equal(t, []models.RankedItem{
		{Name: "PD-1", Count: 7},
		{Name: "CD19", Count: 3},
	}, targets)
}

func TestRankedList_MissingHeading(t *testing.T) {
	doc := mustDoc(t, `<ul><li>Oncology 3</li></ul>`)
	assert.Empty(t, RankedList(doc, DiseaseDomainHeading, 5))
}

func TestParseRankedRow(t *testing.T) {
	tests := []struct {
		in   string
		want models.RankedItem
		ok   bool
	}{
		{"Oncology 12", models.RankedItem{Name: "Oncology", Count: 12}, true},
		{"Oncology: 1,204", models.RankedItem{Name: "Oncology", Count: 1204}, true},
		{"IL-2 7", models.RankedItem{Name: "IL-2", Count: 7}, true},
		{"Antibody (4)", models.RankedItem{Name: "Antibody", Count: 4}, true},
		{"42", models.RankedItem{}, false},
		{"Oncology", models.RankedItem{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseRankedRow(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPhases_StructuralBeatsTextScan(t *testing.T) {
	doc := mustDoc(t, `
<div class="_phaseList_x1">
  <div class="_phaseItem_a1"><div class="_phaseName_b1">Phase 1</div><div class="_phaseCount_c1">3</div></div>
  <div class="_phaseItem_a1"><div class="_phaseName_b1">Preclinical</div><div class="_phaseCount_c1">1,204 drugs</div></div>
</div>
<p>Summary: Phase 1: 9 programmes, Phase 2: 4 programmes, Phase 1/2 - 6</p>`)

	out := ExtractPhases(doc)
	require.NotNil(t, out)

	assert.Equal(t, []string{"Phase 1", "Preclinical", "Phase 1/2", "Phase 2"}, out.Phases.Labels())

	count, ok := out.Phases.Get("Phase 1")
	require.True(t, ok)
	assert.Equal(t, 3, count)

	count, _ = out.Phases.Get("Preclinical")
	assert.Equal(t, 1204, count)

	count, _ = out.Phases.Get("Phase 2")
	assert.Equal(t, 4, count)

	count, _ = out.Phases.Get("Phase 1/2")
	assert.Equal(t, 6, count)
}

func TestExtractPhases_TextScanOnly(t *testing.T) {
	doc := mustDoc(t, `<div><span>Discovery</span> <span>2</span></div><div>Approved 11</div><div>Phase 12 trials</div>`)

	out := ExtractPhases(doc)
	require.NotNil(t, out)

	assert.Equal(t, []string{"Discovery", "Approved"}, out.Phases.Labels())
}

func TestExtractPhases_IgnoresTableText(t *testing.T) {
	doc := mustDoc(t, `<h1>Acme Bio</h1>
<table><tbody>
  <tr><td>Discovery</td><td>2</td></tr>
  <tr><td>Phase 1</td><td>1</td></tr>
  <tr><td>Approved</td><td>4</td></tr>
</tbody></table>`)

	assert.Nil(t, ExtractPhases(doc))
	// The document itself is untouched
	assert.Equal(t, 1, doc.Find("table").Length())

	table := ExtractTable(doc)
	require.NotNil(t, table)
	assert.Len(t, table.Entries, 3)
}

func TestExtractPhases_Empty(t *testing.T) {
	assert.Nil(t, ExtractPhases(mustDoc(t, `<p>No pipeline data</p>`)))
}

func TestExtractTags_ScopedSection(t *testing.T) {
	doc := mustDoc(t, `
<div class="chip">Navigation</div>
<section>
  <h4>Tags</h4>
  <div><span class="chip">Biotech</span><span class="chip">Oncology</span><span class="chip">biotech</span></div>
</section>`)

	out := ExtractTags(doc)
	require.NotNil(t, out)
	assert.Equal(t, []string{"Biotech", "Oncology"}, out.Tags)
	assert.Equal(t, "Tags: Biotech, Oncology", out.TagSummary)
}

func TestExtractTags_Unscoped(t *testing.T) {
	doc := mustDoc(t, `<div><span class="ant-tag">Private</span><span class="ant-tag" style="display: none">Hidden</span><span class="ant-tag">Listed</span></div>`)

	out := ExtractTags(doc)
	require.NotNil(t, out)
	assert.Equal(t, []string{"Private", "Listed"}, out.Tags)
}

func TestExtractTags_Empty(t *testing.T) {
	assert.Nil(t, ExtractTags(mustDoc(t, `<h4>Stage</h4><p>nothing</p>`)))
}

func tableHTML(header string, rows int, cell func(i int) string) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr><th>" + header + "</th></tr></thead><tbody>")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td></tr>", cell(i), i)
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func TestExtractTable_PicksMostRowsAmongKeywordTables(t *testing.T) {
	small := tableHTML("Phase 1", 4, func(i int) string { return fmt.Sprintf("Drug %d", i) })
	large := tableHTML("Discovery", 9, func(i int) string { return fmt.Sprintf("Asset %d", i) })
	unrelated := tableHTML("Alpha", 12, func(i int) string { return fmt.Sprintf("Beta %d", i) })

	out := ExtractTable(mustDoc(t, small+large+unrelated))
	require.NotNil(t, out)
	assert.Len(t, out.Rows, 9)
	assert.Equal(t, "Asset 0", out.Entries[0].Key)
}

func TestExtractTable_TieGoesToFirst(t *testing.T) {
	first := tableHTML("Phase 2", 3, func(i int) string { return fmt.Sprintf("First %d", i) })
	second := tableHTML("Phase 3", 3, func(i int) string { return fmt.Sprintf("Second %d", i) })

	out := ExtractTable(mustDoc(t, first+second))
	require.NotNil(t, out)
	assert.Equal(t, "First 0", out.Entries[0].Key)
}

func TestExtractTable_KeyValueView(t *testing.T) {
	doc := mustDoc(t, `
<table>
  <thead><tr><th>Phase</th><th>Drugs</th></tr></thead>
  <tbody>
    <tr><td><div>Phase 1</div><div>Oncology</div></td><td>Drug A [+2]</td></tr>
    <tr><td>Phase 2<br>Neurology</td><td><span>Drug B</span></td></tr>
    <tr><td>Approved</td><td></td></tr>
  </tbody>
</table>`)

	out := ExtractTable(doc)
	require.NotNil(t, out)

	assert.Equal(t, []models.TableEntry{
		{Key: "Phase 1", Value: "Oncology Drug A (+2)"},
		{Key: "Phase 2", Value: "Neurology Drug B"},
		{Key: "Approved", Value: ""},
	}, out.Entries)

	require.Len(t, out.Rows, 3)
	assert.Equal(t, []string{"Phase 1\nOncology", "Drug A [+2]"}, out.Rows[0])
}

func TestExtractTable_NoMatch(t *testing.T) {
	assert.Nil(t, ExtractTable(mustDoc(t, tableHTML("Alpha", 5, func(i int) string { return "Beta" }))))
	assert.Nil(t, ExtractTable(mustDoc(t, `<table><thead><tr><th>Phase 1</th></tr></thead><tbody></tbody></table>`)))
	assert.Nil(t, ExtractTable(mustDoc(t, `<p>no tables</p>`)))
}

func TestNormalizeMoreMarker(t *testing.T) {
	assert.Equal(t, "Drug A (+3) and (+12)", NormalizeMoreMarker("Drug A [+3] and [+12]"))
	assert.Equal(t, "[+x]", NormalizeMoreMarker("[+x]"))
}

func TestDetectLoginWall(t *testing.T) {
	tests := []struct {
		name string
		body string
		url  string
		want bool
	}{
		{"login route", `<p>Welcome</p>`, "https://example.com/login?next=/", true},
		{"password with prompt", `<form><p>Please sign in to continue</p><input type="password"></form>`, "https://example.com/company/1", true},
		{"hidden password", `<div style="display:none"><p>Please log in</p><input type="password"></div>`, "https://example.com/", false},
		{"public page", `<button>Log in</button><h2>Acme Bio</h2>`, "https://example.com/company/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoginWall(mustDoc(t, tt.body), tt.url))
		})
	}
}

func TestInnerText(t *testing.T) {
	doc := mustDoc(t, `<div id="x"><div>Line  one</div><span>two</span> <b>parts</b><br>three<script>ignored()</script></div>`)
	assert.Equal(t, "Line one\ntwo parts\nthree", InnerText(doc.Find("#x")))
}
