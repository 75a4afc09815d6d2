package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croutons-ai/precog/internal/domain/model"
)

func TestHarvestStructuredJSONLD(t *testing.T) {
	items, err := HarvestStructured(fixtureHTML)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "https://schema.org", item.Context)
	assert.Equal(t, "Organization", item.Type)
	assert.Equal(t, "https://nrlc.ai/#org", item.ID)
	assert.Equal(t, "/json-ld/0", item.Pointer)
	assert.Equal(t, map[string]string{
		"name":        "NRLC",
		"url":         "https://nrlc.ai/",
		"description": "Citation-grade answer infrastructure.",
		"telephone":   "+1-555-0100",
	}, item.Fields)
}

func TestHarvestStructuredJSONLDGraph(t *testing.T) {
	src := `<html><head><script type="application/ld+json">
	{"@context":"https://schema.org","@graph":[
		{"@type":"Organization","name":"Acme","sameAs":["https://x.com/acme","https://linkedin.com/acme"]},
		{"@type":"Service","name":"Repair","provider":{"@type":"Organization","name":"Acme"},"price":12.5}
	]}
	</script></head><body></body></html>`

	items, err := HarvestStructured(src)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "/json-ld/0", items[0].Pointer)
	assert.Equal(t, "Organization", items[0].Type)
	assert.Equal(t, "https://x.com/acme; https://linkedin.com/acme", items[0].Fields["sameAs"])

	assert.Equal(t, "/json-ld/1", items[1].Pointer)
	assert.Equal(t, "Acme", items[1].Fields["provider"], "nested objects collapse to their name")
	assert.Equal(t, "12.5", items[1].Fields["price"])
}

func TestHarvestStructuredSkipsMalformedJSONLD(t *testing.T) {
	src := `<html><head>
	<script type="application/ld+json">{not json at all</script>
	<script type="application/ld+json">{"@type":"WebSite","name":"Valid"}</script>
	</head><body></body></html>`

	items, err := HarvestStructured(src)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "WebSite", items[0].Type)
}

func TestHarvestStructuredMicrodata(t *testing.T) {
	src := `<html><body>
	<div itemscope itemtype="https://schema.org/Person" itemid="https://example.com/#me">
		<span itemprop="name">Ada Lovelace</span>
		<a itemprop="url" href="https://example.com/ada">profile</a>
		<meta itemprop="jobTitle" content="Engineer">
		<time itemprop="birthDate" datetime="1815-12-10">December 1815</time>
	</div>
	</body></html>`

	items, err := HarvestStructured(src)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Person", item.Type)
	assert.Equal(t, "https://example.com/#me", item.ID)
	assert.Equal(t, "/microdata/0", item.Pointer)
	assert.Equal(t, map[string]string{
		"name":      "Ada Lovelace",
		"url":       "https://example.com/ada",
		"jobTitle":  "Engineer",
		"birthDate": "1815-12-10",
	}, item.Fields)
}

func TestHarvestStructuredRDFa(t *testing.T) {
	src := `<html><body>
	<div typeof="schema:LocalBusiness" about="https://example.com/#biz">
		<span property="schema:name">Corner Cafe</span>
		<span property="telephone" content="+1-555-0123">call us</span>
	</div>
	</body></html>`

	items, err := HarvestStructured(src)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "LocalBusiness", item.Type)
	assert.Equal(t, "https://example.com/#biz", item.ID)
	assert.Equal(t, "/rdfa/0", item.Pointer)
	assert.Equal(t, "Corner Cafe", item.Fields["name"])
	assert.Equal(t, "+1-555-0123", item.Fields["telephone"])
}

func TestStructuredFactsCarryNoAnchor(t *testing.T) {
	items, err := HarvestStructured(fixtureHTML)
	require.NoError(t, err)
	facts := StructuredFacts(items, fixtureDomain, fixtureURL)
	require.Len(t, facts, 4)

	// Properties emit in sorted order for deterministic output.
	predicates := make([]string, 0, len(facts))
	for _, f := range facts {
		predicates = append(predicates, f.Triple.Predicate)
	}
	assert.Equal(t, []string{"description", "name", "telephone", "url"}, predicates)

	for _, f := range facts {
		assert.Equal(t, model.EvidenceTypeStructuredData, f.EvidenceType)
		assert.True(t, f.AnchorMissing)
		assert.Nil(t, f.SupportingText)
		assert.Nil(t, f.EvidenceAnchor)
		assert.Equal(t, structuredConfidence, f.Confidence)
		assert.Equal(t, "https://nrlc.ai/#org", f.Triple.Subject)
		require.NotNil(t, f.SourcePath)
		assert.Equal(t, "/json-ld/0/"+f.Triple.Predicate, *f.SourcePath)
		assert.Equal(t, f.Triple.Predicate+": "+f.Triple.Object, f.Text)
		assert.NotEmpty(t, f.CroutonID)
		assert.Equal(t, f.FactID, f.CroutonID)
	}
}

func TestStructuredFactsSubjectFallback(t *testing.T) {
	items := []StructuredItem{{
		Type:    "Organization",
		Fields:  map[string]string{"name": "Anonymous Org"},
		Pointer: "/json-ld/0",
	}}

	facts := StructuredFacts(items, "example.com", "https://example.com/")
	require.Len(t, facts, 1)
	assert.Equal(t, "https://example.com/#organization-0", facts[0].Triple.Subject)
}

func TestStructuredFactsEscapesPointerTokens(t *testing.T) {
	items := []StructuredItem{{
		Type:    "Thing",
		Fields:  map[string]string{"spec/ratio": "2~1"},
		Pointer: "/json-ld/0",
	}}

	facts := StructuredFacts(items, "example.com", "https://example.com/")
	require.Len(t, facts, 1)
	require.NotNil(t, facts[0].SourcePath)
	assert.Equal(t, "/json-ld/0/spec~1ratio", *facts[0].SourcePath)
}
