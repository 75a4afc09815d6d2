package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croutons-ai/precog/internal/domain/model"
)

func fixtureExtraction(t *testing.T) *Extraction {
	t.Helper()
	ext, err := ExtractCanonical(fixtureHTML)
	require.NoError(t, err)
	return ext
}

func TestAtomizeTextAnchorsEveryFact(t *testing.T) {
	ext := fixtureExtraction(t)
	facts := AtomizeText(ext, fixtureDomain, fixtureURL)
	require.Len(t, facts, 13)

	for _, f := range facts {
		assert.Equal(t, model.EvidenceTypeTextExtraction, f.EvidenceType)
		assert.False(t, f.AnchorMissing)
		assert.Equal(t, textConfidence, f.Confidence)
		require.NotNil(t, f.SupportingText)
		require.NotNil(t, f.EvidenceAnchor)

		a := f.EvidenceAnchor
		assert.Equal(t, f.Text, *f.SupportingText)
		assert.Equal(t, *f.SupportingText, ext.Canonical[a.CharStart:a.CharEnd])
		assert.Equal(t, model.HashHex(*f.SupportingText), a.FragmentHash)
		assert.Equal(t, ext.Hash, a.ExtractionTextHash)

		ok, reason := f.ValidateAnchor(ext.Canonical)
		assert.True(t, ok, "fact %q failed anchor validation: %s", f.Text, reason)

		assert.Equal(t, model.SlotID(f.Domain, f.SourceURL, f.Triple.Subject, f.Triple.Predicate), f.SlotID)
		assert.Equal(t, f.FactID, f.CroutonID)
	}
}

func TestAtomizeTextDerivesTriples(t *testing.T) {
	ext := fixtureExtraction(t)
	facts := AtomizeText(ext, fixtureDomain, fixtureURL)
	require.NotEmpty(t, facts)

	first := facts[0]
	assert.Equal(t, "NRLC provides citation-grade ingestion infrastructure for AI answer engines.", first.Text)
	assert.Equal(t, "NRLC", first.Triple.Subject)
	assert.Equal(t, "provides", first.Triple.Predicate)
	assert.Equal(t, "citation-grade ingestion infrastructure for AI answer engines", first.Triple.Object)
}

func TestAtomizeTextSkipsFragmentsAndNoise(t *testing.T) {
	src := `<html><body><h1>Filler</h1>
		<p>Too short.</p>
		<p>purple monkey dishwasher rambling gibberish text rolls on and on forever.</p>
		<p>This single remaining sentence is long enough to keep as an atomic fact.</p>
	</body></html>`

	ext, err := ExtractCanonical(src)
	require.NoError(t, err)
	facts := AtomizeText(ext, "example.com", "https://example.com/")
	require.Len(t, facts, 1)
	assert.Equal(t, "This single remaining sentence is long enough to keep as an atomic fact.", facts[0].Text)
}

func TestAtomizeTextDeduplicatesRepeatedSentences(t *testing.T) {
	src := `<html><body><h1>Repeat</h1>
		<p>This company provides exactly one service worth repeating across pages.</p>
		<p>This company provides exactly one service worth repeating across pages.</p>
	</body></html>`

	ext, err := ExtractCanonical(src)
	require.NoError(t, err)
	facts := AtomizeText(ext, "example.com", "https://example.com/")
	assert.Len(t, facts, 1)
}

func TestDeriveTripleFallbacks(t *testing.T) {
	subject, predicate, object := deriveTriple("Seventeen branches across the region.", nil, "Coverage", "https://example.com/")
	assert.Equal(t, "Coverage", subject)
	assert.Equal(t, "mentions", predicate)
	assert.Equal(t, "Seventeen branches across the region", object)

	subject, predicate, object = deriveTriple("No heading anywhere nearby.", nil, "", "https://example.com/")
	assert.Equal(t, "https://example.com/", subject)
	assert.Equal(t, "mentions", predicate)
	assert.Equal(t, "No heading anywhere nearby", object)
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "terminal punctuation",
			line: "First claim here. Second claim there! Third claim anywhere?",
			want: []string{"First claim here.", "Second claim there!", "Third claim anywhere?"},
		},
		{
			name: "decimal points do not split",
			line: "The uptime is 99.95 percent measured monthly. Support responds fast.",
			want: []string{"The uptime is 99.95 percent measured monthly.", "Support responds fast."},
		},
		{
			name: "closing quotes stay attached",
			line: `He said "Stop." Then he left.`,
			want: []string{`He said "Stop."`, "Then he left."},
		},
		{
			name: "trailing fragment without punctuation",
			line: "Complete sentence. trailing fragment",
			want: []string{"Complete sentence.", "trailing fragment"},
		},
		{
			name: "empty line",
			line: "",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, splitSentences(tc.line))
		})
	}
}
