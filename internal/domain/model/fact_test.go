package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestSlotIDDeterministic(t *testing.T) {
	a := SlotID("nrlc.ai", "https://nrlc.ai/", "NRLC", "offers")
	b := SlotID("nrlc.ai", "https://nrlc.ai/", "NRLC", "offers")
	assert.Equal(t, a, b)
	assert.Equal(t, sha("nrlc.ai|https://nrlc.ai/|NRLC|offers"), a)

	// Any component change yields a different slot.
	assert.NotEqual(t, a, SlotID("nrlc.ai", "https://nrlc.ai/about", "NRLC", "offers"))
	assert.NotEqual(t, a, SlotID("nrlc.ai", "https://nrlc.ai/", "NRLC", "provides"))
}

func TestFactIDIncludesFragmentHash(t *testing.T) {
	slot := SlotID("nrlc.ai", "https://nrlc.ai/", "NRLC", "offers")

	anchored := FactID(slot, "consulting", sha("NRLC offers consulting."))
	unanchored := FactID(slot, "consulting", "")

	assert.NotEqual(t, anchored, unanchored)
	assert.Equal(t, sha(slot+"|consulting|null"), unanchored)

	// Editing the supporting text changes the fact id even when the object
	// is unchanged; this drives the revision chain.
	edited := FactID(slot, "consulting", sha("NRLC now offers consulting."))
	assert.NotEqual(t, anchored, edited)
}

func TestAssignIdentity(t *testing.T) {
	supporting := "NRLC offers consulting."
	f := Fact{
		Domain:    "nrlc.ai",
		SourceURL: "https://nrlc.ai/",
		Triple:    Triple{Subject: "NRLC", Predicate: "offers", Object: "consulting"},
		EvidenceAnchor: &EvidenceAnchor{
			FragmentHash: sha(supporting),
		},
	}
	f.AssignIdentity()

	require.NotEmpty(t, f.SlotID)
	assert.Equal(t, FactID(f.SlotID, "consulting", sha(supporting)), f.FactID)
	assert.Equal(t, f.FactID, f.CroutonID)
}

func TestValidateAnchor(t *testing.T) {
	canonical := "Intro text.\n\n—\n\nNRLC offers consulting services to labs."
	supporting := "NRLC offers consulting services to labs."
	start := strings.Index(canonical, supporting)
	require.NotEqual(t, -1, start)

	anchored := func() Fact {
		s := supporting
		return Fact{
			EvidenceType:   EvidenceTypeTextExtraction,
			SupportingText: &s,
			EvidenceAnchor: &EvidenceAnchor{
				CharStart:    start,
				CharEnd:      start + len(supporting),
				FragmentHash: sha(supporting),
			},
		}
	}

	t.Run("valid anchor passes", func(t *testing.T) {
		f := anchored()
		ok, reason := f.ValidateAnchor(canonical)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("missing anchor", func(t *testing.T) {
		f := anchored()
		f.EvidenceAnchor = nil
		ok, reason := f.ValidateAnchor(canonical)
		assert.False(t, ok)
		assert.Equal(t, "no_anchor", reason)
	})

	t.Run("offset drift", func(t *testing.T) {
		f := anchored()
		f.EvidenceAnchor.CharStart++
		f.EvidenceAnchor.CharEnd++
		ok, reason := f.ValidateAnchor(canonical)
		assert.False(t, ok)
		assert.Equal(t, "slice_mismatch", reason)
	})

	t.Run("hash drift", func(t *testing.T) {
		f := anchored()
		f.EvidenceAnchor.FragmentHash = sha("something else")
		ok, reason := f.ValidateAnchor(canonical)
		assert.False(t, ok)
		assert.Equal(t, "hash_mismatch", reason)
	})

	t.Run("out of range", func(t *testing.T) {
		f := anchored()
		f.EvidenceAnchor.CharEnd = len(canonical) + 5
		ok, reason := f.ValidateAnchor(canonical)
		assert.False(t, ok)
		assert.Equal(t, "slice_mismatch", reason)
	})

	t.Run("structured facts are exempt", func(t *testing.T) {
		f := Fact{EvidenceType: EvidenceTypeStructuredData, AnchorMissing: true}
		ok, _ := f.ValidateAnchor(canonical)
		assert.True(t, ok)
	})
}

func TestComputeTier(t *testing.T) {
	tests := []struct {
		name          string
		textFacts     int
		anchored      int
		markdown      string
		facts         string
		graphNonEmpty bool
		want          QATier
	}{
		{"too few text facts", 9, 9, "1.1", "1.1", true, TierBestEffort},
		{"coverage below threshold", 20, 18, "1.1", "1.1", true, TierBestEffort},
		{"citation grade at exactly 95%", 20, 19, "1.0", "1.1", true, TierCitationGrade},
		{"full protocol", 20, 20, "1.1", "1.1", true, TierFullProtocol},
		{"full protocol needs graph", 20, 20, "1.1", "1.1", false, TierCitationGrade},
		{"full protocol needs markdown 1.1", 20, 20, "1.0", "1.1", true, TierCitationGrade},
		{"boundary ten facts all anchored", 10, 10, "1.1", "1.1", true, TierFullProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTier(tt.textFacts, tt.anchored, tt.markdown, tt.facts, tt.graphNonEmpty)
			assert.Equal(t, tt.want, got)
		})
	}
}
