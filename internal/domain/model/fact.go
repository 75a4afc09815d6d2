package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EvidenceType classifies how a fact is grounded in its source page.
type EvidenceType string

const (
	// EvidenceTypeTextExtraction marks facts anchored to exact character
	// offsets in the canonical extracted text.
	EvidenceTypeTextExtraction EvidenceType = "text_extraction"
	// EvidenceTypeStructuredData marks facts harvested from JSON-LD,
	// microdata, or RDFa; these carry no text anchor.
	EvidenceTypeStructuredData EvidenceType = "structured_data"
	// EvidenceTypeUnknown marks facts with no recorded provenance.
	EvidenceTypeUnknown EvidenceType = "unknown"
)

// Valid returns true if the EvidenceType is a known kind.
func (e EvidenceType) Valid() bool {
	switch e {
	case EvidenceTypeTextExtraction, EvidenceTypeStructuredData, EvidenceTypeUnknown:
		return true
	}
	return false
}

// Triple is a subject/predicate/object assertion.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// EvidenceAnchor binds a fact's supporting text to a specific canonical
// extraction: the slice [CharStart:CharEnd] of that extraction must equal the
// supporting text, whose sha256 is FragmentHash.
type EvidenceAnchor struct {
	CharStart          int    `json:"char_start"`
	CharEnd            int    `json:"char_end"`
	FragmentHash       string `json:"fragment_hash"`
	ExtractionTextHash string `json:"extraction_text_hash"`
}

// Fact is an atomic, citeable assertion extracted from a page (a "crouton").
//
// Text-extraction facts carry SupportingText plus an EvidenceAnchor and have
// AnchorMissing=false. Structured-data facts carry neither and have
// AnchorMissing=true, with SourcePath recording the JSON pointer into the
// structured item they came from.
type Fact struct {
	CroutonID      string          `json:"crouton_id"                db:"crouton_id"`
	Domain         string          `json:"domain"                    db:"domain"`
	SourceURL      string          `json:"source_url"                db:"source_url"`
	SlotID         string          `json:"slot_id"                   db:"slot_id"`
	FactID         string          `json:"fact_id"                   db:"fact_id"`
	Revision       int             `json:"revision"                  db:"revision"`
	PreviousFactID *string         `json:"previous_fact_id,omitempty" db:"previous_fact_id"`
	Triple         Triple          `json:"triple"`
	Text           string          `json:"text"                      db:"text"`
	SupportingText *string         `json:"supporting_text,omitempty" db:"supporting_text"`
	EvidenceAnchor *EvidenceAnchor `json:"evidence_anchor,omitempty"`
	EvidenceType   EvidenceType    `json:"evidence_type"             db:"evidence_type"`
	SourcePath     *string         `json:"source_path,omitempty"     db:"source_path"`
	AnchorMissing  bool            `json:"anchor_missing"            db:"anchor_missing"`
	Confidence     float64         `json:"confidence"                db:"confidence"`
	UpdatedAt      time.Time       `json:"updated_at"                db:"updated_at"`
}

// HashHex returns the lowercase hex sha256 of s.
func HashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SlotID derives the stable identity for "the fact about this subject and
// predicate on this URL", independent of the object or supporting text.
func SlotID(domain, sourceURL, subject, predicate string) string {
	return HashHex(domain + "|" + sourceURL + "|" + subject + "|" + predicate)
}

// FactID derives the revision-specific identity. fragmentHash is empty for
// facts without a text anchor; the literal "null" stands in so anchored and
// unanchored facts with the same object never collide.
func FactID(slotID, object, fragmentHash string) string {
	if fragmentHash == "" {
		fragmentHash = "null"
	}
	return HashHex(slotID + "|" + object + "|" + fragmentHash)
}

// AssignIdentity fills SlotID, FactID, and CroutonID from the fact's
// domain, source URL, triple, and anchor.
func (f *Fact) AssignIdentity() {
	f.SlotID = SlotID(f.Domain, f.SourceURL, f.Triple.Subject, f.Triple.Predicate)
	fragment := ""
	if f.EvidenceAnchor != nil {
		fragment = f.EvidenceAnchor.FragmentHash
	}
	f.FactID = FactID(f.SlotID, f.Triple.Object, fragment)
	f.CroutonID = f.FactID
}

// ValidateAnchor checks the text-extraction invariants against the canonical
// extracted text the fact claims to be anchored in. It returns a reason
// string on failure: "no_anchor", "slice_mismatch", or "hash_mismatch".
func (f *Fact) ValidateAnchor(canonicalText string) (ok bool, reason string) {
	if f.EvidenceType != EvidenceTypeTextExtraction {
		return true, ""
	}
	if f.EvidenceAnchor == nil || f.SupportingText == nil {
		return false, "no_anchor"
	}
	a := f.EvidenceAnchor
	if a.CharStart < 0 || a.CharEnd > len(canonicalText) || a.CharStart >= a.CharEnd {
		return false, "slice_mismatch"
	}
	if canonicalText[a.CharStart:a.CharEnd] != *f.SupportingText {
		return false, "slice_mismatch"
	}
	if HashHex(*f.SupportingText) != a.FragmentHash {
		return false, "hash_mismatch"
	}
	return true, ""
}
