package testutil

import (
	"encoding/json"
	"strings"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// DefaultCanonicalText is the canonical extraction that NewFact anchors its
// default supporting text in.
const DefaultCanonicalText = "Acme Cloud costs $99 per month. Support is available around the clock."

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Precog:  "schema",
			Task:    "ingest",
			Context: json.RawMessage(`{"source_url": "https://example.com/"}`),
		},
	}
}

// WithPrecog sets the precog name.
func (b *JobRequestBuilder) WithPrecog(precog string) *JobRequestBuilder {
	b.req.Precog = precog
	return b
}

// WithTask sets the task name.
func (b *JobRequestBuilder) WithTask(task string) *JobRequestBuilder {
	b.req.Task = task
	return b
}

// WithContext sets the job context.
func (b *JobRequestBuilder) WithContext(context json.RawMessage) *JobRequestBuilder {
	b.req.Context = context
	return b
}

// WithContextString sets the job context from a string.
func (b *JobRequestBuilder) WithContextString(context string) *JobRequestBuilder {
	b.req.Context = json.RawMessage(context)
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// FactBuilder provides a fluent interface for building Fact objects for testing.
// The default fact is a text-extraction fact anchored in DefaultCanonicalText.
type FactBuilder struct {
	fact *model.Fact
}

// NewFact creates a new FactBuilder with sensible defaults.
func NewFact() *FactBuilder {
	b := &FactBuilder{
		fact: &model.Fact{
			Domain:    "example.com",
			SourceURL: "https://example.com/pricing",
			Triple: model.Triple{
				Subject:   "Acme Cloud",
				Predicate: "price",
				Object:    "$99 per month",
			},
			Text:       "Acme Cloud costs $99 per month.",
			Confidence: 0.9,
		},
	}
	return b.AnchoredIn(DefaultCanonicalText, "Acme Cloud costs $99 per month.")
}

// WithDomain sets the fact's domain.
func (b *FactBuilder) WithDomain(domain string) *FactBuilder {
	b.fact.Domain = domain
	return b
}

// WithSourceURL sets the fact's source URL.
func (b *FactBuilder) WithSourceURL(url string) *FactBuilder {
	b.fact.SourceURL = url
	return b
}

// WithTriple sets the subject/predicate/object assertion.
func (b *FactBuilder) WithTriple(subject, predicate, object string) *FactBuilder {
	b.fact.Triple = model.Triple{Subject: subject, Predicate: predicate, Object: object}
	return b
}

// WithText sets the fact's rendered text.
func (b *FactBuilder) WithText(text string) *FactBuilder {
	b.fact.Text = text
	return b
}

// WithConfidence sets the fact's confidence.
func (b *FactBuilder) WithConfidence(confidence float64) *FactBuilder {
	b.fact.Confidence = confidence
	return b
}

// AnchoredIn marks the fact as text extraction evidence and derives the
// character anchor by locating supporting inside canonicalText. The test
// fails later (via ValidateAnchor) if supporting does not occur in the text.
func (b *FactBuilder) AnchoredIn(canonicalText, supporting string) *FactBuilder {
	start := strings.Index(canonicalText, supporting)
	b.fact.EvidenceType = model.EvidenceTypeTextExtraction
	b.fact.SupportingText = &supporting
	b.fact.EvidenceAnchor = &model.EvidenceAnchor{
		CharStart:          start,
		CharEnd:            start + len(supporting),
		FragmentHash:       model.HashHex(supporting),
		ExtractionTextHash: model.HashHex(canonicalText),
	}
	b.fact.AnchorMissing = false
	b.fact.SourcePath = nil
	return b
}

// FromStructuredData marks the fact as structured-data evidence with the
// given source path and no text anchor.
func (b *FactBuilder) FromStructuredData(sourcePath string) *FactBuilder {
	b.fact.EvidenceType = model.EvidenceTypeStructuredData
	b.fact.SupportingText = nil
	b.fact.EvidenceAnchor = nil
	b.fact.AnchorMissing = true
	b.fact.SourcePath = &sourcePath
	return b
}

// Build assigns the fact's derived identity and returns it.
func (b *FactBuilder) Build() *model.Fact {
	b.fact.AssignIdentity()
	return b.fact
}
