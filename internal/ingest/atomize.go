package ingest

import (
	"regexp"
	"strings"

	"github.com/croutons-ai/precog/internal/domain/model"
)

const (
	// minSentenceLen and maxSentenceLen bound candidate sentences; shorter
	// ones are fragments, longer ones are not atomic.
	minSentenceLen = 40
	maxSentenceLen = 240

	// textConfidence is stamped on sentence-derived facts.
	textConfidence = 0.8
)

// assertionVerb matches the verbs that mark a sentence as an assertion worth
// keeping, and doubles as the triple's predicate.
var assertionVerb = regexp.MustCompile(`(?i)\b(is|are|was|were|has|have|had|provides?|offers?|includes?|delivers?|supports?|serves?|specializes?|operates?|features?|enables?|helps?|builds?|creates?|maintains?|requires?|ensures?|guarantees?|covers?|handles?|costs?|employs?|founded|established|based|located|certified|licensed|accredited)\b`)

// entityMention matches multi-word proper nouns and figures, the secondary
// signal for keeping a sentence.
var entityMention = regexp.MustCompile(`([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)+|\d[\d,.]*\s?(?:%|percent|years?|clients?|customers?|employees?|locations?|USD|EUR|\$)?)`)

// AtomizeText splits each section into sentences, keeps the 40–240 char ones
// carrying an assertion verb or entity mention, anchors each to its exact
// offset in the canonical text, and hard-validates the anchor. Sentences that
// cannot be anchored verbatim are skipped, never emitted with a broken anchor.
func AtomizeText(ext *Extraction, domain, sourceURL string) []model.Fact {
	var facts []model.Fact
	seen := make(map[string]bool)

	for _, section := range ext.Sections {
		for _, line := range strings.Split(section.Text, "\n") {
			for _, sentence := range splitSentences(line) {
				if len(sentence) < minSentenceLen || len(sentence) > maxSentenceLen {
					continue
				}
				verb := assertionVerb.FindStringIndex(sentence)
				if verb == nil && !entityMention.MatchString(sentence) {
					continue
				}

				off := strings.Index(ext.Canonical, sentence)
				if off < 0 {
					continue
				}
				supporting := ext.Canonical[off : off+len(sentence)]
				fragmentHash := model.HashHex(supporting)
				// Anchors are load-bearing: re-check the slice and hash
				// before emitting.
				if supporting != sentence || model.HashHex(sentence) != fragmentHash {
					continue
				}

				subject, predicate, object := deriveTriple(sentence, verb, section.Heading, sourceURL)
				f := model.Fact{
					Domain:         domain,
					SourceURL:      sourceURL,
					Triple:         model.Triple{Subject: subject, Predicate: predicate, Object: object},
					Text:           sentence,
					SupportingText: &supporting,
					EvidenceAnchor: &model.EvidenceAnchor{
						CharStart:          off,
						CharEnd:            off + len(sentence),
						FragmentHash:       fragmentHash,
						ExtractionTextHash: ext.Hash,
					},
					EvidenceType:  model.EvidenceTypeTextExtraction,
					AnchorMissing: false,
					Confidence:    textConfidence,
				}
				f.AssignIdentity()
				if seen[f.CroutonID] {
					continue
				}
				seen[f.CroutonID] = true
				facts = append(facts, f)
			}
		}
	}
	return facts
}

// deriveTriple splits a sentence at its first assertion verb: subject before,
// predicate the verb, object after. Verbless sentences fall back to the
// section heading (or source URL) as subject with a "mentions" predicate.
func deriveTriple(sentence string, verb []int, heading, sourceURL string) (subject, predicate, object string) {
	if verb != nil {
		subject = strings.TrimSpace(sentence[:verb[0]])
		predicate = strings.ToLower(sentence[verb[0]:verb[1]])
		object = strings.TrimSpace(strings.TrimSuffix(sentence[verb[1]:], "."))
	}
	if subject == "" {
		subject = heading
	}
	if subject == "" {
		subject = sourceURL
	}
	if predicate == "" {
		predicate = "mentions"
		object = strings.TrimSuffix(sentence, ".")
	}
	return subject, predicate, object
}

// splitSentences breaks a line at terminal punctuation followed by a space.
// Decimal points and mid-token punctuation never split.
func splitSentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')') {
			j++
		}
		if j < len(line) && line[j] != ' ' {
			continue
		}
		if s := strings.TrimSpace(line[start:j]); s != "" {
			out = append(out, s)
		}
		for j < len(line) && line[j] == ' ' {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(line) {
		if s := strings.TrimSpace(line[start:]); s != "" {
			out = append(out, s)
		}
	}
	return out
}
