package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// DerivePath maps a source URL to its mirror path: the URL pathname with
// leading and trailing slashes stripped; the root maps to "index".
func DerivePath(sourceURL string) string {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return "index"
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return "index"
	}
	return path
}

// GenerateMarkdown renders the mirror document for one page: frontmatter,
// the citation-grade text facts with their evidence blocks, and the
// structured metadata section. The output is deterministic for a given fact
// set so unchanged content re-publishes with an identical hash.
func GenerateMarkdown(domain, sourceURL string, textFacts, structFacts []model.Fact) string {
	var sb strings.Builder

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "markdown_version: %q\n", model.MarkdownVersionLabel)
	fmt.Fprintf(&sb, "protocol_version: %q\n", model.ProtocolVersion)
	fmt.Fprintf(&sb, "domain: %s\n", domain)
	fmt.Fprintf(&sb, "source_url: %s\n", sourceURL)
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s — %s\n\n", domain, DerivePath(sourceURL))

	sb.WriteString("## Facts (Text Extraction) — Citation-Grade\n\n")
	if len(textFacts) == 0 {
		sb.WriteString("_No anchored facts extracted._\n\n")
	}
	for _, f := range textFacts {
		fmt.Fprintf(&sb, "- %s\n", f.Text)
		fmt.Fprintf(&sb, "  - fact_id: `%s`\n", f.FactID)
		fmt.Fprintf(&sb, "  - slot_id: `%s`\n", f.SlotID)
		if f.EvidenceAnchor != nil {
			fmt.Fprintf(&sb, "  - anchor: chars %d-%d\n", f.EvidenceAnchor.CharStart, f.EvidenceAnchor.CharEnd)
			fmt.Fprintf(&sb, "  - fragment_hash: `%s`\n", f.EvidenceAnchor.FragmentHash)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Metadata (Structured Data) — Not Anchorable\n\n")
	if len(structFacts) == 0 {
		sb.WriteString("_No structured data found._\n\n")
	}
	for _, f := range structFacts {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Triple.Predicate, f.Triple.Object)
		fmt.Fprintf(&sb, "  - fact_id: `%s`\n", f.FactID)
		if f.SourcePath != nil {
			fmt.Fprintf(&sb, "  - source_path: `%s`\n", *f.SourcePath)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
