package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/croutons-ai/precog/internal/domain/model"
)

// SectionSeparator joins section texts into the canonical extraction. Anchors
// are byte offsets into the joined string, so the separator is part of the
// wire contract and must never change.
const SectionSeparator = "\n\n—\n\n"

// ExtractionMethod labels the canonicalization algorithm stored with each snapshot.
const ExtractionMethod = "heading-sections/v1"

// Section is one heading-delimited region of the canonical extraction, with
// absolute offsets into the joined canonical text.
type Section struct {
	Heading   string
	Text      string
	CharStart int
	CharEnd   int
}

// Extraction is the deterministic text derived from one HTML page.
type Extraction struct {
	Canonical string
	Hash      string
	Method    string
	Sections  []Section
}

var skipElements = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"aside": true, "noscript": true, "template": true, "iframe": true,
	"svg": true, "head": true,
}

var headingElements = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var blockElements = map[string]bool{
	"p": true, "li": true, "div": true, "section": true, "article": true,
	"main": true, "blockquote": true, "pre": true, "td": true, "th": true,
	"dd": true, "dt": true, "figcaption": true, "tr": true, "ul": true,
	"ol": true, "table": true, "body": true, "header": true,
}

// ctaPattern matches call-to-action and chrome lines the scrubber removes.
var ctaPattern = regexp.MustCompile(`(?i)^(learn more|read more|see more|sign up|sign in|log in|log out|subscribe( now)?|contact( us)?|get started|get a quote|try (it )?free|book (now|a demo)|request a demo|click here|accept( all)?( cookies)?|cookie settings|manage cookies|privacy policy|terms of (service|use)|all rights reserved.*|back to top|skip to (main )?content|menu|search|home|share|follow us.*|©.*)[.!]?$`)

// ExtractCanonical parses HTML and produces the canonical extracted text:
// script/style/nav/footer/aside stripped, whitespace collapsed, content
// partitioned into heading-delimited sections, boilerplate lines scrubbed,
// sections joined with SectionSeparator.
func ExtractCanonical(htmlSrc string) (*Extraction, error) {
	root, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, err
	}

	b := &extractBuilder{}
	b.walk(root)
	b.flushLine()

	sections := b.scrub()

	ext := &Extraction{Method: ExtractionMethod}
	var parts []string
	offset := 0
	for i, raw := range sections {
		text := raw.render()
		if text == "" {
			continue
		}
		if i > 0 && len(parts) > 0 {
			offset += len(SectionSeparator)
		}
		ext.Sections = append(ext.Sections, Section{
			Heading:   raw.heading,
			Text:      text,
			CharStart: offset,
			CharEnd:   offset + len(text),
		})
		parts = append(parts, text)
		offset += len(text)
	}
	ext.Canonical = strings.Join(parts, SectionSeparator)
	ext.Hash = model.HashHex(ext.Canonical)
	return ext, nil
}

type rawSection struct {
	heading string
	lines   []string
}

func (s *rawSection) render() string {
	var out []string
	if s.heading != "" {
		out = append(out, s.heading)
	}
	out = append(out, s.lines...)
	return strings.Join(out, "\n")
}

type extractBuilder struct {
	sections []rawSection
	links    []string
	line     strings.Builder
}

func (b *extractBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
	case html.TextNode:
		b.line.WriteString(n.Data)
	case html.ElementNode:
		tag := n.Data
		if skipElements[tag] {
			return
		}
		if headingElements[tag] {
			b.flushLine()
			b.startSection(collapseSpace(textContent(n)))
			return
		}
		if tag == "br" {
			b.flushLine()
			return
		}
		if tag == "a" {
			if t := collapseSpace(textContent(n)); t != "" {
				b.links = append(b.links, t)
			}
		}
		block := blockElements[tag]
		if block {
			b.flushLine()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
		if block {
			b.flushLine()
		}
	}
}

func (b *extractBuilder) flushLine() {
	text := collapseSpace(b.line.String())
	b.line.Reset()
	if text == "" {
		return
	}
	if len(b.sections) == 0 {
		// Content before the first heading lands in an untitled preamble.
		b.sections = append(b.sections, rawSection{})
	}
	cur := &b.sections[len(b.sections)-1]
	cur.lines = append(cur.lines, text)
}

func (b *extractBuilder) startSection(heading string) {
	b.sections = append(b.sections, rawSection{heading: heading})
}

// scrub drops CTA lines and standalone nav labels (lines equal to an internal
// link text), then discards sections left empty.
func (b *extractBuilder) scrub() []rawSection {
	linkTexts := make(map[string]bool, len(b.links))
	for _, l := range b.links {
		if len(l) < 60 {
			linkTexts[l] = true
		}
	}

	var out []rawSection
	for _, s := range b.sections {
		kept := s.lines[:0:0]
		for _, line := range s.lines {
			if ctaPattern.MatchString(line) {
				continue
			}
			if linkTexts[line] {
				continue
			}
			if len(line) < 3 {
				continue
			}
			kept = append(kept, line)
		}
		s.lines = kept
		if s.heading == "" && len(s.lines) == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
			return
		}
		if node.Type == html.ElementNode && skipElements[node.Data] {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
