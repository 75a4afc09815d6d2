// Package discover probes a verified domain's pages for declared markdown
// alternates (HTML link tags and HTTP Link headers), records the proof, and
// ingests the page.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/ingest"
)

// markdownMediaType is the alternate type discovery looks for.
const markdownMediaType = "text/markdown"

// DiscovererOptions groups dependencies for the Discoverer.
type DiscovererOptions struct {
	Domains  core.DomainRepository // Required: verification gate
	Pages    core.PageRepository   // Required: discovery records
	Ingestor *ingest.Ingestor      // Required: runs the pipeline after the probe
	Client   *http.Client          // Optional: probe fetches, defaults to http.DefaultClient
	Logger   *slog.Logger          // Optional: defaults to slog.Default()
}

// Discoverer probes pages for markdown alternates and triggers ingestion.
type Discoverer struct {
	domains  core.DomainRepository
	pages    core.PageRepository
	ingestor *ingest.Ingestor
	client   *http.Client
	logger   *slog.Logger
}

// NewDiscoverer creates a new Discoverer with the given options.
func NewDiscoverer(opts DiscovererOptions) (*Discoverer, error) {
	if opts.Domains == nil || opts.Pages == nil {
		return nil, errors.New("domain and page repositories are required")
	}
	if opts.Ingestor == nil {
		return nil, errors.New("Ingestor is required")
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		domains:  opts.Domains,
		pages:    opts.Pages,
		ingestor: opts.Ingestor,
		client:   client,
		logger:   logger.With("component", "discoverer"),
	}, nil
}

// MustNewDiscoverer creates a new Discoverer and panics on error.
func MustNewDiscoverer(opts DiscovererOptions) *Discoverer {
	d, err := NewDiscoverer(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Discoverer: %v", err))
	}
	return d
}

// Result pairs the discovery proof with the ingestion summary.
type Result struct {
	Page   *model.DiscoveredPage `json:"discovery"`
	Ingest *ingest.Result        `json:"ingestion"`
}

// Discover probes the page for markdown alternates, records the proof, and
// ingests the page. Only verified domains may discover. claimedAlternate is
// an owner-supplied hint recorded when the probe itself finds nothing.
func (d *Discoverer) Discover(ctx context.Context, domain, pageURL, claimedAlternate string) (*Result, error) {
	if strings.TrimSpace(domain) == "" {
		return nil, apperrors.ValidationField("domain", "domain is required")
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, apperrors.ValidationField("page", "page must be an absolute url")
	}

	verified, err := d.domains.IsVerified(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("check domain verification: %w", err)
	}
	if !verified {
		return nil, apperrors.Auth(fmt.Sprintf("domain %s is not verified; run verification first", domain))
	}

	probe, err := d.probe(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if probe.method == model.DiscoveryMethodNone && claimedAlternate != "" {
		probe.alternate = claimedAlternate
	}

	page := &model.DiscoveredPage{
		Domain:          domain,
		PageURL:         pageURL,
		DiscoveryMethod: probe.method,
	}
	if probe.alternate != "" {
		page.AlternateHref = &probe.alternate
		if mirror := resolveRef(parsed, probe.alternate); mirror != "" {
			page.DiscoveredMirror = &mirror
		}
	}
	if err := d.pages.Upsert(ctx, page); err != nil {
		return nil, fmt.Errorf("record discovered page: %w", err)
	}

	res, err := d.ingestor.Ingest(ctx, domain, pageURL, "", nil)
	if err != nil {
		return nil, err
	}

	page.IngestionID = &res.DocID
	if err := d.pages.Upsert(ctx, page); err != nil {
		return nil, fmt.Errorf("record ingestion id: %w", err)
	}

	d.logger.InfoContext(ctx, "page discovered",
		"domain", domain, "page", pageURL, "method", page.DiscoveryMethod)
	return &Result{Page: page, Ingest: res}, nil
}

type probeResult struct {
	method    model.DiscoveryMethod
	alternate string
}

// probe GETs the page and looks for a markdown alternate in both the response
// Link headers and the document's link tags.
func (d *Discoverer) probe(ctx context.Context, pageURL *url.URL) (*probeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, apperrors.ValidationField("page", "page must be an absolute url")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeUpstreamFetch, "probe %s", pageURL)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.UpstreamFetchf("probe %s: status %d", pageURL, resp.StatusCode)
	}

	headerHref := markdownLinkHeader(resp.Header.Values("Link"))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeUpstreamFetch, "read body of %s", pageURL)
	}
	htmlHref := markdownLinkTag(string(body))

	res := &probeResult{method: model.DiscoveryMethodNone}
	switch {
	case htmlHref != "" && headerHref != "":
		res.method = model.DiscoveryMethodBoth
		res.alternate = htmlHref
	case htmlHref != "":
		res.method = model.DiscoveryMethodHTMLLink
		res.alternate = htmlHref
	case headerHref != "":
		res.method = model.DiscoveryMethodHTTPLink
		res.alternate = headerHref
	}
	return res, nil
}

// markdownLinkTag returns the href of the first
// <link rel="alternate" type="text/markdown"> in the document.
func markdownLinkTag(src string) string {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, typ, href string
			for _, a := range n.Attr {
				switch a.Key {
				case "rel":
					rel = a.Val
				case "type":
					typ = a.Val
				case "href":
					href = a.Val
				}
			}
			if strings.EqualFold(rel, "alternate") && strings.EqualFold(typ, markdownMediaType) && href != "" {
				found = href
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// markdownLinkHeader returns the target of the first Link header entry with
// rel="alternate" and type="text/markdown".
func markdownLinkHeader(headers []string) string {
	for _, header := range headers {
		for _, entry := range strings.Split(header, ",") {
			target, params, ok := splitLinkEntry(entry)
			if !ok {
				continue
			}
			if strings.EqualFold(params["rel"], "alternate") && strings.EqualFold(params["type"], markdownMediaType) {
				return target
			}
		}
	}
	return ""
}

func splitLinkEntry(entry string) (target string, params map[string]string, ok bool) {
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, "<") {
		return "", nil, false
	}
	end := strings.Index(entry, ">")
	if end < 0 {
		return "", nil, false
	}
	target = entry[1:end]

	params = make(map[string]string)
	for _, part := range strings.Split(entry[end+1:], ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return target, params, true
}

func resolveRef(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
