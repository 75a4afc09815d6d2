// Package verify implements domain ownership proof: a token issued per
// domain, checked against either a DNS TXT record or a well-known file.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/croutons-ai/precog/internal/core"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// TXTRecordPrefix is the DNS label the token is published under:
// _croutons-verification.<domain>.
const TXTRecordPrefix = "_croutons-verification"

// WellKnownPath is the alternative HTTPS proof location.
const WellKnownPath = "/.well-known/croutons-verification.txt"

// Resolver looks up DNS TXT records. *net.Resolver satisfies it.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// VerifierOptions groups dependencies for the Verifier.
type VerifierOptions struct {
	Domains  core.DomainRepository // Required: verified-domain records
	Resolver Resolver              // Required: DNS TXT lookups
	Client   *http.Client          // Optional: well-known fetch, defaults to http.DefaultClient
	Logger   *slog.Logger          // Optional: defaults to slog.Default()
}

// Verifier issues and checks domain verification tokens.
type Verifier struct {
	domains  core.DomainRepository
	resolver Resolver
	client   *http.Client
	logger   *slog.Logger
}

// NewVerifier creates a new Verifier with the given options.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	if opts.Domains == nil {
		return nil, errors.New("DomainRepository is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("Resolver is required")
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		domains:  opts.Domains,
		resolver: opts.Resolver,
		client:   client,
		logger:   logger.With("component", "verifier"),
	}, nil
}

// MustNewVerifier creates a new Verifier and panics on error.
func MustNewVerifier(opts VerifierOptions) *Verifier {
	v, err := NewVerifier(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Verifier: %v", err))
	}
	return v
}

// InitiateResult carries the issued token plus the two proof placements the
// owner can choose between.
type InitiateResult struct {
	Domain       string `json:"domain"`
	Token        string `json:"verification_token"`
	DNSRecord    string `json:"dns_record"`
	WellKnownURL string `json:"well_known_url"`
}

// Initiate issues a fresh verification token for the domain. Re-initiating an
// unverified domain rotates the token; an already-verified domain conflicts.
func (v *Verifier) Initiate(ctx context.Context, domain string) (*InitiateResult, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	existing, err := v.domains.Get(ctx, domain)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("load domain record: %w", err)
	}
	if existing != nil && existing.Verified() {
		return nil, apperrors.Conflictf("domain %s is already verified", domain)
	}

	token := "croutons-verify-" + uuid.NewString()
	if _, err := v.domains.UpsertToken(ctx, domain, token); err != nil {
		return nil, fmt.Errorf("store verification token: %w", err)
	}

	v.logger.InfoContext(ctx, "verification initiated", "domain", domain)
	return &InitiateResult{
		Domain:       domain,
		Token:        token,
		DNSRecord:    fmt.Sprintf("%s.%s TXT %q", TXTRecordPrefix, domain, token),
		WellKnownURL: "https://" + domain + WellKnownPath,
	}, nil
}

// CheckResult reports the outcome of an ownership check.
type CheckResult struct {
	Domain   string `json:"domain"`
	Verified bool   `json:"verified"`
	// Method is how the proof was found: "dns_txt", "well_known", or
	// "already_verified". Empty when unverified.
	Method string `json:"method,omitempty"`
}

// Check looks for the issued token in the domain's DNS TXT record, then in
// its well-known file. Either proof marks the domain verified. A check with
// no proof in place returns Verified=false without error.
func (v *Verifier) Check(ctx context.Context, domain string) (*CheckResult, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	rec, err := v.domains.Get(ctx, domain)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFoundf("no verification initiated for %s", domain)
		}
		return nil, fmt.Errorf("load domain record: %w", err)
	}
	if rec.Verified() {
		return &CheckResult{Domain: domain, Verified: true, Method: "already_verified"}, nil
	}

	method := ""
	if v.tokenInDNS(ctx, domain, rec.VerificationToken) {
		method = "dns_txt"
	} else if v.tokenInWellKnown(ctx, domain, rec.VerificationToken) {
		method = "well_known"
	}
	if method == "" {
		return &CheckResult{Domain: domain}, nil
	}

	if _, err := v.domains.MarkVerified(ctx, domain); err != nil {
		return nil, fmt.Errorf("mark domain verified: %w", err)
	}
	v.logger.InfoContext(ctx, "domain verified", "domain", domain, "method", method)
	return &CheckResult{Domain: domain, Verified: true, Method: method}, nil
}

func (v *Verifier) tokenInDNS(ctx context.Context, domain, token string) bool {
	records, err := v.resolver.LookupTXT(ctx, TXTRecordPrefix+"."+domain)
	if err != nil {
		v.logger.DebugContext(ctx, "dns txt lookup failed", "domain", domain, "error", err)
		return false
	}
	for _, record := range records {
		if strings.TrimSpace(record) == token {
			return true
		}
	}
	return false
}

func (v *Verifier) tokenInWellKnown(ctx context.Context, domain, token string) bool {
	url := "https://" + domain + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.DebugContext(ctx, "well-known fetch failed", "domain", domain, "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) == token {
			return true
		}
	}
	return false
}

func normalizeDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return "", apperrors.ValidationField("domain", "domain is required")
	}
	if strings.ContainsAny(domain, "/: ") {
		return "", apperrors.ValidationField("domain", "domain must be a bare host name")
	}
	return domain, nil
}
