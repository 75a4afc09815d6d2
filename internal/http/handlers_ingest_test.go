package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
)

func verifiedDomain(domain string) *model.VerifiedDomain {
	now := time.Now()
	return &model.VerifiedDomain{
		Domain:            domain,
		VerificationToken: "croutons-verify-abc",
		VerifiedAt:        &now,
		ProtocolVersion:   model.ProtocolVersion,
	}
}

func TestVerifyInitiateIssuesToken(t *testing.T) {
	router, deps := newTestRouter(t)

	deps.domains.EXPECT().Get(gomock.Any(), "nrlc.ai").
		Return(nil, apperrors.NotFound("domain not found"))
	deps.domains.EXPECT().UpsertToken(gomock.Any(), "nrlc.ai", gomock.Any()).DoAndReturn(
		func(_ any, domain, token string) (*model.VerifiedDomain, error) {
			return &model.VerifiedDomain{Domain: domain, VerificationToken: token}, nil
		})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/verify/initiate",
		strings.NewReader(`{"domain":" NRLC.AI "}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		OK   bool `json:"ok"`
		Data struct {
			Domain       string `json:"domain"`
			Token        string `json:"verification_token"`
			DNSRecord    string `json:"dns_record"`
			WellKnownURL string `json:"well_known_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, "nrlc.ai", body.Data.Domain, "domain is normalized before use")
	assert.True(t, strings.HasPrefix(body.Data.Token, "croutons-verify-"))
	assert.Contains(t, body.Data.DNSRecord, "_croutons-verification.nrlc.ai")
	assert.Equal(t, "https://nrlc.ai/.well-known/croutons-verification.txt", body.Data.WellKnownURL)
}

func TestVerifyInitiateConflictsWhenVerified(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.domains.EXPECT().Get(gomock.Any(), "nrlc.ai").Return(verifiedDomain("nrlc.ai"), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/verify/initiate",
		strings.NewReader(`{"domain":"nrlc.ai"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already verified")
}

func TestVerifyCheckAlreadyVerified(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.domains.EXPECT().Get(gomock.Any(), "nrlc.ai").Return(verifiedDomain("nrlc.ai"), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/verify/check",
		strings.NewReader(`{"domain":"nrlc.ai"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Verified bool   `json:"verified"`
			Method   string `json:"method"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Verified)
	assert.Equal(t, "already_verified", body.Data.Method)
}

func TestVerifyCheckWithoutInitiation(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.domains.EXPECT().Get(gomock.Any(), "nrlc.ai").
		Return(nil, apperrors.NotFound("domain not found"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/verify/check",
		strings.NewReader(`{"domain":"nrlc.ai"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyRejectsMalformedDomain(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, domain := range []string{"", "https://nrlc.ai", "nrlc.ai/path"} {
		rec := httptest.NewRecorder()
		body := `{"domain":` + jsonString(domain) + `}`
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/verify/initiate", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "domain %q", domain)
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestDiscoverRequiresVerifiedDomain(t *testing.T) {
	router, deps := newTestRouter(t)
	deps.domains.EXPECT().IsVerified(gomock.Any(), "nrlc.ai").Return(false, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/discover",
		strings.NewReader(`{"domain":"nrlc.ai","page":"https://nrlc.ai/about"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not verified")
}

func TestDiscoverRejectsRelativePage(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/discover",
		strings.NewReader(`{"domain":"nrlc.ai","page":"about"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "page")
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/ingest", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/ingest",
		strings.NewReader(`{"domain":"nrlc.ai","url":"https://nrlc.ai/","bogus":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}
