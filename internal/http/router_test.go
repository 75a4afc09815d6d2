package httpx

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/core"
	"github.com/croutons-ai/precog/internal/discover"
	"github.com/croutons-ai/precog/internal/ingest"
	"github.com/croutons-ai/precog/internal/mocks"
	"github.com/croutons-ai/precog/internal/precog"
	"github.com/croutons-ai/precog/internal/service"
	"github.com/croutons-ai/precog/internal/verify"
)

type routerDeps struct {
	jobs      *mocks.MockJobRepository
	facts     *mocks.MockFactRepository
	snapshots *mocks.MockSnapshotRepository
	markdown  *mocks.MockMarkdownRepository
	domains   *mocks.MockDomainRepository
	pages     *mocks.MockPageRepository
}

type stubFetcher struct{ html string }

func (s *stubFetcher) Fetch(context.Context, string) (string, error) { return s.html, nil }

// newTestRouter wires a full router over repository mocks. Mutators tweak the
// services before the route table is built.
func newTestRouter(t *testing.T, mutate ...func(*RouterServices)) (http.Handler, *routerDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := &routerDeps{
		jobs:      mocks.NewMockJobRepository(ctrl),
		facts:     mocks.NewMockFactRepository(ctrl),
		snapshots: mocks.NewMockSnapshotRepository(ctrl),
		markdown:  mocks.NewMockMarkdownRepository(ctrl),
		domains:   mocks.NewMockDomainRepository(ctrl),
		pages:     mocks.NewMockPageRepository(ctrl),
	}

	registry := precog.NewRegistry()
	registry.MustRegister(precog.Registration{
		Tag:         "echo",
		DefaultTask: "respond",
		Processor: precog.ProcessorFunc(func(context.Context, precog.Job, precog.Emit) error {
			return nil
		}),
	})

	jobsSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:    deps.jobs,
		Catalog: registry,
	})
	pub := service.MustNewPublisherService(service.PublisherServiceOptions{
		Facts:     deps.facts,
		Snapshots: deps.snapshots,
		Markdown:  deps.markdown,
		Domains:   deps.domains,
	})
	ing := ingest.MustNewIngestor(ingest.IngestorOptions{
		Fetcher:   &stubFetcher{html: "<html><body><p>empty</p></body></html>"},
		Snapshots: deps.snapshots,
		Facts:     deps.facts,
		Markdown:  deps.markdown,
		Domains:   deps.domains,
		Config: config.IngestConfig{
			GroundedRateThreshold:   0.6,
			AtomicityThreshold:      0.7,
			SchemaCoverageThreshold: 0.5,
			AnchorCoverageThreshold: 0.95,
			HopDensityThreshold:     0.1,
		},
		RunTx: func(ctx context.Context, fn func(q core.DBTX) error) error { return fn(nil) },
	})
	disc := discover.MustNewDiscoverer(discover.DiscovererOptions{
		Domains:  deps.domains,
		Pages:    deps.pages,
		Ingestor: ing,
	})
	ver := verify.MustNewVerifier(verify.VerifierOptions{
		Domains:  deps.domains,
		Resolver: net.DefaultResolver,
	})

	services := RouterServices{
		Jobs:       jobsSvc,
		Publisher:  pub,
		Ingestor:   ing,
		Discoverer: disc,
		Verifier:   ver,
		HTTP: config.HTTPConfig{
			BaseURL:     "http://localhost:8080",
			CORSOrigins: []string{"*"},
		},
		Stream: config.StreamConfig{
			PollInterval:      5 * time.Millisecond,
			BatchLimit:        1000,
			HeartbeatInterval: 15 * time.Second,
			MaxDuration:       2 * time.Second,
		},
	}
	for _, m := range mutate {
		m(&services)
	}
	require.NotNil(t, services.Jobs)
	return NewRouter(services), deps
}
