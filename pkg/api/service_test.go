package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/ephemeris/internal/testutil"
	"github.com/ethpandaops/ephemeris/pkg/api/handlers"
	"github.com/ethpandaops/ephemeris/pkg/fetch"
	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	refs []segment.Ref
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, ref segment.Ref, _ string) (bool, error) {
	f.refs = append(f.refs, ref)
	return true, nil
}

type apiFixture struct {
	app      *fiber.App
	server   *testutil.SegmentServer
	enqueuer *fakeEnqueuer
}

func newAPIFixture(t *testing.T, loaded bool, opts ...func(*handlers.Deps)) *apiFixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	bridge := swe.NewBridge(log)
	if loaded {
		bridge.Load(context.Background(), testutil.NewFakeEngine().Loader())
		require.NoError(t, bridge.Wait(context.Background()))
	}

	server := testutil.NewSegmentServer(t)

	client, err := fetch.NewClient(log, &fetch.Config{
		BaseURLs:        []string{server.URL},
		Timeout:         5 * time.Second,
		MaxPayloadBytes: 1 << 20,
	})
	require.NoError(t, err)

	h, err := hydrator.New(log, &hydrator.Config{MinPayloadBytes: 5120, Manifest: "manifest.json"}, store.NewMemory(""), client, nil)
	require.NoError(t, err)

	resolver := segment.NewResolver(segment.DefaultThresholdYear)

	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	enqueuer := &fakeEnqueuer{}

	deps := handlers.Deps{
		Querier:     query.NewOrchestrator(log, &query.Config{MaxSteps: 100, HydrationConcurrency: 2}, resolver, h, bridge),
		Resolver:    resolver,
		Segments:    h,
		Engine:      bridge,
		Enqueuer:    enqueuer,
		Document:    doc,
		RawDocument: OpenAPIDocument(),
	}

	for _, opt := range opts {
		opt(&deps)
	}

	app := newApp(deps, nil, log)

	return &apiFixture{app: app, server: server, enqueuer: enqueuer}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (int, []byte, http.Header) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data, resp.Header
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	return out
}

func TestLoadOpenAPI(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Ephemeris API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Value("/query"))
	assert.NotNil(t, doc.Paths.Value("/segments/resolve"))
}

func TestQuery_EndToEnd(t *testing.T) {
	f := newAPIFixture(t, true)
	f.server.Put("seplm30.se1", testutil.SegmentPayload())

	status, _, _ := f.do(t, http.MethodGet, "/api/v1/results/latest", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, data, _ := f.do(t, http.MethodPost, "/api/v1/query", `{"body":"mars","year":-2500,"month":1,"day":1,"hour":0}`)
	require.Equal(t, http.StatusOK, status, string(data))

	rs := decode(t, data)
	assert.Equal(t, "julian", rs["calendar"])
	assert.Equal(t, "equatorial", rs["mode"])
	require.Len(t, rs["rows"], 1)

	row := rs["rows"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "-2500-01-01 00:00", row["date"])

	status, latest, _ := f.do(t, http.MethodGet, "/api/v1/results/latest", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, rs["id"], decode(t, latest)["id"])

	status, csvData, header := f.do(t, http.MethodGet, "/api/v1/results/latest.csv", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, header.Get("Content-Type"), "text/csv")
	assert.Contains(t, header.Get("Content-Disposition"), ".csv")

	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,JD,RA,Dec,Dist,RA_hms,Dec_dms", lines[0])
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		body   string
		status int
	}{
		{
			name:   "schema violation",
			loaded: true,
			body:   `{"body":"mars","year":-2500,"month":13,"day":1}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown body",
			loaded: true,
			body:   `{"body":"vulcan","year":-2500,"month":1,"day":1}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "not json",
			loaded: true,
			body:   `mars`,
			status: http.StatusBadRequest,
		},
		{
			name:   "engine not loaded",
			loaded: false,
			body:   `{"body":"sun","year":2024,"month":3,"day":20}`,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "segment unavailable",
			loaded: true,
			body:   `{"body":"mars","year":-2500,"month":1,"day":1}`,
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, tt.loaded)

			status, data, _ := f.do(t, http.MethodPost, "/api/v1/query", tt.body)
			assert.Equal(t, tt.status, status, string(data))

			body := decode(t, data)
			assert.InDelta(t, float64(tt.status), body["code"], 0)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSegments_ResolveAndHydrate(t *testing.T) {
	f := newAPIFixture(t, true)
	f.server.Put("sepl_m36.se1", testutil.SegmentPayload())

	status, data, _ := f.do(t, http.MethodGet, "/api/v1/segments/resolve?year=-3500&body=mars", "")
	require.Equal(t, http.StatusOK, status, string(data))

	res := decode(t, data)
	assert.Equal(t, true, res["required"])
	assert.Equal(t, "seplm36", res["segment"])
	assert.Equal(t, false, res["resident"])
	assert.Len(t, res["aliases"], 2)
	assert.Len(t, res["locations"], 4)

	status, data, _ = f.do(t, http.MethodPost, "/api/v1/segments/hydrate", `{"year":-3500,"body":"mars"}`)
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, "remote", decode(t, data)["source"])

	status, data, _ = f.do(t, http.MethodGet, "/api/v1/segments/resolve?year=-3500&body=mars", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode(t, data)["resident"])

	status, data, _ = f.do(t, http.MethodGet, "/api/v1/segments/manifest", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode(t, data)["files"], 1)
}

func TestSegments_ModernYearNeedsNothing(t *testing.T) {
	f := newAPIFixture(t, true)

	status, data, _ := f.do(t, http.MethodGet, "/api/v1/segments/resolve?year=2024&body=sun", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decode(t, data)["required"])

	status, data, _ = f.do(t, http.MethodPost, "/api/v1/segments/hydrate", `{"year":2024,"body":"sun"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decode(t, data)["required"])
	assert.Empty(t, f.server.Requests())
}

func TestSegments_BadInput(t *testing.T) {
	f := newAPIFixture(t, true)

	status, _, _ := f.do(t, http.MethodGet, "/api/v1/segments/resolve?year=soon&body=sun", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = f.do(t, http.MethodGet, "/api/v1/segments/resolve?year=-3000&body=vulcan", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = f.do(t, http.MethodPost, "/api/v1/segments/hydrate", `{"year":-3000,"body":"mars"}`)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestSegments_HydrateAsync(t *testing.T) {
	f := newAPIFixture(t, true)

	status, data, _ := f.do(t, http.MethodPost, "/api/v1/segments/hydrate?async=true", `{"year":-5000,"body":"moon"}`)
	require.Equal(t, http.StatusAccepted, status, string(data))
	assert.Equal(t, "semom54", decode(t, data)["segment"])

	require.Len(t, f.enqueuer.refs, 1)
	assert.Empty(t, f.server.Requests())
}

func TestSegments_HydrateAsyncParameter(t *testing.T) {
	withoutQueue := func(d *handlers.Deps) { d.Enqueuer = nil }

	tests := []struct {
		name     string
		path     string
		opts     []func(*handlers.Deps)
		expected int
		queued   int
		fetched  bool
	}{
		{name: "async false fetches inline", path: "/api/v1/segments/hydrate?async=false", expected: http.StatusOK, fetched: true},
		{name: "async without redis is unavailable", path: "/api/v1/segments/hydrate?async=true", opts: []func(*handlers.Deps){withoutQueue}, expected: http.StatusServiceUnavailable},
		{name: "non boolean async rejected", path: "/api/v1/segments/hydrate?async=maybe", expected: http.StatusBadRequest},
		{name: "async in body ignored", path: "/api/v1/segments/hydrate", expected: http.StatusOK, fetched: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, true, tt.opts...)
			f.server.Put("semom54.se1", testutil.SegmentPayload())

			status, data, _ := f.do(t, http.MethodPost, tt.path, `{"year":-5000,"body":"moon","async":true}`)
			require.Equal(t, tt.expected, status, string(data))

			assert.Len(t, f.enqueuer.refs, tt.queued)

			if tt.fetched {
				assert.Equal(t, []string{"semom54.se1"}, f.server.Requests())
			} else {
				assert.Empty(t, f.server.Requests())
			}
		})
	}
}

func TestStatus(t *testing.T) {
	ready := newAPIFixture(t, true)

	status, data, _ := ready.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, status)

	body := decode(t, data)
	assert.Equal(t, "ready", body["engine"])
	assert.Equal(t, true, body["ready"])

	idle := newAPIFixture(t, false)

	status, data, _ = idle.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, status)

	body = decode(t, data)
	assert.Equal(t, "idle", body["engine"])
	assert.Equal(t, false, body["ready"])
	assert.NotEmpty(t, body["error"])
}

func TestOpenAPIRoute(t *testing.T) {
	f := newAPIFixture(t, true)

	status, data, header := f.do(t, http.MethodGet, "/api/v1/openapi.yaml", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/yaml", header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(data), "openapi: 3.0.3"))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{Enabled: false}).Validate())
	assert.NoError(t, (&Config{Enabled: true, Addr: ":8080"}).Validate())
	assert.ErrorIs(t, (&Config{Enabled: true}).Validate(), ErrAPIAddrRequired)
}
