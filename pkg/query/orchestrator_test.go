package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/ephemeris/internal/testutil"
	"github.com/ethpandaops/ephemeris/pkg/fetch"
	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine *testutil.FakeEngine
	bridge *swe.Bridge
	server *testutil.SegmentServer
	store  *store.Memory
	orch   *Orchestrator
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := testLogger()

	engine := testutil.NewFakeEngine()
	bridge := swe.NewBridge(log)
	bridge.Load(context.Background(), engine.Loader())
	require.NoError(t, bridge.Wait(context.Background()))

	server := testutil.NewSegmentServer(t)

	client, err := fetch.NewClient(log, &fetch.Config{
		BaseURLs:        []string{server.URL},
		Timeout:         5 * time.Second,
		MaxPayloadBytes: 1 << 20,
	})
	require.NoError(t, err)

	st := store.NewMemory("", "ephe")

	h, err := hydrator.New(log, &hydrator.Config{MinPayloadBytes: 5120}, st, client, nil)
	require.NoError(t, err)

	orch := NewOrchestrator(log, &Config{MaxSteps: 1000, HydrationConcurrency: 2},
		segment.NewResolver(segment.DefaultThresholdYear), h, bridge)

	return &fixture{engine: engine, bridge: bridge, server: server, store: st, orch: orch}
}

func TestRun_Mars2500BC(t *testing.T) {
	f := newFixture(t)
	f.server.Put("seplm30.se1", testutil.SegmentPayload())

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "mars", Year: -2500, Month: 1, Day: 1, Hour: 0, Steps: 1, StepDays: 0,
	})
	require.NoError(t, err)

	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "-2500-01-01 00:00", rs.Rows[0].Date)
	assert.NotNil(t, rs.Rows[0].Equatorial)
	assert.Empty(t, rs.Rows[0].Error)

	assert.Equal(t, "julian", rs.Calendar)
	assert.Contains(t, f.engine.Calendars(), swe.Julian)
	assert.NotContains(t, f.engine.Calendars(), swe.Gregorian)

	assert.Equal(t, []string{"seplm30.se1"}, f.server.Requests(), "one hydration attempt")

	require.Len(t, rs.Segments, 1)
	assert.Equal(t, "seplm30", rs.Segments[0].Segment.ID())
	assert.Equal(t, hydrator.SourceRemote, rs.Segments[0].Source)

	for _, rel := range []string{"seplm30.se1", "sepl_m30.se1", "ephe/seplm30.se1", "ephe/sepl_m30.se1"} {
		_, ok := f.store.Read(rel)
		assert.True(t, ok, rel)
	}

	assert.NotEqual(t, [16]byte{}, [16]byte(rs.ID))
}

func TestRun_ZeroStepSizeRepeatsInstant(t *testing.T) {
	f := newFixture(t)
	f.server.Put("seplm30.se1", testutil.SegmentPayload())

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "mars", Year: -2500, Month: 1, Day: 1, Steps: 3, StepDays: 0,
	})
	require.NoError(t, err)

	require.Len(t, rs.Rows, 3)

	for _, row := range rs.Rows {
		assert.InDelta(t, rs.Rows[0].JulianDay, row.JulianDay, 0)
		assert.Equal(t, "-2500-01-01 00:00", row.Date)
	}

	assert.InDelta(t, 0.0, rs.Request.StepDays, 0, "request echoed as sent")
	assert.Equal(t, 3, rs.Request.Steps)
	assert.Equal(t, []string{"seplm30.se1"}, f.server.Requests())
}

func TestRun_ZeroStepsYieldsNoRows(t *testing.T) {
	f := newFixture(t)

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "mars", Year: -2500, Month: 1, Day: 1, Steps: 0, StepDays: 1,
	})
	require.NoError(t, err)

	assert.Empty(t, rs.Rows)
	assert.Empty(t, rs.Segments)
	assert.Empty(t, f.server.Requests(), "nothing to compute, nothing fetched")
	assert.Zero(t, f.engine.Positions())
}

func TestRequest_UnmarshalJSONDefaults(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		steps    int
		stepDays float64
	}{
		{name: "absent fields default to one", raw: `{"body":"sun"}`, steps: 1, stepDays: 1},
		{name: "explicit zeros kept", raw: `{"body":"sun","steps":0,"step_days":0}`, steps: 0, stepDays: 0},
		{name: "explicit values kept", raw: `{"body":"sun","steps":5,"step_days":0.5}`, steps: 5, stepDays: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))

			assert.Equal(t, "sun", req.Body)
			assert.Equal(t, tt.steps, req.Steps)
			assert.InDelta(t, tt.stepDays, req.StepDays, 0)
		})
	}
}

func TestRun_ModernDatesNeedNoSegments(t *testing.T) {
	f := newFixture(t)

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "sun", Year: 2024, Month: 3, Day: 20, Hour: 12, Steps: 5, StepDays: 1,
	})
	require.NoError(t, err)

	require.Len(t, rs.Rows, 5)
	assert.Empty(t, f.server.Requests())
	assert.Empty(t, rs.Segments)
	assert.Equal(t, "gregorian", rs.Calendar)

	for i := 1; i < len(rs.Rows); i++ {
		assert.Greater(t, rs.Rows[i].JulianDay, rs.Rows[i-1].JulianDay)
		assert.InDelta(t, 1.0, rs.Rows[i].JulianDay-rs.Rows[i-1].JulianDay, 1e-9)
	}

	assert.Equal(t, "2024-03-20 12:00", rs.Rows[0].Date)
	assert.Equal(t, "2024-03-24 12:00", rs.Rows[4].Date)
}

func TestRun_ErrorRowsDoNotStopTheLoop(t *testing.T) {
	f := newFixture(t)

	start := testutil.JulianDay(swe.Date{Year: 2024, Month: 1, Day: 1}, swe.Gregorian)
	f.engine.Fail = func(jd float64, _ swe.Body) (int32, string) {
		if jd > start+0.5 && jd < start+1.5 {
			return -1, "SwissEph file 'seplm30.se1' not found in PATH"
		}

		return 0, ""
	}

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "venus", Year: 2024, Month: 1, Day: 1, Steps: 3, StepDays: 1,
	})
	require.NoError(t, err)

	require.Len(t, rs.Rows, 3)
	assert.False(t, rs.Rows[0].Failed())
	assert.True(t, rs.Rows[1].Failed())
	assert.Equal(t, ErrorDate, rs.Rows[1].Date)
	assert.Contains(t, rs.Rows[1].Error, "not found")
	assert.False(t, rs.Rows[2].Failed())
	assert.Equal(t, 1, rs.Errors())
}

func TestRun_EngineNotLoaded(t *testing.T) {
	f := newFixture(t)

	orch := NewOrchestrator(testLogger(), &Config{MaxSteps: 10}, segment.NewResolver(1800),
		f.orch.hydrator, swe.NewBridge(testLogger()))

	_, err := orch.Run(context.Background(), Request{Body: "mars", Year: -2500, Month: 1, Day: 1})
	require.ErrorIs(t, err, swe.ErrEngineUninitialized)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, StageEngine, qe.Stage)
	assert.Empty(t, f.server.Requests(), "nothing fetched before the engine is ready")
}

func TestRun_DataUnavailableAbortsBeforeCompute(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Run(context.Background(), Request{
		Body: "mars", Year: -2500, Month: 1, Day: 1, Steps: 2, StepDays: 1,
	})
	require.ErrorIs(t, err, hydrator.ErrDataUnavailable)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, StageHydrate, qe.Stage)

	assert.Zero(t, f.engine.Positions())
	assert.Len(t, f.server.Requests(), 4, "every default location tried")
}

func TestRun_SpanCrossingWindowsHydratesBoth(t *testing.T) {
	f := newFixture(t)
	f.server.Put("seplm36.se1", testutil.SegmentPayload())
	f.server.Put("seplm30.se1", testutil.SegmentPayload())

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "jupiter", Year: -3001, Month: 6, Day: 1, Steps: 3, StepDays: 365,
	})
	require.NoError(t, err)

	var ids []string
	for _, s := range rs.Segments {
		ids = append(ids, s.Segment.ID())
	}

	assert.Equal(t, []string{"seplm36", "seplm30"}, ids)
	assert.Len(t, rs.Rows, 3)
}

func TestRun_LunarUsesLunarSegment(t *testing.T) {
	f := newFixture(t)
	f.server.Put("semom30.se1", testutil.SegmentPayload())

	rs, err := f.orch.Run(context.Background(), Request{Body: "moon", Year: -2500, Month: 1, Day: 1, Steps: 1})
	require.NoError(t, err)
	require.Len(t, rs.Segments, 1)
	assert.Equal(t, segment.ClassLunar, rs.Segments[0].Segment.Class)
}

func TestRun_Horizontal(t *testing.T) {
	f := newFixture(t)

	obs := swe.Observer{Longitude: -1.8262, Latitude: 51.1789, Altitude: 100}

	rs, err := f.orch.Run(context.Background(), Request{
		Body: "sun", Year: 2024, Month: 6, Day: 21, Hour: 4.5, Steps: 2, StepDays: 1, Observer: &obs,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeHorizontal, rs.Mode)
	assert.Equal(t, []swe.Observer{obs}, f.engine.Observers())
	require.NotNil(t, rs.Request.Atmosphere, "default atmosphere filled in")

	for _, row := range rs.Rows {
		require.NotNil(t, row.Horizontal)
		assert.GreaterOrEqual(t, row.Horizontal.Azimuth, 0.0)
		assert.Less(t, row.Horizontal.Azimuth, 360.0)
		assert.InDelta(t, row.Horizontal.Altitude+0.5, row.Horizontal.ApparentAltitude, 1e-9)
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{name: "unknown body", req: Request{Body: "vulcan", Year: 2000, Month: 1, Day: 1}},
		{name: "bad month", req: Request{Body: "sun", Year: 2000, Month: 13, Day: 1}},
		{name: "bad day", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 0}},
		{name: "bad hour", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Hour: 24}},
		{name: "too many steps", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Steps: 5000}},
		{name: "negative step", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Steps: 1, StepDays: -1}},
		{name: "negative steps", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Steps: -1, StepDays: 1}},
		{name: "infinite step", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Steps: 1, StepDays: math.Inf(1)}},
		{name: "bad latitude", req: Request{Body: "sun", Year: 2000, Month: 1, Day: 1, Observer: &swe.Observer{Latitude: 91}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Run(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, StageValidate, qe.Stage)
		})
	}
}

func TestRun_SearchPathScopedPerSession(t *testing.T) {
	f := newFixture(t)
	f.server.Put("seplm30.se1", testutil.SegmentPayload())
	f.server.Put("semom30.se1", testutil.SegmentPayload())

	var wg sync.WaitGroup

	for _, body := range []string{"mars", "moon", "mars", "moon"} {
		wg.Add(1)

		go func(body string) {
			defer wg.Done()

			_, err := f.orch.Run(context.Background(), Request{Body: body, Year: -2500, Month: 1, Day: 1, Steps: 1})
			assert.NoError(t, err)
		}(body)
	}

	wg.Wait()

	for _, p := range f.engine.SearchPaths() {
		assert.Equal(t, f.store.SearchPath(), p)
	}
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)

	start := testutil.JulianDay(swe.Date{Year: 2024, Month: 1, Day: 1}, swe.Gregorian)
	f.engine.Fail = func(jd float64, _ swe.Body) (int32, string) {
		if jd > start+0.5 && jd < start+1.5 {
			return -2, "boom"
		}

		return 0, ""
	}

	rs, err := f.orch.Run(context.Background(), Request{Body: "mars", Year: 2024, Month: 1, Day: 1, Steps: 3, StepDays: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "header plus two rows, error row omitted")
	assert.Equal(t, "Date,JD,RA,Dec,Dist,RA_hms,Dec_dms", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01 00:00,"))
	assert.NotContains(t, buf.String(), ErrorDate)
}

func TestWriteCSV_Horizontal(t *testing.T) {
	rs := &ResultSet{
		Mode: ModeHorizontal,
		Rows: []Row{{
			Date:      "2024-06-21 04:30",
			JulianDay: 2460482.6875,
			Distance:  1.016,
			Horizontal: &Horizontal{
				Azimuth: 49.5, Altitude: 1.25,
				AzimuthDMS: FormatDMS(49.5, false), AltitudeDMS: FormatDMS(1.25, true),
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,JD,Az,Alt,Dist,Az_dms,Alt_dms", lines[0])
	assert.Contains(t, lines[1], "049° 30' 00.00")
}
