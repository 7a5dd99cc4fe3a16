// Package query runs position queries: it hydrates the segments a query
// needs, then steps the engine through the requested dates.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/observability"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine is the gated engine the orchestrator computes with.
type Engine interface {
	Check() error
	Session(searchPath string, fn func(swe.Engine) error) error
}

// Hydrator makes segments resident.
type Hydrator interface {
	Ensure(ctx context.Context, ref segment.Ref) (hydrator.Outcome, error)
	SearchPath() string
}

// Orchestrator runs queries against one engine and one resident store.
type Orchestrator struct {
	log      logrus.FieldLogger
	cfg      *Config
	resolver *segment.Resolver
	hydrator Hydrator
	engine   Engine
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(log logrus.FieldLogger, cfg *Config, resolver *segment.Resolver, h Hydrator, engine Engine) *Orchestrator {
	return &Orchestrator{
		log:      log.WithField("component", "query"),
		cfg:      cfg,
		resolver: resolver,
		hydrator: h,
		engine:   engine,
	}
}

// Run validates req, hydrates every segment between its first and last
// step, and computes one row per step. Engine failures on a single step
// become error rows; anything that stops the whole query is a *QueryError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*ResultSet, error) {
	start := time.Now()

	req.Normalize()

	body, err := req.Validate(o.cfg.MaxSteps)
	if err != nil {
		return nil, &QueryError{Stage: StageValidate, Err: err}
	}

	rs, err := o.run(ctx, req, body)

	status := "success"
	if err != nil {
		status = "failed"
	}

	observability.RecordQuery(body.String(), status, time.Since(start).Seconds())

	return rs, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, body swe.Body) (*ResultSet, error) {
	if err := o.engine.Check(); err != nil {
		return nil, &QueryError{Stage: StageEngine, Err: err}
	}

	cal := req.Calendar()
	searchPath := o.hydrator.SearchPath()

	log := o.log.WithFields(logrus.Fields{
		"body":     body.String(),
		"year":     req.Year,
		"steps":    req.Steps,
		"calendar": cal.String(),
	})

	var startJD float64

	var endYear int

	err := o.engine.Session(searchPath, func(e swe.Engine) error {
		startJD = e.JulianDay(swe.Date{Year: req.Year, Month: req.Month, Day: req.Day, Hour: req.Hour}, cal)
		endJD := startJD + float64(max(req.Steps-1, 0))*req.StepDays
		endYear = e.ReverseJulian(endJD, cal).Year

		return nil
	})
	if err != nil {
		return nil, &QueryError{Stage: StageEngine, Err: err}
	}

	var refs []segment.Ref
	if req.Steps > 0 {
		refs = o.resolver.Span(req.Year, endYear, body)
	}

	outcomes, err := o.hydrate(ctx, refs)
	if err != nil {
		log.WithError(err).Warn("Query aborted, segment data unavailable")
		return nil, &QueryError{Stage: StageHydrate, Err: err}
	}

	rs := &ResultSet{
		ID:        uuid.New(),
		Request:   req,
		Mode:      req.Mode(),
		Calendar:  cal.String(),
		Segments:  outcomes,
		Rows:      make([]Row, 0, req.Steps),
		CreatedAt: time.Now().UTC(),
	}

	err = o.engine.Session(searchPath, func(e swe.Engine) error {
		o.compute(ctx, e, &req, body, cal, startJD, rs)
		return ctx.Err()
	})
	if err != nil {
		return nil, &QueryError{Stage: StageCompute, Err: err}
	}

	log.WithFields(logrus.Fields{
		"query_id": rs.ID,
		"rows":     len(rs.Rows),
		"errors":   rs.Errors(),
		"segments": len(outcomes),
	}).Info("Query complete")

	return rs, nil
}

// hydrate ensures every segment concurrently. Any failure cancels the rest.
func (o *Orchestrator) hydrate(ctx context.Context, refs []segment.Ref) ([]hydrator.Outcome, error) {
	if len(refs) == 0 {
		return []hydrator.Outcome{}, nil
	}

	outcomes := make([]hydrator.Outcome, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.HydrationConcurrency > 0 {
		g.SetLimit(o.cfg.HydrationConcurrency)
	}

	for i, ref := range refs {
		g.Go(func() error {
			out, err := o.hydrator.Ensure(gctx, ref)
			if err != nil {
				return err
			}

			outcomes[i] = out

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (o *Orchestrator) compute(ctx context.Context, e swe.Engine, req *Request, body swe.Body, cal swe.Calendar, startJD float64, rs *ResultSet) {
	flags := swe.FlagSwissEph | swe.FlagSpeed | swe.FlagEquatorial

	horizontal := req.Mode() == ModeHorizontal
	if horizontal {
		e.SetObserver(*req.Observer)
		flags |= swe.FlagTopocentric
	}

	for i := 0; i < req.Steps; i++ {
		if ctx.Err() != nil {
			return
		}

		jd := startJD + float64(i)*req.StepDays

		pos, err := e.Position(jd, body, flags)
		if err != nil {
			rs.Rows = append(rs.Rows, errorRow(i, jd, err))
			observability.RecordRowError(body.String())

			continue
		}

		row := Row{
			Step:      i,
			Date:      FormatDate(e.ReverseJulian(jd, cal)),
			JulianDay: jd,
			Distance:  pos[2],
			Equatorial: &Equatorial{
				RA:     pos[0],
				Dec:    pos[1],
				RAHMS:  FormatHMS(pos[0]),
				DecDMS: FormatDMS(pos[1], true),
			},
		}

		if horizontal {
			hz := e.HorizonTransform(jd, swe.EquatorialToHorizon, *req.Observer, *req.Atmosphere,
				[3]float64{pos[0], pos[1], pos[2]})
			az := NorthAzimuth(hz.Azimuth)

			row.Horizontal = &Horizontal{
				Azimuth:          az,
				Altitude:         hz.TrueAltitude,
				ApparentAltitude: hz.ApparentAltitude,
				AzimuthDMS:       FormatDMS(az, false),
				AltitudeDMS:      FormatDMS(hz.TrueAltitude, true),
			}
		}

		rs.Rows = append(rs.Rows, row)
	}
}

func errorRow(step int, jd float64, err error) Row {
	msg := err.Error()

	var calcErr *swe.CalculationError
	if errors.As(err, &calcErr) && calcErr.Message != "" {
		msg = calcErr.Message
	}

	return Row{Step: step, Date: ErrorDate, JulianDay: jd, Error: msg}
}
