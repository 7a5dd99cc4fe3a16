package service

import (
	"fmt"

	"github.com/ethpandaops/ephemeris/pkg/fetch"
	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/sirupsen/logrus"
)

// Core is the query stack shared by the server and the CLI
type Core struct {
	Bridge       *swe.Bridge
	Resolver     *segment.Resolver
	Store        *store.Dir
	Fetcher      *fetch.Client
	Hydrator     *hydrator.Hydrator
	Orchestrator *query.Orchestrator
}

// NewCore builds the query stack. cache may be nil. The engine is not
// loaded until Bridge.Load is called.
func NewCore(log logrus.FieldLogger, cfg *Config, cache hydrator.PayloadCache) (*Core, error) {
	st, err := store.NewDir(&cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open resident store: %w", err)
	}

	fetcher, err := fetch.NewClient(log, &cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch client: %w", err)
	}

	h, err := hydrator.New(log, &cfg.Hydrator, st, fetcher, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydrator: %w", err)
	}

	bridge := swe.NewBridge(log)
	resolver := segment.NewResolver(cfg.Segments.ThresholdYear)

	return &Core{
		Bridge:       bridge,
		Resolver:     resolver,
		Store:        st,
		Fetcher:      fetcher,
		Hydrator:     h,
		Orchestrator: query.NewOrchestrator(log, &cfg.Query, resolver, h, bridge),
	}, nil
}

// Close releases the engine library
func (c *Core) Close() error {
	return c.Bridge.Close()
}
