// Package hydrator makes segment files resident before the engine needs them.
package hydrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/fetch"
	"github.com/ethpandaops/ephemeris/pkg/observability"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Source says where a segment came from.
type Source string

const (
	// SourceResident means the segment was already staged
	SourceResident Source = "resident"
	// SourceCache means the payload came from the shared payload cache
	SourceCache Source = "cache"
	// SourceRemote means the payload was downloaded
	SourceRemote Source = "remote"
)

// Fetcher renders and downloads remote segment locations.
type Fetcher interface {
	Locations(ref segment.Ref) ([]string, error)
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Outcome describes a successful Ensure.
type Outcome struct {
	Segment  segment.Ref `json:"segment"`
	Source   Source      `json:"source"`
	Location string      `json:"location,omitempty"`
	Bytes    int         `json:"bytes,omitempty"`
	Shared   bool        `json:"shared,omitempty"`
}

// Hydrator ensures segments are resident. Each segment is independent;
// concurrent calls for one segment share a single hydration.
type Hydrator struct {
	log      logrus.FieldLogger
	cfg      *Config
	store    store.Store
	fetcher  Fetcher
	cache    PayloadCache
	group    singleflight.Group
	manifest *manifestWriter
}

// New creates a hydrator. cache may be nil.
func New(log logrus.FieldLogger, cfg *Config, st store.Store, fetcher Fetcher, cache PayloadCache) (*Hydrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Hydrator{
		log:      log.WithField("component", "hydrator"),
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		cache:    cache,
		manifest: newManifestWriter(st, cfg.Manifest),
	}, nil
}

// SearchPath returns the engine search path of the resident store.
func (h *Hydrator) SearchPath() string {
	return h.store.SearchPath()
}

// Locations returns the remote candidates for ref in the order they are tried.
func (h *Hydrator) Locations(ref segment.Ref) ([]string, error) {
	return h.fetcher.Locations(ref)
}

// Manifest returns the segments hydrated by this process.
func (h *Hydrator) Manifest() Manifest {
	return h.manifest.snapshot()
}

// Resident reports whether any alias of ref is already staged.
func (h *Hydrator) Resident(ref segment.Ref) (bool, error) {
	for _, rel := range ref.ResidentPaths(h.store.Dirs()) {
		ok, err := h.store.Exists(rel)
		if err != nil {
			return false, fmt.Errorf("failed to check %s: %w", rel, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// Ensure makes ref resident. It returns once the segment is staged under
// every alias, or with a *DataUnavailableError when no location could serve
// it. The shared hydration is not cancelled when ctx is; only this caller
// stops waiting.
func (h *Hydrator) Ensure(ctx context.Context, ref segment.Ref) (Outcome, error) {
	detached := context.WithoutCancel(ctx)

	ch := h.group.DoChan(ref.ID(), func() (interface{}, error) {
		return h.ensure(detached, ref)
	})

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Err
		}

		outcome, _ := res.Val.(Outcome)
		outcome.Shared = res.Shared

		return outcome, nil
	}
}

func (h *Hydrator) ensure(ctx context.Context, ref segment.Ref) (outcome Outcome, err error) {
	start := time.Now()
	log := h.log.WithField("segment", ref.ID())

	defer func() {
		result := string(outcome.Source)

		switch {
		case errors.Is(err, ErrDataUnavailable):
			result = "unavailable"
		case err != nil:
			result = "error"
		}

		observability.RecordHydration(string(ref.Class), result, time.Since(start).Seconds())
	}()

	resident, err := h.Resident(ref)
	if err != nil {
		return Outcome{}, err
	}

	if resident {
		return Outcome{Segment: ref, Source: SourceResident}, nil
	}

	if h.cache != nil {
		unlock, lockErr := h.cache.Lock(ctx, ref.ID())
		if lockErr != nil {
			log.WithError(lockErr).Warn("Failed to acquire segment lock, continuing without it")
		} else {
			defer unlock()

			// Another instance may have staged it while we waited.
			if resident, err = h.Resident(ref); err != nil {
				return Outcome{}, err
			} else if resident {
				return Outcome{Segment: ref, Source: SourceResident}, nil
			}
		}

		if out, ok := h.fromCache(ctx, log, ref); ok {
			return out, nil
		}
	}

	return h.fromRemote(ctx, log, ref)
}

func (h *Hydrator) fromCache(ctx context.Context, log logrus.FieldLogger, ref segment.Ref) (Outcome, bool) {
	data, err := h.cache.Get(ctx, ref.ID())
	if err != nil {
		observability.RecordPayloadCache("error")
		log.WithError(err).Warn("Payload cache lookup failed")

		return Outcome{}, false
	}

	if data == nil {
		observability.RecordPayloadCache("miss")
		return Outcome{}, false
	}

	if err := fetch.CheckPayload(data, h.cfg.MinPayloadBytes); err != nil {
		observability.RecordPayloadCache("miss")
		log.WithError(err).Warn("Ignoring cached payload")

		return Outcome{}, false
	}

	observability.RecordPayloadCache("hit")

	if err := h.stage(ref, data, SourceCache, ""); err != nil {
		log.WithError(err).Warn("Failed to stage cached payload")
		return Outcome{}, false
	}

	return Outcome{Segment: ref, Source: SourceCache, Bytes: len(data)}, true
}

func (h *Hydrator) fromRemote(ctx context.Context, log logrus.FieldLogger, ref segment.Ref) (Outcome, error) {
	locations, err := h.fetcher.Locations(ref)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to build locations for %s: %w", ref.ID(), err)
	}

	if len(locations) == 0 {
		return Outcome{}, &DataUnavailableError{Segment: ref}
	}

	var attempts []Attempt

	for _, location := range locations {
		data, err := h.fetcher.Fetch(ctx, location)
		if err == nil {
			err = fetch.CheckPayload(data, h.cfg.MinPayloadBytes)
		}

		if err != nil {
			observability.RecordFetchAttempt(fetchOutcome(err))
			log.WithError(err).WithField("location", location).Debug("Segment location failed")

			attempts = append(attempts, Attempt{Location: location, Err: err})

			continue
		}

		observability.RecordFetchAttempt("success")

		if err := h.stage(ref, data, SourceRemote, location); err != nil {
			return Outcome{}, err
		}

		if h.cache != nil {
			if err := h.cache.Put(ctx, ref.ID(), data, location); err != nil {
				log.WithError(err).Warn("Failed to store payload in cache")
			}
		}

		log.WithFields(logrus.Fields{
			"location": location,
			"bytes":    len(data),
			"attempts": len(attempts) + 1,
		}).Info("Segment hydrated")

		return Outcome{Segment: ref, Source: SourceRemote, Location: location, Bytes: len(data)}, nil
	}

	log.WithField("attempts", len(attempts)).Warn("Segment unavailable from every location")

	return Outcome{}, &DataUnavailableError{Segment: ref, Attempts: attempts}
}

// stage writes data under every alias in every staging directory. If any
// write fails the ones already written are removed, so the segment is either
// fully present or absent.
func (h *Hydrator) stage(ref segment.Ref, data []byte, source Source, location string) error {
	paths := ref.ResidentPaths(h.store.Dirs())
	written := make([]string, 0, len(paths))

	for _, rel := range paths {
		if err := h.store.Write(rel, data); err != nil {
			for _, done := range written {
				if rmErr := h.store.Remove(done); rmErr != nil {
					h.log.WithError(rmErr).WithField("path", done).Warn("Failed to roll back staged alias")
				}
			}

			observability.RecordError("hydrator", "stage")

			return fmt.Errorf("failed to stage %s at %s: %w", ref.ID(), rel, err)
		}

		written = append(written, rel)
		observability.RecordBytesStaged(len(data))
	}

	entry := ManifestEntry{
		File:       ref.Aliases()[0],
		Range:      fmt.Sprintf("%d to %d", ref.Start, ref.End()),
		Source:     source,
		URL:        location,
		Bytes:      len(data),
		Paths:      written,
		HydratedAt: time.Now().UTC(),
	}

	if err := h.manifest.record(ref.ID(), entry); err != nil {
		h.log.WithError(err).Warn("Failed to update hydration manifest")
	}

	return nil
}

func fetchOutcome(err error) string {
	var statusErr *fetch.StatusError

	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, fetch.ErrMalformedPayload):
		return "malformed"
	default:
		return "error"
	}
}
