// Package session owns the selection lifecycle: it turns each selection
// change into one reconciliation pass and hands the result to the sinks.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cogentcore.org/core/math32"

	"github.com/spatialplot/globeviz/internal/dataset"
	"github.com/spatialplot/globeviz/internal/dispatcher"
	"github.com/spatialplot/globeviz/internal/extremum"
	"github.com/spatialplot/globeviz/internal/geo"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/reconcile"
)

// EventPass is the dispatcher event published after every pass. Its
// payload is a model.PassResult.
const EventPass = "pass:result"

// Dependencies holds all dependencies needed by the session service
type Dependencies struct {
	Provider   dataset.Provider
	Extremum   *extremum.Cache
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
}

// Service runs reconciliation passes and owns the authoritative marker
// map. Passes are serialized: selections can arrive concurrently over the
// API, but each pass runs to completion before the next starts.
type Service struct {
	deps Dependencies
	ctx  *Context

	mu      sync.Mutex
	markers map[string]model.MarkerState
}

// NewService creates a new session service
func NewService(deps Dependencies, ctx *Context) *Service {
	return &Service{
		deps:    deps,
		ctx:     ctx,
		markers: make(map[string]model.MarkerState),
	}
}

// Context returns the shared view state.
func (s *Service) Context() *Context {
	return s.ctx
}

// Validate checks a selection against the dataset. Unknown metrics and
// years are rejected; an empty country is allowed (nothing selected).
func (s *Service) Validate(sel model.Selection) error {
	if !sel.Metric.Valid() {
		return fmt.Errorf("unknown metric: %q", sel.Metric)
	}
	years, err := s.deps.Provider.Years()
	if err != nil {
		return fmt.Errorf("error reading dataset years: %w", err)
	}
	for _, y := range years {
		if y == sel.Year {
			return nil
		}
	}
	return fmt.Errorf("year %d not in dataset", sel.Year)
}

// Apply runs one reconciliation pass for the selection and publishes the
// result. The returned PassResult holds the emitted operations and their
// counts; the updated marker map is kept for the next pass.
func (s *Service) Apply(sel model.Selection) (model.PassResult, error) {
	if err := s.Validate(sel); err != nil {
		return model.PassResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	samples, err := s.deps.Provider.SamplesForYear(sel.Metric, sel.Year)
	if err != nil {
		return model.PassResult{}, fmt.Errorf("error loading samples for %s/%d: %w", sel.Metric, sel.Year, err)
	}

	ops, next := reconcile.Reconcile(reconcile.Pass{
		Samples:     samples,
		Metric:      string(sel.Metric),
		GlobalMax:   s.deps.Extremum.Max(sel.Metric),
		Ref:         s.ctx.SphereRef(),
		SelectedKey: sel.Country,
	}, s.markers)

	stats := model.PassStats{Duration: time.Since(start)}
	for _, op := range ops {
		switch op.Kind {
		case model.OpCreate:
			stats.Creates++
		case model.OpUpdate:
			stats.Updates++
		case model.OpRemove:
			stats.Removes++
		}
	}
	// Samples that produced no op and no marker were unplottable or had
	// no reference globe to land on.
	stats.Skipped = len(samples) - (stats.Creates + stats.Updates)

	s.markers = next
	s.ctx.SetSelection(sel)

	res := model.PassResult{
		Selection: sel,
		Ops:       ops,
		Stats:     stats,
		Time:      start,
	}

	s.deps.Logger.Info("Reconciliation pass complete",
		"metric", sel.Metric,
		"year", sel.Year,
		"creates", stats.Creates,
		"updates", stats.Updates,
		"removes", stats.Removes,
		"skipped", stats.Skipped,
		"duration", stats.Duration)

	if s.deps.Dispatcher != nil && s.deps.Dispatcher.HasHandler(EventPass) {
		if err := s.deps.Dispatcher.Publish(dispatcher.Event{
			Name:    EventPass,
			Payload: res,
			Time:    start,
		}); err != nil {
			s.deps.Logger.Error("Error publishing pass result", "error", err)
		}
	}

	return res, nil
}

// Markers returns a copy of the current marker map for concurrent reads.
func (s *Service) Markers() map[string]model.MarkerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.MarkerState, len(s.markers))
	for k, v := range s.markers {
		out[k] = v
	}
	return out
}

// MarkerCount reports how many markers the last pass left displayed.
func (s *Service) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

// Scene returns everything a renderer joining mid-session needs: the
// selection, a copy of the marker map, and the metric's global maximum.
func (s *Service) Scene() (model.Selection, map[string]model.MarkerState, float64) {
	sel := s.ctx.Selection()
	return sel, s.Markers(), s.deps.Extremum.Max(sel.Metric)
}

// Orientation solves the globe rotation that brings the target lat/lon to
// face the viewer. Invoked on country-selection changes.
func (s *Service) Orientation(lat, lon float64) math32.Quat {
	return geo.SolveOrientation(lat, lon)
}
