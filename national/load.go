package national

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"practice-insights/errors"
	"practice-insights/metrics"
	"practice-insights/share"
)

// DefaultConcurrency bounds the number of share loads in flight.
const DefaultConcurrency = 8

// LoadStatus classifies a failed practice load.
type LoadStatus string

const (
	StatusExpired LoadStatus = "expired"
	StatusError   LoadStatus = "error"
)

// Practice is one successfully loaded comparison practice.
type Practice struct {
	ShareID string
	Payload *share.Payload
}

// LoadFailure reports a practice that could not be loaded.
type LoadFailure struct {
	ShareID string     `json:"shareId"`
	Status  LoadStatus `json:"status"`
	Error   string     `json:"error"`
}

// LoadPractices fetches every id from store in parallel. Each id succeeds
// or fails on its own; failed ids are reported and excluded. Results keep
// the order of ids. A cancelled ctx fails the outstanding loads.
func LoadPractices(ctx context.Context, store share.Store, ids []string, log *zap.Logger) ([]Practice, []LoadFailure) {
	if log == nil {
		log = zap.NewNop()
	}

	payloads := make([]*share.Payload, len(ids))
	failed := make([]*LoadFailure, len(ids))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := store.Load(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f := &LoadFailure{ShareID: id, Status: StatusError, Error: err.Error()}
				if stderrors.Is(err, errors.ErrExpired) {
					f.Status = StatusExpired
				}
				failed[i] = f
				metrics.PracticeLoadsTotal.WithLabelValues(string(f.Status)).Inc()
				log.Warn("practice load failed", zap.String("share_id", id), zap.String("status", string(f.Status)), zap.Error(err))
				return nil
			}
			payloads[i] = p
			metrics.PracticeLoadsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	// Loads never return an error: each outcome is recorded per id.
	_ = g.Wait()

	var (
		practices []Practice
		failures  []LoadFailure
	)
	for i, id := range ids {
		switch {
		case failed[i] != nil:
			failures = append(failures, *failed[i])
		case payloads[i] != nil:
			practices = append(practices, Practice{ShareID: id, Payload: payloads[i]})
		}
	}
	return practices, failures
}

// Values extracts metric for month from each practice. An empty month
// means each practice's latest month. Practices without the month or with
// a null value are skipped.
func Values(practices []Practice, metric Metric, month string) []float64 {
	var out []float64
	for _, p := range practices {
		m, ok := p.Payload.Month(month)
		if !ok {
			continue
		}
		if v := metric.Value(m); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Request asks for one value to be placed among a set of shared practices.
type Request struct {
	ShareIDs  []string `json:"shareIds" validate:"required,min=1,dive,required"`
	Metric    string   `json:"metric" validate:"required"`
	Month     string   `json:"month"`
	Value     *float64 `json:"value"`
	Threshold float64  `json:"threshold" validate:"gte=0"`
}

// Report is the answer to a Request.
type Report struct {
	Comparison *Comparison   `json:"comparison"`
	Loaded     []string      `json:"loaded"`
	Failures   []LoadFailure `json:"failures"`
	Month      string        `json:"month,omitempty"`
}

// Run loads the requested practices and compares value against them. When
// req.Value is nil the first loaded practice is the subject and the rest
// form the population.
func Run(ctx context.Context, store share.Store, req Request, log *zap.Logger) (*Report, error) {
	metric, ok := Lookup(req.Metric)
	if !ok {
		return nil, fmt.Errorf("metric %q: %w", req.Metric, errors.ErrNotFound)
	}

	practices, failures := LoadPractices(ctx, store, req.ShareIDs, log)
	r := &Report{Failures: failures, Month: req.Month, Loaded: []string{}}
	for _, p := range practices {
		r.Loaded = append(r.Loaded, p.ShareID)
	}

	value := req.Value
	population := practices
	if value == nil {
		if len(practices) == 0 {
			return r, nil
		}
		own, ok := practices[0].Payload.Month(req.Month)
		if !ok {
			return r, nil
		}
		value = metric.Value(own)
		population = practices[1:]
		if value == nil {
			return r, nil
		}
	}

	c := Compare(metric.Name, *value, Values(population, metric, req.Month), req.Threshold)
	r.Comparison = &c
	return r, nil
}
