// Package share persists dashboard snapshots behind short ids so a result
// can be reopened, or compared against, in a later session.
package share

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"practice-insights/models"
	"practice-insights/pipeline"
)

// Payload is the persisted form of one processing run. It must survive an
// encode/decode cycle unchanged.
type Payload struct {
	ProcessedData   []models.EnrichedMonth           `json:"processedData"`
	Config          models.Config                    `json:"config"`
	ForecastData    map[string]models.ForecastSeries `json:"forecastData"`
	RawOnlineData   []models.OnlineRequest           `json:"rawOnlineData"`
	RawStaffData    []models.StaffMonthRecord        `json:"rawStaffData"`
	RawSlotData     []models.SlotMonthRecord         `json:"rawSlotData"`
	RawCombinedData []models.CombinedMonthRecord     `json:"rawCombinedData"`
}

// Store saves and loads payloads. Load returns errors.ErrExpired once a
// payload is gone.
type Store interface {
	Save(ctx context.Context, p *Payload) (string, error)
	Load(ctx context.Context, id string) (*Payload, error)
}

// FromResult builds the share payload of a processing run.
func FromResult(res *pipeline.Result) *Payload {
	return &Payload{
		ProcessedData:   res.Months,
		Config:          res.Config,
		ForecastData:    res.Forecasts,
		RawOnlineData:   res.Online,
		RawStaffData:    res.Staff,
		RawSlotData:     res.Slots,
		RawCombinedData: res.Combined,
	}
}

// Encode serialises a payload.
func Encode(p *Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding share payload: %w", err)
	}
	return data, nil
}

// Decode restores a payload written by Encode.
func Decode(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding share payload: %w", err)
	}
	return &p, nil
}

// Month returns the enriched month with the given key, or the latest month
// when key is empty.
func (p *Payload) Month(key string) (models.EnrichedMonth, bool) {
	if len(p.ProcessedData) == 0 {
		return models.EnrichedMonth{}, false
	}
	if key == "" {
		latest := p.ProcessedData[0]
		for _, m := range p.ProcessedData[1:] {
			if m.Date.After(latest.Date) {
				latest = m
			}
		}
		return latest, true
	}
	for _, m := range p.ProcessedData {
		if m.Month == key {
			return m, true
		}
	}
	return models.EnrichedMonth{}, false
}
