/*
Package factory provides JSON to Go mandate conversion.

PURPOSE:
  Converts JSON mandate definitions into mandate.Mandate values with a
  validated band.Config, and back. Mandates can be imported in bulk from
  a seed file or posted one by one through the API.

JSON SCHEMA:
  {
    "id": "m-association",
    "debtor": "Association des Amis",
    "reference": "RUM-2018-0042",
    "amount": "25.50",
    "currency": "EUR",
    "active": true,
    "band": {
      "type": "working_days_six",
      "width": 8,
      "anchor_day": 5,
      "overflow": "reject"
    }
  }

  "band.type" also accepts the French labels ("Jours ouvrables") and the
  legacy numeric codes 1..5, as a string or a number.

USAGE:
  f := factory.NewMandateFactory()
  m, err := f.ParseMandate(jsonString)

SEE ALSO:
  - band/types.go: Band types and Config
  - mandate/types.go: Mandate definition
*/
package factory

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/mandate"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// MandateJSON is the JSON representation of a mandate.
type MandateJSON struct {
	ID        string          `json:"id"`
	Debtor    string          `json:"debtor"`
	Reference string          `json:"reference,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency,omitempty"`
	Active    *bool           `json:"active,omitempty"` // Default true
	Band      BandJSON        `json:"band"`
}

// BandJSON represents a band configuration.
type BandJSON struct {
	Type      BandTypeJSON `json:"type"`
	Width     int          `json:"width"`
	AnchorDay int          `json:"anchor_day"`
	Overflow  string       `json:"overflow,omitempty"`
}

// BandTypeJSON accepts a band type as a string or a legacy numeric code.
type BandTypeJSON string

func (b *BandTypeJSON) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*b = BandTypeJSON(s)
	return nil
}

// =============================================================================
// MANDATE FACTORY
// =============================================================================

// MandateFactory converts JSON mandates to Go structs.
type MandateFactory struct{}

// NewMandateFactory creates a new mandate factory.
func NewMandateFactory() *MandateFactory {
	return &MandateFactory{}
}

// ParseMandate parses a JSON string into a Mandate.
func (f *MandateFactory) ParseMandate(jsonStr string) (mandate.Mandate, error) {
	var mj MandateJSON
	if err := json.Unmarshal([]byte(jsonStr), &mj); err != nil {
		return mandate.Mandate{}, fmt.Errorf("failed to parse mandate JSON: %w", err)
	}
	return f.FromJSON(mj)
}

// ParseMandates parses a JSON array of mandates.
func (f *MandateFactory) ParseMandates(data []byte) ([]mandate.Mandate, error) {
	var list []MandateJSON
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse mandates JSON: %w", err)
	}

	mandates := make([]mandate.Mandate, 0, len(list))
	for i, mj := range list {
		m, err := f.FromJSON(mj)
		if err != nil {
			return nil, fmt.Errorf("mandate %d (%s): %w", i, mj.ID, err)
		}
		mandates = append(mandates, m)
	}
	return mandates, nil
}

// LoadFile reads a JSON array of mandates from disk.
func (f *MandateFactory) LoadFile(path string) ([]mandate.Mandate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f.ParseMandates(data)
}

// ParseConfig converts a BandJSON to a validated band.Config.
func (f *MandateFactory) ParseConfig(bj BandJSON) (band.Config, error) {
	bandType, err := band.ParseBandType(string(bj.Type))
	if err != nil {
		return band.Config{}, err
	}
	overflow, err := band.ParseOverflowPolicy(bj.Overflow)
	if err != nil {
		return band.Config{}, err
	}

	cfg := band.Config{
		Type:      bandType,
		Width:     bj.Width,
		AnchorDay: bj.AnchorDay,
		Overflow:  overflow,
	}
	return cfg, cfg.Validate()
}

// FromJSON converts MandateJSON to a Mandate. IDs and currency defaults are
// left to mandate.Service.CreateMandate.
func (f *MandateFactory) FromJSON(mj MandateJSON) (mandate.Mandate, error) {
	cfg, err := f.ParseConfig(mj.Band)
	if err != nil {
		return mandate.Mandate{}, err
	}

	active := true
	if mj.Active != nil {
		active = *mj.Active
	}

	return mandate.Mandate{
		ID:        mandate.MandateID(mj.ID),
		Debtor:    mj.Debtor,
		Reference: mj.Reference,
		Config:    cfg,
		Amount:    mj.Amount,
		Currency:  strings.ToUpper(mj.Currency),
		Active:    active,
	}, nil
}

// ToJSON converts a Mandate to MandateJSON.
func (f *MandateFactory) ToJSON(m mandate.Mandate) MandateJSON {
	active := m.Active
	overflow := m.Config.Overflow
	if overflow == "" {
		overflow = band.OverflowReject
	}
	return MandateJSON{
		ID:        string(m.ID),
		Debtor:    m.Debtor,
		Reference: m.Reference,
		Amount:    m.Amount,
		Currency:  m.Currency,
		Active:    &active,
		Band: BandJSON{
			Type:      BandTypeJSON(m.Config.Type),
			Width:     m.Config.Width,
			AnchorDay: m.Config.AnchorDay,
			Overflow:  string(overflow),
		},
	}
}

// Marshal encodes a mandate as JSON.
func (f *MandateFactory) Marshal(m mandate.Mandate) ([]byte, error) {
	return json.Marshal(f.ToJSON(m))
}
