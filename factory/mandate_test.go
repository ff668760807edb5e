package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/factory"
)

func TestParseMandate(t *testing.T) {
	f := factory.NewMandateFactory()

	m, err := f.ParseMandate(`{
		"id": "m-1",
		"debtor": "Association des Amis",
		"reference": "RUM-2018-0042",
		"amount": "25.50",
		"currency": "eur",
		"band": {"type": "working_days_six", "width": 8, "anchor_day": 5}
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Association des Amis", m.Debtor)
	assert.Equal(t, "EUR", m.Currency)
	assert.True(t, m.Active, "mandates are active unless stated")
	assert.True(t, m.Amount.Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, band.Config{
		Type:      band.WorkingDaysSix,
		Width:     8,
		AnchorDay: 5,
		Overflow:  band.OverflowReject,
	}, m.Config)
}

func TestParseMandate_LegacyBandTypes(t *testing.T) {
	f := factory.NewMandateFactory()

	tests := []struct {
		name string
		raw  string
		want band.BandType
	}{
		{"numeric code", `5`, band.FixedDay},
		{"quoted code", `"2"`, band.WorkingDaysFive},
		{"french label", `"Jours francs"`, band.FrancDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := f.ParseMandate(`{"id":"m","debtor":"d","amount":10,
				"band":{"type":` + tt.raw + `,"width":7,"anchor_day":5}}`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Config.Type)
		})
	}
}

func TestParseMandate_Invalid(t *testing.T) {
	f := factory.NewMandateFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"id":`},
		{"unknown band type", `{"id":"m","debtor":"d","amount":"1","band":{"type":"weekly","width":1,"anchor_day":5}}`},
		{"anchor out of range", `{"id":"m","debtor":"d","amount":"1","band":{"type":"calendar_days","width":1,"anchor_day":32}}`},
		{"bad overflow", `{"id":"m","debtor":"d","amount":"1","band":{"type":"calendar_days","width":1,"anchor_day":5,"overflow":"wrap"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseMandate(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := factory.NewMandateFactory()

	original, err := f.ParseMandate(`{"id":"m-1","debtor":"d","amount":"9.99","currency":"EUR","active":false,
		"band":{"type":"fixed_day","width":27,"anchor_day":31,"overflow":"clamp"}}`)
	require.NoError(t, err)

	data, err := f.Marshal(original)
	require.NoError(t, err)

	again, err := f.ParseMandate(string(data))
	require.NoError(t, err)
	assert.Equal(t, original.Config, again.Config)
	assert.False(t, again.Active)
	assert.True(t, original.Amount.Equal(again.Amount))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mandates.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"m-1","debtor":"a","amount":"10","band":{"type":"calendar_days","width":9,"anchor_day":5}},
		{"id":"m-2","debtor":"b","amount":"20","band":{"type":"Jours fixes","width":27,"anchor_day":5}}
	]`), 0o600))

	mandates, err := factory.NewMandateFactory().LoadFile(path)
	require.NoError(t, err)
	require.Len(t, mandates, 2)
	assert.Equal(t, band.FixedDay, mandates[1].Config.Type)

	_, err = factory.NewMandateFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
