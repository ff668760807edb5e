/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done by the band and mandate packages, not in DTOs.
  DTOs are pure data carriers. Dates are YYYY-MM-DD strings.
*/
package api

import (
	"time"

	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/factory"
	"github.com/warp/withdrawal-bands/mandate"
	"github.com/warp/withdrawal-bands/store/sqlite"
)

// =============================================================================
// BANDS
// =============================================================================

// BandTypeDTO describes one band type.
type BandTypeDTO struct {
	Type               string `json:"type"`
	Code               int    `json:"code"`
	Label              string `json:"label"`
	WidthMeaning       string `json:"width_meaning"`
	WorkingDaysPerWeek int    `json:"working_days_per_week,omitempty"`
}

// ResolveRequest asks for the next withdrawal date of an ad-hoc band.
type ResolveRequest struct {
	BandType  factory.BandTypeJSON `json:"band_type"`
	BandWidth int                  `json:"band_width"`
	AnchorDay int                  `json:"anchor_day"`
	Overflow  string               `json:"overflow,omitempty"`
	Today     string               `json:"today,omitempty"` // Default: server date
}

// ResolutionDTO is a resolved withdrawal date with its explanation.
type ResolutionDTO struct {
	Date      string `json:"date"`
	Reference string `json:"reference_date"`
	Candidate string `json:"candidate"`
	Gap       int    `json:"gap_days"`
	Rolled    bool   `json:"rolled"`
	Rule      string `json:"rule"`
}

func toResolutionDTO(res band.Resolution) ResolutionDTO {
	return ResolutionDTO{
		Date:      res.Date.String(),
		Reference: res.Reference.String(),
		Candidate: res.Candidate.String(),
		Gap:       res.Gap,
		Rolled:    res.Rolled,
		Rule:      string(res.Rule),
	}
}

// =============================================================================
// MANDATES
// =============================================================================

// MandateDTO represents a mandate in API responses.
type MandateDTO struct {
	factory.MandateJSON
	CreatedAt string `json:"created_at,omitempty"`
}

// UpcomingDTO lists the next withdrawal dates of a mandate.
type UpcomingDTO struct {
	MandateID string   `json:"mandate_id"`
	Dates     []string `json:"dates"`
}

// WithdrawalDTO represents a recorded withdrawal.
type WithdrawalDTO struct {
	ID            string `json:"id"`
	MandateID     string `json:"mandate_id"`
	Date          string `json:"date"`
	ReferenceDate string `json:"reference_date"`
	Candidate     string `json:"candidate"`
	Rolled        bool   `json:"rolled"`
	Rule          string `json:"rule"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
}

func toWithdrawalDTO(w mandate.Withdrawal) WithdrawalDTO {
	return WithdrawalDTO{
		ID:            string(w.ID),
		MandateID:     string(w.MandateID),
		Date:          w.Date.String(),
		ReferenceDate: w.ReferenceDate.String(),
		Candidate:     w.Candidate.String(),
		Rolled:        w.Rolled,
		Rule:          string(w.Rule),
		Amount:        w.Amount.StringFixed(2),
		Currency:      w.Currency,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

// SchedulerRunDTO represents one scheduler pass.
type SchedulerRunDTO struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	ReferenceDate string `json:"reference_date"`
	Scheduled     int    `json:"scheduled"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

func toSchedulerRunDTO(r sqlite.SchedulerRun) SchedulerRunDTO {
	dto := SchedulerRunDTO{
		ID:            r.ID,
		Status:        r.Status,
		ReferenceDate: r.ReferenceDate.String(),
		Scheduled:     r.Scheduled,
		Skipped:       r.Skipped,
		Failed:        r.Failed,
		Error:         r.Error,
		StartedAt:     r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
