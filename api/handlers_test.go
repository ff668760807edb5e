/*
handlers_test.go - Tests for API handlers

Tests for:
- Ad-hoc resolution (Resolve)
- Mandate CRUD and error mapping
- Next / upcoming withdrawal dates
- Withdrawal scheduling and due listing
*/
package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/withdrawal-bands/band"
	"github.com/warp/withdrawal-bands/mandate"
	"github.com/warp/withdrawal-bands/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// 2018-12-26: one day before the December switchover of the sample bands.
var testNow = time.Date(2018, time.December, 26, 9, 30, 0, 0, time.UTC)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := mandate.NewService(store).WithResolver(&band.Resolver{Clock: func() time.Time { return testNow }})
	h := NewHandler(store, svc)
	return &testServer{handler: h, router: NewRouter(h), store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const calendarMandate = `{
	"id": "m-cal",
	"debtor": "Association des Amis",
	"reference": "RUM-2018-0042",
	"amount": "25.50",
	"band": {"type": "calendar_days", "width": 9, "anchor_day": 5}
}`

func (ts *testServer) createMandate(t *testing.T, body string) MandateDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/mandates", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[MandateDTO](t, rec)
}

// =============================================================================
// BANDS
// =============================================================================

func TestListBandTypes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/band-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	types := decode[[]BandTypeDTO](t, rec)
	require.Len(t, types, 5)
	assert.Equal(t, "working_days_six", types[0].Type)
	assert.Equal(t, 6, types[0].WorkingDaysPerWeek)
	assert.Equal(t, "fixed_day", types[4].Type)
	assert.Equal(t, "day_of_month", types[4].WidthMeaning)
}

func TestResolve(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		date   string
		rule   string
	}{
		{
			name:   "fixed day past threshold",
			body:   `{"band_type":"fixed_day","band_width":27,"anchor_day":5,"today":"2018-12-27"}`,
			status: http.StatusOK,
			date:   "2019-02-05",
			rule:   string(band.RuleFixedDayThreshold),
		},
		{
			name:   "legacy numeric code",
			body:   `{"band_type":3,"band_width":9,"anchor_day":5,"today":"2018-12-26"}`,
			status: http.StatusOK,
			date:   "2019-01-05",
			rule:   string(band.RuleAccepted),
		},
		{
			name:   "defaults to server date",
			body:   `{"band_type":"calendar_days","band_width":9,"anchor_day":5}`,
			status: http.StatusOK,
			date:   "2019-01-05",
			rule:   string(band.RuleAccepted),
		},
		{
			name:   "anchor out of range",
			body:   `{"band_type":"calendar_days","band_width":9,"anchor_day":40}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "overflow rejected",
			body:   `{"band_type":"calendar_days","band_width":3,"anchor_day":31,"today":"2019-02-10"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			body:   `{"band_type":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/resolve", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
				return
			}
			res := decode[ResolutionDTO](t, rec)
			assert.Equal(t, tt.date, res.Date)
			assert.Equal(t, tt.rule, res.Rule)
		})
	}
}

// =============================================================================
// MANDATES
// =============================================================================

func TestMandateCRUD(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createMandate(t, calendarMandate)
	assert.Equal(t, "m-cal", created.ID)
	assert.Equal(t, "EUR", created.Currency)
	assert.NotEmpty(t, created.CreatedAt)
	require.NotNil(t, created.Active)
	assert.True(t, *created.Active)

	rec := ts.do(t, http.MethodGet, "/api/mandates/m-cal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[MandateDTO](t, rec)
	assert.Equal(t, "calendar_days", string(got.Band.Type))
	assert.Equal(t, "reject", got.Band.Overflow)

	rec = ts.do(t, http.MethodGet, "/api/mandates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]MandateDTO](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/api/mandates/m-cal", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/mandates/m-cal", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateMandate_Invalid(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing debtor", `{"id":"m","amount":"1","band":{"type":"calendar_days","width":9,"anchor_day":5}}`},
		{"zero amount", `{"id":"m","debtor":"d","amount":"0","band":{"type":"calendar_days","width":9,"anchor_day":5}}`},
		{"unknown band", `{"id":"m","debtor":"d","amount":"1","band":{"type":"weekly","width":9,"anchor_day":5}}`},
		{"fixed day width", `{"id":"m","debtor":"d","amount":"1","band":{"type":"fixed_day","width":32,"anchor_day":5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/mandates", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateMandate_ExistingIDConflicts(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, calendarMandate)

	rec := ts.do(t, http.MethodPost, "/api/mandates", `{"id":"m-cal","debtor":"other","amount":"999",
		"band":{"type":"fixed_day","width":27,"anchor_day":5}}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[MandateDTO](t, rec)
	assert.Equal(t, "calendar_days", string(got.Band.Type))
	assert.Equal(t, "Association des Amis", got.Debtor)
}

func TestCreateMandate_GeneratesID(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createMandate(t, `{"debtor":"d","amount":"5","currency":"usd",
		"band":{"type":"working_days_five","width":7,"anchor_day":5}}`)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "USD", created.Currency)
}

// =============================================================================
// RESOLUTION
// =============================================================================

func TestNextWithdrawal(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, calendarMandate)

	// GIVEN: calendar band of 9 days anchored on the 5th
	// WHEN: resolved on 2018-12-26 (gap 10) and 2018-12-27 (gap 9)
	// THEN: the first keeps January, the second rolls to February
	rec := ts.do(t, http.MethodGet, "/api/mandates/m-cal/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[ResolutionDTO](t, rec)
	assert.Equal(t, "2019-01-05", res.Date)
	assert.Equal(t, "2018-12-26", res.Reference)
	assert.Equal(t, 10, res.Gap)
	assert.False(t, res.Rolled)

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal/next?today=2018-12-27", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[ResolutionDTO](t, rec)
	assert.Equal(t, "2019-02-05", res.Date)
	assert.Equal(t, "2019-01-05", res.Candidate)
	assert.True(t, res.Rolled)
	assert.Equal(t, string(band.RuleGapWithinBand), res.Rule)

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal/next?today=27-12-2018", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/mandates/missing/next", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpcoming(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, calendarMandate)

	rec := ts.do(t, http.MethodGet, "/api/mandates/m-cal/upcoming?count=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	up := decode[UpcomingDTO](t, rec)
	assert.Equal(t, "m-cal", up.MandateID)
	assert.Equal(t, []string{"2019-01-05", "2019-02-05", "2019-03-05"}, up.Dates)

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal/upcoming", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[UpcomingDTO](t, rec).Dates, DefaultUpcomingCount)

	for _, count := range []string{"0", "-1", "abc", "121"} {
		rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal/upcoming?count="+count, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "count=%s", count)
	}
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

func TestScheduleWithdrawal(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, calendarMandate)

	rec := ts.do(t, http.MethodPost, "/api/mandates/m-cal/withdrawals", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[WithdrawalDTO](t, rec)
	assert.Equal(t, "2019-01-05", first.Date)
	assert.Equal(t, "25.50", first.Amount)
	assert.Equal(t, "EUR", first.Currency)

	// Same reference day resolves to the same date: the first record is returned
	rec = ts.do(t, http.MethodPost, "/api/mandates/m-cal/withdrawals", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first.ID, decode[WithdrawalDTO](t, rec).ID)

	rec = ts.do(t, http.MethodPost, "/api/mandates/m-cal/withdrawals?today=2018-12-27", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2019-02-05", decode[WithdrawalDTO](t, rec).Date)

	rec = ts.do(t, http.MethodGet, "/api/mandates/m-cal/withdrawals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]WithdrawalDTO](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "2019-01-05", history[0].Date)
	assert.Equal(t, "2019-02-05", history[1].Date)
}

func TestScheduleWithdrawal_InactiveMandate(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, `{"id":"m-off","debtor":"d","amount":"1","active":false,
		"band":{"type":"calendar_days","width":9,"anchor_day":5}}`)

	rec := ts.do(t, http.MethodPost, "/api/mandates/m-off/withdrawals", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/mandates/missing/withdrawals", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDueWithdrawals(t *testing.T) {
	ts := newTestServer(t)
	ts.createMandate(t, calendarMandate)

	rec := ts.do(t, http.MethodPost, "/api/mandates/m-cal/withdrawals", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Default window is the next 31 days from the clock
	rec = ts.do(t, http.MethodGet, "/api/withdrawals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]WithdrawalDTO](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/withdrawals?from=2019-02-01&to=2019-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]WithdrawalDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/withdrawals?from=2019-02-01&to=2019-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestTriggerScheduler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scheduler/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	sched, err := NewWithdrawalScheduler(ts.store, ts.handler.Service, DefaultSchedule)
	require.NoError(t, err)

	// A disabled scheduler is never exposed
	sched.Enabled = false
	ts.handler.AttachScheduler(sched)
	assert.Nil(t, ts.handler.Scheduler)
	rec = ts.do(t, http.MethodPost, "/api/scheduler/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	sched.Enabled = true
	ts.handler.AttachScheduler(sched)
	ts.createMandate(t, calendarMandate)

	rec = ts.do(t, http.MethodPost, "/api/scheduler/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[SchedulerRunDTO](t, rec)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, "2018-12-26", run.ReferenceDate)
	assert.Equal(t, 1, run.Scheduled)

	rec = ts.do(t, http.MethodGet, "/api/scheduler/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]SchedulerRunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.NotEmpty(t, runs[0].CompletedAt)
}
