package closurehttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/payroll"
	"github.com/paycycle/paycycle/internal/payroll/closure"
	"github.com/paycycle/paycycle/internal/rbac"
	"github.com/paycycle/paycycle/internal/shared"
	_ "github.com/paycycle/paycycle/testing"
)

type stubCloseService struct {
	closePeriodsFn func(ctx context.Context, in closure.ClosePeriodsInput) (closure.Summary, error)
}

func (s *stubCloseService) ClosePeriods(ctx context.Context, in closure.ClosePeriodsInput) (closure.Summary, error) {
	if s.closePeriodsFn != nil {
		return s.closePeriodsFn(ctx, in)
	}
	return closure.Summary{}, nil
}

type stubNotifier struct {
	summaries []closure.Summary
	err       error
}

func (s *stubNotifier) ClosureCompleted(_ context.Context, summary closure.Summary) error {
	if s.err != nil {
		return s.err
	}
	s.summaries = append(s.summaries, summary)
	return nil
}

func newTestHandler(t *testing.T, svc *stubCloseService, notifier Notifier) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, rbac.Middleware{}, notifier)
	return handler, sessions
}

func authedRequest(t *testing.T, sessions *shared.SessionManager, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payroll/close", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestClosePeriodsReturnsSummary(t *testing.T) {
	batchID := uuid.New()
	var captured closure.ClosePeriodsInput
	svc := &stubCloseService{
		closePeriodsFn: func(_ context.Context, in closure.ClosePeriodsInput) (closure.Summary, error) {
			captured = in
			return closure.Summary{
				ClosureBatchID:    batchID,
				PeriodEndDates:    in.PeriodEnds,
				TotalRecordsMoved: 5,
				RecordsByPeriod: map[string]int{
					"2024-01-31": 3,
					"2024-02-29": 2,
				},
				ClosedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	notifier := &stubNotifier{}
	handler, sessions := newTestHandler(t, svc, notifier)

	req := authedRequest(t, sessions, `{"period_end_dates":["2024-01-31","2024-02-29"],"notes":"monthly run"}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success bool `json:"success"`
		Summary struct {
			ClosureBatchID    string         `json:"closure_batch_id"`
			TotalRecordsMoved int            `json:"total_records_moved"`
			RecordsByPeriod   map[string]int `json:"records_by_period"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, batchID.String(), resp.Summary.ClosureBatchID)
	require.Equal(t, 5, resp.Summary.TotalRecordsMoved)
	require.Equal(t, 3, resp.Summary.RecordsByPeriod["2024-01-31"])

	require.Len(t, captured.PeriodEnds, 2)
	require.Equal(t, "2024-01-31", captured.PeriodEnds[0].String())
	require.NotNil(t, captured.ActorID)
	require.Equal(t, int64(42), *captured.ActorID)
	require.NotNil(t, captured.Notes)
	require.Equal(t, "monthly run", *captured.Notes)

	require.Len(t, notifier.summaries, 1)
	require.Equal(t, batchID, notifier.summaries[0].ClosureBatchID)
}

func TestClosePeriodsRequiresAuthentication(t *testing.T) {
	handler, sessions := newTestHandler(t, &stubCloseService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/payroll/close", strings.NewReader(`{"period_end_dates":["2024-01-31"]}`))
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClosePeriodsRejectsEmptySelection(t *testing.T) {
	handler, sessions := newTestHandler(t, &stubCloseService{}, nil)

	req := authedRequest(t, sessions, `{"period_end_dates":[]}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClosePeriodsRejectsMalformedDate(t *testing.T) {
	handler, sessions := newTestHandler(t, &stubCloseService{}, nil)

	req := authedRequest(t, sessions, `{"period_end_dates":["31/01/2024"]}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClosePeriodsLockConflict(t *testing.T) {
	svc := &stubCloseService{
		closePeriodsFn: func(_ context.Context, in closure.ClosePeriodsInput) (closure.Summary, error) {
			return closure.Summary{}, &closure.Error{
				PeriodEnd: in.PeriodEnds[0],
				State:     closure.PeriodPending,
				Err:       closure.ErrPeriodLocked,
			}
		},
	}
	handler, sessions := newTestHandler(t, svc, nil)

	req := authedRequest(t, sessions, `{"period_end_dates":["2024-01-31"]}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestClosePeriodsServiceFailure(t *testing.T) {
	period, err := payroll.ParseDate("2024-02-29")
	require.NoError(t, err)
	svc := &stubCloseService{
		closePeriodsFn: func(context.Context, closure.ClosePeriodsInput) (closure.Summary, error) {
			return closure.Summary{}, &closure.Error{
				PeriodEnd: period,
				State:     closure.PeriodFetched,
				Err:       errors.New("archive records: connection reset"),
			}
		},
	}
	handler, sessions := newTestHandler(t, svc, nil)

	req := authedRequest(t, sessions, `{"period_end_dates":["2024-01-31","2024-02-29"]}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "2024-02-29")
}

func TestClosePeriodsNotifierFailureDoesNotFailRequest(t *testing.T) {
	svc := &stubCloseService{
		closePeriodsFn: func(_ context.Context, in closure.ClosePeriodsInput) (closure.Summary, error) {
			return closure.Summary{ClosureBatchID: uuid.New(), PeriodEndDates: in.PeriodEnds}, nil
		},
	}
	notifier := &stubNotifier{err: errors.New("queue unavailable")}
	handler, sessions := newTestHandler(t, svc, notifier)

	req := authedRequest(t, sessions, `{"period_end_dates":["2024-01-31"]}`)
	rr := httptest.NewRecorder()
	handler.closePeriods(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
