package teamwork

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

	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/rbac"
)

type stubAPI struct {
	projects []Project
	listErr  error

	loggedProject string
	loggedEntry   TimeEntry
	logErr        error
}

func (s *stubAPI) ListProjects(context.Context) ([]Project, error) {
	return s.projects, s.listErr
}

func (s *stubAPI) LogTime(_ context.Context, projectID string, entry TimeEntry) error {
	s.loggedProject = projectID
	s.loggedEntry = entry
	return s.logErr
}

func newStubHandler(api *stubAPI) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, api, rbac.Middleware{})
}

func TestListProjectsResponds(t *testing.T) {
	api := &stubAPI{projects: []Project{{ID: "101", Name: "Harbour Web Design"}}}
	handler := newStubHandler(api)

	rr := httptest.NewRecorder()
	handler.listProjects(rr, httptest.NewRequest(http.MethodGet, "/integrations/teamwork/projects", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Projects []Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Projects, 1)
	require.Equal(t, "Harbour Web Design", resp.Projects[0].Name)
}

func TestListProjectsUpstreamFailure(t *testing.T) {
	api := &stubAPI{listErr: errors.New("boom")}
	handler := newStubHandler(api)

	rr := httptest.NewRecorder()
	handler.listProjects(rr, httptest.NewRequest(http.MethodGet, "/integrations/teamwork/projects", nil))
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestLogTimeForwardsEntry(t *testing.T) {
	api := &stubAPI{}
	handler := newStubHandler(api)

	body := `{"project_id":"101","description":"January payroll run","date":"20240131","hours":1,"minutes":30,"is_billable":true}`
	rr := httptest.NewRecorder()
	handler.logTime(rr, httptest.NewRequest(http.MethodPost, "/integrations/teamwork/time", strings.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, "101", api.loggedProject)
	require.Equal(t, "January payroll run", api.loggedEntry.Description)
	require.Equal(t, 30, api.loggedEntry.Minutes)
	require.True(t, api.loggedEntry.IsBillable)
}

func TestLogTimeRejectsBadDate(t *testing.T) {
	api := &stubAPI{}
	handler := newStubHandler(api)

	body := `{"project_id":"101","description":"January payroll run","date":"2024-01-31"}`
	rr := httptest.NewRecorder()
	handler.logTime(rr, httptest.NewRequest(http.MethodPost, "/integrations/teamwork/time", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, api.loggedProject)
}
