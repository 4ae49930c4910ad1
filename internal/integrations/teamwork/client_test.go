package teamwork_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/integrations/teamwork"
	_ "github.com/paycycle/paycycle/testing"
)

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/projects.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "tw-token", user)
		require.Equal(t, "x", pass)
		_, _ = w.Write([]byte(`{"projects":[{"id":"101","name":"Harbour Web Design"},{"id":"102","name":"Birch & Low"}]}`))
	}))
	defer srv.Close()

	client := teamwork.NewClient(srv.URL, "tw-token")
	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	require.Equal(t, "Harbour Web Design", projects[0].Name)
}

func TestLogTime(t *testing.T) {
	var received map[string]teamwork.TimeEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/projects/101/time_entries.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := teamwork.NewClient(srv.URL, "tw-token")
	err := client.LogTime(context.Background(), "101", teamwork.TimeEntry{
		Description: "January payroll run",
		Date:        "20240131",
		Hours:       1,
		Minutes:     30,
	})
	require.NoError(t, err)
	require.Equal(t, "January payroll run", received["time-entry"].Description)
	require.Equal(t, 30, received["time-entry"].Minutes)
}

func TestErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := teamwork.NewClient(srv.URL, "bad-token")
	_, err := client.ListProjects(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
