package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paycycle/paycycle/internal/integrations/storage"
	_ "github.com/paycycle/paycycle/testing"
)

func TestUpload(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		require.Equal(t, "true", r.Header.Get("x-upsert"))
		require.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := storage.NewClient(srv.URL, "payslips", "service-key")
	err := client.Upload(context.Background(), "/2024-01/emp-1.pdf", "application/pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	require.Equal(t, "/storage/v1/object/payslips/2024-01/emp-1.pdf", gotPath)
	require.Equal(t, "pdf-bytes", gotBody)
}

func TestSignedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/storage/v1/object/sign/payslips/2024-01/emp-1.pdf", r.URL.Path)
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/payslips/2024-01/emp-1.pdf?token=abc"}`))
	}))
	defer srv.Close()

	client := storage.NewClient(srv.URL, "payslips", "service-key")
	url, err := client.SignedURL(context.Background(), "2024-01/emp-1.pdf", time.Hour)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/storage/v1/object/sign/payslips/2024-01/emp-1.pdf?token=abc", url)
}

func TestRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/storage/v1/object/payslips/2024-01/emp-1.pdf", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := storage.NewClient(srv.URL, "payslips", "service-key")
	require.NoError(t, client.Remove(context.Background(), "2024-01/emp-1.pdf"))
}
