package service_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/udovicic/security-scanner-sub004/internal/service"

	"github.com/stretchr/testify/require"
)

func TestNewReportUploader(t *testing.T) {
	t.Parallel()

	auth := model.Auth{Type: model.AuthTypeNone}

	_, err := service.NewReportUploader("http://repo.example.com", auth)
	require.NoError(t, err)

	_, err = service.NewReportUploader("repo.example.com", auth)
	require.Error(t, err, "scheme is required")

	_, err = service.NewReportUploader("http://repo.example.com/some/path", auth)
	require.Error(t, err, "path is not allowed")

	_, err = service.NewReportUploader("http://repo.example.com", model.Auth{Type: model.AuthTypeStaticToken})
	require.Error(t, err, "static_token needs a token")
}

func TestReportUploaderUpload(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "r-1", "version": 1})
	}))
	t.Cleanup(srv.Close)

	u, err := service.NewReportUploader(srv.URL, model.Auth{Type: model.AuthTypeStaticToken, Token: "SECRET"})
	require.NoError(t, err)

	require.NoError(t, u.Upload(t.Context(), []byte(`{"batch":"smoke"}`)))
	require.Equal(t, "Bearer SECRET", gotAuth)
	require.Equal(t, "/api/v1/reports", gotPath)
	require.Equal(t, "application/json", gotContentType)
}

func TestReportUploaderUploadFails(t *testing.T) {
	t.Parallel()

	t.Run("problem detail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"detail": "malformed report"})
		}))
		t.Cleanup(srv.Close)

		u, err := service.NewReportUploader(srv.URL, model.Auth{Type: model.AuthTypeNone})
		require.NoError(t, err)

		err = u.Upload(t.Context(), []byte(`{}`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "malformed report")
	})

	t.Run("unexpected status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}))
		t.Cleanup(srv.Close)

		u, err := service.NewReportUploader(srv.URL, model.Auth{Type: model.AuthTypeNone})
		require.NoError(t, err)

		err = u.Upload(t.Context(), []byte(`{}`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "418")
	})
}
