package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scanops/console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/", Token: "secret"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_ScanStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/scans/scan-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "running", "progress": 42})
	})

	status, err := client.ScanStatus(context.Background(), "scan-1")

	require.NoError(t, err)
	assert.Equal(t, "scan-1", status.ID)
	assert.Equal(t, domain.ScanStatusRunning, status.Status)
	assert.Equal(t, 42, status.Progress)
}

func TestClient_LogsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/logs", r.URL.Path)
		assert.Equal(t, "ws-1", r.URL.Query().Get("workspace_id"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, domain.LogPage{
			Logs:  []domain.HistoricalLog{{Message: "hello", Level: "INFO"}},
			Total: 1,
		})
	})

	page, err := client.Logs(context.Background(), "ws-1", 2, 100)

	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, "hello", page.Logs[0].Message)
}

func TestClient_CancelAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/scans/cancel-all", r.URL.Path)
		assert.Equal(t, "ws-1", r.URL.Query().Get("workspace_id"))
		writeJSON(w, http.StatusOK, domain.CancelAllResult{Cancelled: 2, Total: 2, CancelledIDs: []string{"a", "b"}})
	})

	res, err := client.CancelAll(context.Background(), "ws-1")

	require.NoError(t, err)
	assert.Equal(t, 2, res.Cancelled)
	assert.Equal(t, []string{"a", "b"}, res.CancelledIDs)
}

func TestClient_PreviewFillsCommandString(t *testing.T) {
	tool := domain.Tool{Name: "nmap", PreviewPath: "/api/v1/scans/nmap/preview", StartPath: "/api/v1/scans/nmap/start"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tool.PreviewPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "10.0.0.1", body["target"])
		writeJSON(w, http.StatusOK, map[string]interface{}{"command": []string{"nmap", "-sV", "10.0.0.1"}})
	})

	params := map[string]interface{}{"target": "10.0.0.1"}
	preview, err := client.Preview(context.Background(), tool, params)

	require.NoError(t, err)
	assert.Equal(t, "nmap -sV 10.0.0.1", preview.CommandString)
	assert.Equal(t, params, preview.Parameters)
}

func TestClient_Execute(t *testing.T) {
	tool := domain.Tool{Name: "nmap", PreviewPath: "/p", StartPath: "/api/v1/scans/nmap/start"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tool.StartPath, r.URL.Path)
		writeJSON(w, http.StatusAccepted, domain.ExecuteResponse{ScanID: "scan-7", Status: "queued"})
	})

	res, err := client.Execute(context.Background(), tool, map[string]interface{}{"target": "x"})

	require.NoError(t, err)
	assert.Equal(t, "scan-7", res.ScanID)
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"detail string", map[string]interface{}{"detail": "Scan not found"}, "Scan not found"},
		{"detail list", map[string]interface{}{"detail": []map[string]interface{}{{"msg": "target required"}, {"msg": "bad port"}}}, "target required; bad port"},
		{"error key", map[string]interface{}{"error": "boom"}, "boom"},
		{"no message", map[string]interface{}{"ok": false}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnprocessableEntity, tt.body)
			})

			_, err := client.CancelScan(context.Background(), "scan-1")

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.UserMessage())
		})
	}
}

func TestClient_PlainTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})

	_, err := client.RunningScans(context.Background(), "ws")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "gateway down", apiErr.Message)
}

func TestClient_NetworkError(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := client.ScanStatus(context.Background(), "scan-1")

	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
