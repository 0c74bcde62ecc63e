package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server, err := NewServer(Config{Scanner: defaultScanner()})
	require.NoError(t, err)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{
			name:           "GET request success",
			method:         "GET",
			expectedStatus: http.StatusOK,
			checkResponse:  true,
		},
		{
			name:           "POST request not allowed",
			method:         "POST",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.NotEmpty(t, response.Version)
				assert.Equal(t, 0, response.Sessions)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_SessionsHandler(t *testing.T) {
	_, ts := newTestServer(t, nil)
	_, hello := dialScan(t, ts)

	resp, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body SessionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, hello.SessionID, body.Sessions[0]["id"])
	assert.Equal(t, "continuous", body.Sessions[0]["scan_mode"])
}

func TestServer_MetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	dialScan(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "codescan_websocket_active_connections")
	assert.Contains(t, string(data), "codescan_active_sessions")
}

func TestServer_CloseRejectsNewSessions(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	require.NoError(t, srv.Close())

	conn, resp, err := websocketDial(ts)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	msg := readMessage(t, conn)
	assert.Equal(t, msgError, msg.Type)
	assert.Equal(t, "session_error", msg.ErrorType)
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := &Server{}
	w := httptest.NewRecorder()

	server.writeErrorResponse(w, "nope", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "nope", body.Error)
}
