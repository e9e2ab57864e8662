package diag

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ status Status }

func (f fakeProvider) Status() Status { return f.status }

func TestStatusEndpointServesJSON(t *testing.T) {
	provider := fakeProvider{status: Status{SessionID: "abc", Cols: 80, Rows: 24}}

	srv := New(provider)
	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var got Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "abc", got.SessionID)
}

func TestHealthzReturnsOK(t *testing.T) {
	srv := New(fakeProvider{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
