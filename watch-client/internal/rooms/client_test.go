package rooms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rooms", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"roomId":"r1","hostToken":"h","guestToken":"g","expiresAt":"2030-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	grant, err := NewClient(srv.URL+"/", time.Second).Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", grant.RoomID)
	assert.Equal(t, "h", grant.HostToken)
	assert.Equal(t, 2030, grant.ExpiresAt.Year())
}

func TestCreateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"boom"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Create(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_ERROR")
}
