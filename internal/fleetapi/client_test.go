package fleetapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rideline/telemetry-service/config"
)

func testClient(baseURL string) *Client {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewClient(&config.FleetAPIConfig{
		BaseURL:   baseURL,
		AccountID: "acct-1",
		SecretKey: "secret",
		Timeout:   5 * time.Second,
	}, log)
}

func tokenHandler(t *testing.T, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "acct-1", creds["accountId"])
		require.Equal(t, "secret", creds["secretKey"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"accessToken": token,
			"tokenType":   "Bearer",
			"expiresIn":   3600,
		})
	}
}

func TestFetchVehicles(t *testing.T) {
	var authCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&authCalls, 1)
		tokenHandler(t, "tok-abc")(w, r)
	})
	mux.HandleFunc("/vehicles/list", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"serialNumber": "TRK-1", "vin": "1HGCM82633A004352"},
				{"serialNumber": "TRK-2"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	vehicles, err := c.FetchVehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	require.Equal(t, "TRK-1", vehicles[0]["serialNumber"])

	// Second fetch reuses the cached token
	_, err = c.FetchVehicles(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&authCalls))
}

func TestFetchDriversPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(t, "tok"))
	mux.HandleFunc("/drivers/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"driverId": "D-1"}},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	drivers, err := c.FetchDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, drivers, 1)
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	var authCalls int64

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&authCalls, 1)
		tokenHandler(t, "tok")(w, r)
	})
	mux.HandleFunc("/vehicles/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)

	_, err := c.FetchVehicles(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	// The 401 dropped the cached token, so a retry re-authenticates
	_, err = c.FetchVehicles(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, int64(2), atomic.LoadInt64(&authCalls))
}

func TestTokenEndpointFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchVehicles(context.Background())
	require.Error(t, err)
}

func TestEmptyTokenRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"accessToken": "", "expiresIn": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchVehicles(context.Background())
	require.Error(t, err)
}

func TestRosterServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", tokenHandler(t, "tok"))
	mux.HandleFunc("/vehicles/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchVehicles(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized)
}
