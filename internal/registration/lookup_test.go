package registration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
)

const lookupPayload = `{
  "cyclist": {
    "first_name": "Vincent",
    "last_name": "Davis",
    "usac_id": 123456,
    "uci_id": null,
    "zwift_id": 2233445,
    "strava_id": null,
    "discord_id": "588793677317537811",
    "ids": {"zwift_verified": true},
    "created": "2024-05-01T10:00:00+02:00",
    "modified": "2024-05-02T08:30:00Z",
    "team": "Gotta.Bike"
  },
  "zracing": {
    "uuid": "5f0c6d7e-8f3a-4b7e-9a51-1d2c3b4a5e6f",
    "riderId": 2233445,
    "name": "Vincent Davis",
    "zpCategory": "B",
    "zpFTP": 281.5,
    "handicaps": {"profile": {"flat": 120.456, "rolling": 98.1, "hilly": 77, "mountainous": 50.005}},
    "phenotype": {"value": "Pursuiter", "bias": "Climber", "scores": {"sprinter": 88.04, "puncheur": 91.25, "pursuiter": 93.5, "climber": 90, "tt": 89.96}},
    "created": "2024-05-01T10:00:00",
    "modified": "2024-05-01T10:00:00.123456"
  }
}`

func TestLookupAthleteSendsIdentifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		id   AthleteIdentifier
		want string
	}{
		{name: "discord", id: ByDiscordUser("588793677317537811"), want: "discord_id=588793677317537811"},
		{name: "zwift", id: ByZwiftID(2233445), want: "zwift_id=2233445"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/cyclists", r.URL.Path)
				assert.Equal(t, tc.want, r.URL.RawQuery)
				assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(lookupPayload))
			})

			res := client.LookupAthlete(context.Background(), tc.id)
			require.NoError(t, res.Valid())
			require.True(t, res.OK(), "cause: %v", res.Cause)
			assert.Equal(t, MessageOK, res.StatusMessage)
			require.NotNil(t, res.Athlete)
			require.NotNil(t, res.Stats)
			assert.Equal(t, "Vincent Davis", res.Athlete.Name())
			assert.Equal(t, "588793677317537811", res.Athlete.DiscordID)
			assert.Equal(t, int64(2233445), res.Stats.RiderID)
		})
	}
}

func TestLookupAthleteOptionalParts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		wantAthlete bool
		wantStats   bool
	}{
		{name: "empty object", body: `{}`},
		{name: "athlete only", body: `{"athlete": {"first_name": "A", "last_name": "B", "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantAthlete: true},
		{name: "nulls", body: `{"cyclist": null, "zracing": null}`},
		{name: "stats only", body: `{"zracing": {"riderId": 1, "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantStats: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			res := client.LookupAthlete(context.Background(), ByZwiftID(1))
			require.NoError(t, res.Valid())
			require.True(t, res.OK(), "cause: %v", res.Cause)
			assert.Equal(t, tc.wantAthlete, res.Athlete != nil)
			assert.Equal(t, tc.wantStats, res.Stats != nil)
		})
	}
}

func TestLookupAthleteRemoteErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "detail", status: http.StatusNotFound, body: `{"detail": "not found"}`, wantMessage: "not found"},
		{name: "non json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMessage: MessageRemoteUnknown},
		{name: "structured detail", status: http.StatusUnprocessableEntity, body: `{"detail": [{"loc": ["query"], "msg": "field required"}]}`, wantMessage: MessageRemoteUnknown},
		{name: "empty body", status: http.StatusForbidden, body: ``, wantMessage: MessageRemoteUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			res := client.LookupAthlete(context.Background(), ByDiscordUser("588793677317537811"))
			require.NoError(t, res.Valid())
			assert.Equal(t, tc.status, res.StatusCode)
			assert.Equal(t, tc.wantMessage, res.StatusMessage)
			assert.Equal(t, FailureRemoteReported, res.Failure)
			assert.Nil(t, res.Athlete)
			assert.Nil(t, res.Stats)
		})
	}
}

func TestLookupAthleteInvalidPayload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		body     string
		wantPath string
	}{
		{name: "malformed json", body: `{"cyclist": `},
		{name: "array", body: `[]`},
		{name: "missing first name", body: `{"cyclist": {"last_name": "B", "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantPath: "cyclist.first_name"},
		{name: "bad discord id", body: `{"cyclist": {"first_name": "A", "last_name": "B", "discord_id": "12ab", "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantPath: "cyclist.discord_id"},
		{name: "bad rider id", body: `{"zracing": {"riderId": "x", "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantPath: "zracing.riderId"},
		{name: "bad timestamp", body: `{"zracing": {"riderId": 1, "created": "yesterday", "modified": "2024-01-01T00:00:00Z"}}`, wantPath: "zracing.created"},
		{name: "bad uuid", body: `{"zracing": {"uuid": "nope", "riderId": 1, "created": "2024-01-01T00:00:00Z", "modified": "2024-01-01T00:00:00Z"}}`, wantPath: "zracing.uuid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			res := client.LookupAthlete(context.Background(), ByZwiftID(1))
			require.NoError(t, res.Valid())
			assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
			assert.Equal(t, MessageLookupInvalid, res.StatusMessage)
			assert.Equal(t, FailureRemoteContract, res.Failure)
			assert.Nil(t, res.Athlete)
			assert.Nil(t, res.Stats)

			var contractErr *RemoteContractError
			require.ErrorAs(t, res.Cause, &contractErr)
			if tc.wantPath != "" {
				var schemaErr *SchemaValidationError
				require.ErrorAs(t, res.Cause, &schemaErr)
				assert.Equal(t, tc.wantPath, schemaErr.Path)
			}
		})
	}
}

func TestLookupAthleteTimeout(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, blockingHandler, func(cfg *Config) {
		cfg.LookupTimeout = 50 * time.Millisecond
	})
	start := time.Now()
	res := client.LookupAthlete(context.Background(), ByDiscordUser("588793677317537811"))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusGatewayTimeout, res.StatusCode)
	assert.Equal(t, "Request timed out while looking up the cyclist.", res.StatusMessage)
	assert.Equal(t, FailureTimeout, res.Failure)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLookupAthleteProtocolError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, truncatedBodyHandler(t))
	res := client.LookupAthlete(context.Background(), ByZwiftID(7))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, MessageLookupProtocol, res.StatusMessage)
	assert.Equal(t, FailureProtocol, res.Failure)
}

func TestLookupAthleteDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	var elsewhere atomic.Int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		elsewhere.Add(1)
		_, _ = w.Write([]byte(lookupPayload))
	}))
	t.Cleanup(other.Close)

	var origin atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		origin.Add(1)
		http.Redirect(w, r, other.URL+"/cyclists?zwift_id=1", http.StatusFound)
	})
	res := client.LookupAthlete(context.Background(), ByZwiftID(1))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, FailureRemoteReported, res.Failure)
	assert.Nil(t, res.Athlete)
	assert.Equal(t, int32(1), origin.Load())
	assert.Zero(t, elsewhere.Load())
}

func TestLookupAthleteOversizedBody(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", maxBodyBytes+1)))
	})
	res := client.LookupAthlete(context.Background(), ByZwiftID(7))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, MessageLookupProtocol, res.StatusMessage)
	assert.Equal(t, FailureProtocol, res.Failure)
	require.ErrorIs(t, res.Cause, errBodyTooLarge)
}

func TestLookupAthleteTransportError(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, Config{BaseURL: closedServerURL(t)})
	res := client.LookupAthlete(context.Background(), ByZwiftID(7))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, MessageLookupTransport, res.StatusMessage)
	assert.Equal(t, FailureTransport, res.Failure)

	var transportErr *TransportError
	require.ErrorAs(t, res.Cause, &transportErr)
	assert.Equal(t, FailureTransport, transportErr.Kind)
}

func TestLookupAthleteCanceledContext(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, blockingHandler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := client.LookupAthlete(ctx, ByZwiftID(7))
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, MessageLookupUnexpected, res.StatusMessage)
	assert.True(t, errors.Is(res.Cause, context.Canceled))
}

func TestLookupAthleteNilIdentifier(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, Config{BaseURL: "http://127.0.0.1:1"})
	res := client.LookupAthlete(context.Background(), nil)
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, MessageLookupUnexpected, res.StatusMessage)
}

func TestExtractDetail(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"detail": "User not registered"}`: "User not registered",
		`{"detail": "   "}`:                 MessageRemoteUnknown,
		`{"detail": 42}`:                    MessageRemoteUnknown,
		`{"error": "x"}`:                    MessageRemoteUnknown,
		`not json`:                          MessageRemoteUnknown,
		``:                                  MessageRemoteUnknown,
	}
	for body, want := range cases {
		if got := extractDetail([]byte(body)); got != want {
			t.Fatalf("extractDetail(%q) = %q, want %q", body, got, want)
		}
	}
}

func TestLookupAthleteLogsWithCallerLogger(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Cyclist not found"}`))
	})
	var buf bytes.Buffer
	scoped := slog.New(slog.NewTextHandler(&buf, nil)).With(slog.String("command", "lookup_athlete"), slog.String("guild_id", "42"))
	ctx := logger.WithContext(context.Background(), scoped)

	res := client.LookupAthlete(ctx, ByZwiftID(9))
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	line := buf.String()
	assert.Contains(t, line, "command=lookup_athlete")
	assert.Contains(t, line, "guild_id=42")
	assert.Contains(t, line, "op=lookup_athlete")
	assert.Contains(t, line, "status_code=404")
}
