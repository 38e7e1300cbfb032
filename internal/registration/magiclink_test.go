package registration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMagicLinkRequest() MagicLinkRequest {
	return MagicLinkRequest{
		DiscordID:   "588793677317537811",
		DiscordName: "Vincent Davis",
		GuildID:     "1092837465019283746",
		GuildName:   "Gotta Bike",
		GuildAdmin:  true,
		GuildRoles:  []string{"Admin", "Member"},
	}
}

func TestMagicLinkURL(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, Config{BaseURL: "https://api.example.com/"})
	cases := []struct {
		name string
		kind LinkKind
		req  MagicLinkRequest
		want string
	}{
		{
			name: "profile",
			kind: LinkProfile,
			req:  testMagicLinkRequest(),
			want: "https://api.example.com/my_profile_link/588793677317537811" +
				"?discord_name=Vincent%20Davis&guild_id=1092837465019283746&guild_name=Gotta%20Bike" +
				"&guild_admin=True&guild_roles=%5B%27Admin%27%2C%20%27Member%27%5D",
		},
		{
			name: "registration status without roles",
			kind: LinkRegistrationStatus,
			req:  MagicLinkRequest{DiscordID: "588793677317537811", DiscordName: "vd", GuildID: "1", GuildName: "G&B"},
			want: "https://api.example.com/cyclists/registration_status" +
				"?discord_name=vd&guild_id=1&guild_name=G%26B&guild_admin=False&guild_roles=%5B%5D",
		},
		{
			name: "slash in role and guild name",
			kind: LinkRegistrationStatus,
			req: MagicLinkRequest{
				DiscordID: "588793677317537811", DiscordName: "vd", GuildID: "1", GuildName: "A/B Racing",
				GuildRoles: []string{"Ride/Lead"},
			},
			want: "https://api.example.com/cyclists/registration_status" +
				"?discord_name=vd&guild_id=1&guild_name=A/B%20Racing&guild_admin=False&guild_roles=%5B%27Ride/Lead%27%5D",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := client.MagicLinkURL(tc.kind, tc.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("url mismatch:\n got %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestRoleListLiteral(t *testing.T) {
	t.Parallel()

	cases := []struct {
		roles []string
		want  string
	}{
		{roles: nil, want: "[]"},
		{roles: []string{}, want: "[]"},
		{roles: []string{"@everyone"}, want: "['@everyone']"},
		{roles: []string{"Admin", "Member"}, want: "['Admin', 'Member']"},
		{roles: []string{"Rider's Club"}, want: `["Rider's Club"]`},
		{roles: []string{`it's "B"`}, want: `['it\'s "B"']`},
		{roles: []string{`back\slash`}, want: `['back\\slash']`},
	}
	for _, tc := range cases {
		if got := RoleListLiteral(tc.roles); got != tc.want {
			t.Fatalf("RoleListLiteral(%q) = %s, want %s", tc.roles, got, tc.want)
		}
	}
}

func TestIssueMagicLinkSuccess(t *testing.T) {
	t.Parallel()

	body := `{"uuid": "5f0c6d7e-8f3a-4b7e-9a51-1d2c3b4a5e6f", "expires_at": "2024-06-01T12:00:00+02:00", "url": "https://gotta.bike/m/abc"}`
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/my_profile_link/588793677317537811", r.URL.Path)
		assert.Equal(t, "['Admin', 'Member']", r.URL.Query().Get("guild_roles"))
		assert.Equal(t, "Vincent Davis", r.URL.Query().Get("discord_name"))
		assert.Equal(t, "True", r.URL.Query().Get("guild_admin"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(body))
	})

	res, err := client.IssueMagicLink(context.Background(), LinkProfile, testMagicLinkRequest())
	require.NoError(t, err)
	require.NoError(t, res.Valid())
	require.True(t, res.OK(), "cause: %v", res.Cause)
	assert.Equal(t, body, res.StatusMessage)
	require.NotNil(t, res.Link)
	assert.Equal(t, "https://gotta.bike/m/abc", res.Link.URL)
	assert.True(t, res.Link.ExpiresAt.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, res.Link.ExpiresAt.Location())
	require.NotNil(t, res.Link.ID)
	assert.Equal(t, "5f0c6d7e-8f3a-4b7e-9a51-1d2c3b4a5e6f", res.Link.ID.String())
	assert.Equal(t, LinkProfile, res.Kind)
	assert.Equal(t, "1092837465019283746", res.GuildID)
}

func TestIssueMagicLinkRemoteDeclined(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`You are not registered yet. Use /register first.`))
	})
	res, err := client.IssueMagicLink(context.Background(), LinkRegistrationStatus, testMagicLinkRequest())
	require.NoError(t, err)
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "You are not registered yet. Use /register first.", res.StatusMessage)
	assert.Equal(t, FailureRemoteReported, res.Failure)
	assert.Nil(t, res.Link)
}

func TestIssueMagicLinkEmptyDeclineUsesStatusText(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	res, err := client.IssueMagicLink(context.Background(), LinkProfile, testMagicLinkRequest())
	require.NoError(t, err)
	require.NoError(t, res.Valid())
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Forbidden", res.StatusMessage)
}

func TestIssueMagicLinkContractViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		body     string
		wantPath string
	}{
		{name: "missing url", body: `{"expires_at": "2024-06-01T12:00:00Z"}`, wantPath: "url"},
		{name: "empty url", body: `{"expires_at": "2024-06-01T12:00:00Z", "url": ""}`, wantPath: "url"},
		{name: "bad expiry", body: `{"expires_at": "soon", "url": "https://x"}`, wantPath: "expires_at"},
		{name: "zero expiry", body: `{"expires_at": "0001-01-01T00:00:00Z", "url": "https://x"}`, wantPath: "expires_at"},
		{name: "not json", body: `ok`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			res, err := client.IssueMagicLink(context.Background(), LinkProfile, testMagicLinkRequest())
			require.NoError(t, err)
			require.NoError(t, res.Valid())
			assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
			assert.Equal(t, MessageMagicLinkContract, res.StatusMessage)
			assert.Equal(t, FailureRemoteContract, res.Failure)
			assert.Nil(t, res.Link)

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

func TestIssueMagicLinkTransportFaults(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		client := NewClient(nil, Config{BaseURL: closedServerURL(t)})
		res, err := client.IssueMagicLink(context.Background(), LinkProfile, testMagicLinkRequest())
		require.NoError(t, err)
		require.NoError(t, res.Valid())
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, MessageMagicLinkFailed, res.StatusMessage)
		assert.Equal(t, FailureTransport, res.Failure)
	})

	t.Run("deadline", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, blockingHandler, func(cfg *Config) {
			cfg.MagicLinkTimeout = 50 * time.Millisecond
		})
		res, err := client.IssueMagicLink(context.Background(), LinkProfile, testMagicLinkRequest())
		require.NoError(t, err)
		require.NoError(t, res.Valid())
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, MessageMagicLinkFailed, res.StatusMessage)
		assert.Equal(t, FailureTimeout, res.Failure)
	})
}

func TestIssueMagicLinkUnknownKind(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.IssueMagicLink(context.Background(), LinkKind("club_admin"), testMagicLinkRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLinkKind))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, LinkKind("club_admin"), cfgErr.Kind)

	_, err = client.MagicLinkURL(LinkKind(""), testMagicLinkRequest())
	assert.ErrorIs(t, err, ErrUnknownLinkKind)
}
