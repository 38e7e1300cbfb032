package render

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

func testStats() *registration.RacingStats {
	ftp := 281.5
	return &registration.RacingStats{
		RiderID:  2233445,
		Category: "B",
		FTP:      &ftp,
		Handicaps: map[string]any{
			"profile": map[string]any{"flat": 120.4567, "rolling": 98.1, "hilly": 77.0, "mountainous": 50.004},
		},
		Phenotype: map[string]any{
			"value":  "Pursuiter",
			"bias":   "Climber",
			"scores": map[string]any{"sprinter": 88.04, "puncheur": 91.26, "pursuiter": 93.5, "climber": 90.0, "tt": 89.94},
		},
	}
}

func TestFormatHandicaps(t *testing.T) {
	t.Parallel()

	got := FormatHandicaps(testStats())
	want := "Flat: 120.46\nRolling: 98.10\nHilly: 77.00\nMountainous: 50.00"
	if got != want {
		t.Fatalf("FormatHandicaps() = %q, want %q", got, want)
	}

	partial := &registration.RacingStats{Handicaps: map[string]any{"profile": map[string]any{"hilly": 3.333}}}
	if got := FormatHandicaps(partial); got != "Flat: 0.00\nRolling: 0.00\nHilly: 3.33\nMountainous: 0.00" {
		t.Fatalf("unexpected partial handicaps %q", got)
	}
}

func TestFormatHandicapsMissing(t *testing.T) {
	t.Parallel()

	for _, stats := range []*registration.RacingStats{nil, {}, {Handicaps: map[string]any{"profile": nil}}} {
		if got := FormatHandicaps(stats); got != "No handicap record" {
			t.Fatalf("FormatHandicaps(%+v) = %q", stats, got)
		}
	}
}

func TestFormatPhenotype(t *testing.T) {
	t.Parallel()

	got := FormatPhenotype(testStats())
	want := "Type: Pursuiter: Climber \nSprinter: 88.0\nPuncheur: 91.3\nPursuiter: 93.5\nClimber: 90.0\nTime Trial: 89.9"
	if got != want {
		t.Fatalf("FormatPhenotype() = %q, want %q", got, want)
	}

	unlabeled := &registration.RacingStats{Phenotype: map[string]any{"scores": map[string]any{}}}
	if got := FormatPhenotype(unlabeled); !strings.HasPrefix(got, "Type: _: _ \n") {
		t.Fatalf("unexpected unlabeled phenotype %q", got)
	}
	if got := FormatPhenotype(nil); got != "No phenotype" {
		t.Fatalf("FormatPhenotype(nil) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "short", limit: 10, want: "short"},
		{in: "abcdefghij", limit: 8, want: "abcde..."},
		{in: "ééééé", limit: 4, want: "é..."},
		{in: "abc", limit: 2, want: "ab"},
		{in: "abc", limit: 0, want: ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestLookupMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	zwiftID := int64(2233445)
	res := registration.AthleteLookupResult{
		Envelope: registration.Envelope{StatusCode: http.StatusOK, StatusMessage: registration.MessageOK},
		Athlete: &registration.Athlete{
			FirstName: "Vincent",
			LastName:  "Davis",
			ZwiftID:   &zwiftID,
			IDs:       map[string]any{"zwift_verified": true},
		},
		Stats: testStats(),
	}
	msg := LookupMessage(LookupSubject{MemberMention: "<@588793677317537811>", MemberRoles: []string{"Admin"}}, res, now)
	require.Len(t, msg.Embeds, 1)
	embed := msg.Embeds[0]
	assert.Equal(t, "Profile", embed.Title)
	assert.Equal(t, "2024-06-01T12:00:00Z", embed.Timestamp)

	fields := map[string]string{}
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
		assert.NotEmpty(t, f.Value, "field %s", f.Name)
	}
	assert.Equal(t, "<@588793677317537811>", fields["Discord"])
	assert.Equal(t, "Vincent Davis", fields["Name"])
	assert.Equal(t, "https://zwiftpower.com/profile.php?z=2233445", fields["Zwiftpower"])
	assert.Equal(t, "_", fields["Strava"])
	assert.Equal(t, "true", fields["Zwift Verified"])
	assert.Equal(t, "281.5", fields["FTP"])
	assert.Equal(t, "_", fields["CP"])
	assert.Equal(t, "['Admin']", fields["Roles"])
	assert.Contains(t, fields["Handicaps"], "Flat: 120.46")

	last := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "Roles", last.Name)
	assert.False(t, last.Inline)
}

func TestLookupMessageFailure(t *testing.T) {
	t.Parallel()

	res := registration.AthleteLookupResult{
		Envelope: registration.Envelope{
			StatusCode:    http.StatusGatewayTimeout,
			StatusMessage: registration.MessageLookupTimeout,
			Failure:       registration.FailureTimeout,
		},
	}
	msg := LookupMessage(LookupSubject{}, res, time.Now())
	assert.Equal(t, registration.MessageLookupTimeout, msg.Content)
	assert.Empty(t, msg.Embeds)
}

func TestLookupMessageUnverified(t *testing.T) {
	t.Parallel()

	zwiftID := int64(7)
	res := registration.AthleteLookupResult{
		Envelope: registration.Envelope{StatusCode: http.StatusOK, StatusMessage: registration.MessageOK},
		Athlete:  &registration.Athlete{FirstName: "A"},
	}
	msg := LookupMessage(LookupSubject{ZwiftID: &zwiftID}, res, time.Now())
	require.Len(t, msg.Embeds, 1)
	names := make([]string, 0, len(msg.Embeds[0].Fields))
	for _, f := range msg.Embeds[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Zwift ID", "Name", "Zwift", "Zwiftpower", "Strava", "Zwift Status"}, names)
}

func TestMagicLinkMessage(t *testing.T) {
	t.Parallel()

	res := registration.MagicLinkResult{
		Envelope: registration.Envelope{StatusCode: http.StatusOK, StatusMessage: registration.MessageOK},
		Kind:     registration.LinkProfile,
		Link: &registration.MagicLink{
			URL:       "https://gotta.bike/m/abc",
			ExpiresAt: time.Unix(1717236000, 0).UTC(),
		},
	}
	msg := MagicLinkMessage(res)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "My Profile", msg.Embeds[0].Title)
	assert.Equal(t, "<t:1717236000:R>", msg.Embeds[0].Fields[0].Value)

	require.Len(t, msg.Components, 1)
	row, ok := msg.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	button, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "Manage Profile", button.Label)
	assert.Equal(t, discordgo.LinkButton, button.Style)
	assert.Equal(t, "https://gotta.bike/m/abc", button.URL)
}

func TestMagicLinkMessageFailure(t *testing.T) {
	t.Parallel()

	res := registration.MagicLinkResult{
		Envelope: registration.Envelope{
			StatusCode:    http.StatusNotFound,
			StatusMessage: "not registered",
			Failure:       registration.FailureRemoteReported,
		},
		Kind: registration.LinkProfile,
	}
	msg := MagicLinkMessage(res)
	assert.Equal(t, "❌ Error getting profile link: CODE:my_profile_1: not registered: status_code:404", msg.Content)
	assert.Empty(t, msg.Components)
}

func TestWebhookEdit(t *testing.T) {
	t.Parallel()

	edit := Text(strings.Repeat("x", 2500)).WebhookEdit()
	require.NotNil(t, edit.Content)
	assert.Len(t, *edit.Content, MaxMessageLength)
	require.NotNil(t, edit.Embeds)
	assert.Empty(t, *edit.Embeds)
	require.NotNil(t, edit.Components)
	assert.Empty(t, *edit.Components)
}

func TestInfoAndHelpMessages(t *testing.T) {
	t.Parallel()

	info := InfoMessage(Info{
		UserName:    "vincent",
		GuildName:   "Gotta Bike",
		GuildID:     "1092837465019283746",
		Environment: "production",
		APIOutcome:  registration.CheckPassed,
	})
	assert.Contains(t, info, "Hello, vincent,")
	assert.Contains(t, info, "Gotta Bike: 1092837465019283746 Guild/Server")
	assert.Contains(t, info, "This is the production environment")
	assert.True(t, strings.HasSuffix(info, "API server test response: PASSED\n"))

	assert.Equal(t,
		"Need help with the Gotta.Bike Bot? Check out our help page: https://example.com/help",
		HelpMessage("https://example.com/help"))
}
