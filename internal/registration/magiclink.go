package registration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// LinkKind names a magic link operation offered by the registration service.
type LinkKind string

const (
	// LinkProfile links to the requester's profile editor.
	LinkProfile LinkKind = "my_profile"
	// LinkRegistrationStatus links to the registration status page.
	LinkRegistrationStatus LinkKind = "cyclists_reg_status"
)

// LinkKinds lists the supported magic link kinds.
func LinkKinds() []LinkKind {
	return []LinkKind{LinkProfile, LinkRegistrationStatus}
}

func (k LinkKind) path(discordID string) (string, error) {
	switch k {
	case LinkProfile:
		return "/my_profile_link/" + url.PathEscape(discordID), nil
	case LinkRegistrationStatus:
		return "/cyclists/registration_status", nil
	default:
		return "", &ConfigurationError{Kind: k}
	}
}

// MagicLinkRequest identifies who asks for a magic link and from which guild.
type MagicLinkRequest struct {
	DiscordID   string
	DiscordName string
	GuildID     string
	GuildName   string
	GuildAdmin  bool
	// GuildRoles are role names in guild order.
	GuildRoles []string
}

func (r MagicLinkRequest) rawQuery() string {
	params := []struct{ key, value string }{
		{"discord_name", r.DiscordName},
		{"guild_id", r.GuildID},
		{"guild_name", r.GuildName},
		{"guild_admin", adminFlag(r.GuildAdmin)},
		{"guild_roles", RoleListLiteral(r.GuildRoles)},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+"="+percentEncode(p.value))
	}
	return strings.Join(parts, "&")
}

// percentEncode escapes s for a query value, spaces as %20. Slashes are kept
// literal, as the registration service expects.
func percentEncode(s string) string {
	return strings.NewReplacer("+", "%20", "%2F", "/").Replace(url.QueryEscape(s))
}

func adminFlag(admin bool) string {
	if admin {
		return "True"
	}
	return "False"
}

// RoleListLiteral renders role names as a bracketed list of quoted names,
// e.g. ['Admin', 'Member']. The registration service parses this form.
func RoleListLiteral(roles []string) string {
	quoted := make([]string, 0, len(roles))
	for _, role := range roles {
		quoted = append(quoted, quoteRole(role))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func quoteRole(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// MagicLinkURL returns the request URL IssueMagicLink would call.
func (c *Client) MagicLinkURL(kind LinkKind, req MagicLinkRequest) (string, error) {
	path, err := kind.path(req.DiscordID)
	if err != nil {
		return "", err
	}
	return c.endpoint(path, req.rawQuery()), nil
}

// IssueMagicLink asks the registration service for a magic link of the given
// kind. The returned error is non-nil only for an unknown kind; every remote
// outcome is reported through the result.
func (c *Client) IssueMagicLink(ctx context.Context, kind LinkKind, req MagicLinkRequest) (res MagicLinkResult, err error) {
	path, err := kind.path(req.DiscordID)
	if err != nil {
		c.loggerFor(ctx).ErrorContext(ctx, "magic link kind not configured", slog.String("kind", string(kind)))
		return MagicLinkResult{}, err
	}

	ctx, span := c.startSpan(ctx, "registration.IssueMagicLink",
		attribute.String("registration.link_kind", string(kind)),
		attribute.String("discord.guild_id", req.GuildID),
	)
	res = MagicLinkResult{Kind: kind, DiscordID: req.DiscordID, GuildID: req.GuildID, GuildName: req.GuildName}
	defer func() {
		if r := recover(); r != nil {
			res.Envelope = failure(http.StatusInternalServerError, MessageMagicLinkFailed, FailureUnknown, fmt.Errorf("panic: %v", r))
			res.Link = nil
		}
		c.logOutcome(ctx, "issue_magic_link", res.Envelope,
			slog.String("kind", string(kind)),
			slog.String("discord_id", req.DiscordID),
			slog.String("guild_id", req.GuildID),
		)
		endSpan(span, res.Envelope)
	}()

	a := c.do(ctx, request{
		method:   http.MethodGet,
		path:     path,
		rawQuery: req.rawQuery(),
		timeout:  c.cfg.MagicLinkTimeout,
	})
	res.Envelope, res.Link = c.resolveMagicLink(a)
	return res, nil
}

func (c *Client) resolveMagicLink(a attempt) (Envelope, *MagicLink) {
	if !a.delivered() {
		return failure(http.StatusInternalServerError, MessageMagicLinkFailed, a.failure, a.err), nil
	}
	if a.status != http.StatusOK {
		return remoteReported(a.status, string(a.body)), nil
	}
	link, err := decodeMagicLink(a.body)
	if err != nil {
		contractErr := &RemoteContractError{Op: "issue_magic_link", Err: err}
		return failure(http.StatusUnprocessableEntity, MessageMagicLinkContract, FailureRemoteContract, contractErr), nil
	}
	// The raw body is echoed as the status message, as for declined requests.
	env := success()
	env.StatusMessage = string(a.body)
	return env, link
}
