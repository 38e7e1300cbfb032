package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// GuildUpdateStatus tells the registration service whether a guild was just
// joined or is being refreshed.
type GuildUpdateStatus string

const (
	GuildJoin               GuildUpdateStatus = "JOIN"
	GuildUpdateStatusUpdate GuildUpdateStatus = "UPDATE"
)

// GuildChannel is a channel reference in a guild update.
type GuildChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildCategory is a channel category and the channels under it.
type GuildCategory struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Channels []GuildChannel `json:"channels"`
}

// GuildRole is a role reference in a guild update.
type GuildRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildUpdate is the guild metadata posted on join and on periodic refresh.
type GuildUpdate struct {
	Status        GuildUpdateStatus `json:"status"`
	GuildID       string            `json:"guild_id"`
	GuildName     string            `json:"guild_name,omitempty"`
	OwnerName     string            `json:"owner_name,omitempty"`
	OwnerID       string            `json:"owner_id,omitempty"`
	MemberCount   *int              `json:"member_count,omitempty"`
	Categories    []GuildCategory   `json:"categories"`
	Channels      []GuildChannel    `json:"channels"`
	Roles         []GuildRole       `json:"roles"`
	JumpURL       string            `json:"jump_url,omitempty"`
	Large         bool              `json:"large"`
	IconURL       string            `json:"icon_url,omitempty"`
	DefaultRoleID string            `json:"default_role_id,omitempty"`
	GuildBirthday *time.Time        `json:"guild_birthday,omitempty"`
}

func (u GuildUpdate) normalized() GuildUpdate {
	if u.Categories == nil {
		u.Categories = []GuildCategory{}
	}
	for i := range u.Categories {
		if u.Categories[i].Channels == nil {
			u.Categories[i].Channels = []GuildChannel{}
		}
	}
	if u.Channels == nil {
		u.Channels = []GuildChannel{}
	}
	if u.Roles == nil {
		u.Roles = []GuildRole{}
	}
	if u.GuildBirthday != nil {
		t := u.GuildBirthday.UTC()
		u.GuildBirthday = &t
	}
	return u
}

// Validate checks the payload against the shape the registration service accepts.
func (u GuildUpdate) Validate() error {
	data, err := json.Marshal(u.normalized())
	if err != nil {
		return &SchemaValidationError{Reason: "marshal guild update", Err: err}
	}
	_, err = guildUpdateDocument.Decode(data)
	return err
}

// GuildUpdateResponse is the registration service's answer to a guild update.
type GuildUpdateResponse struct {
	Status       bool `json:"status"`
	GuildCreated bool `json:"guild_created"`
	ClubCreated  bool `json:"club_created"`
}

func decodeGuildUpdateResponse(body []byte) (*GuildUpdateResponse, error) {
	if _, err := guildUpdateResponseDocument.Decode(body); err != nil {
		return nil, err
	}
	var resp GuildUpdateResponse
	if err := unmarshalField("", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostGuildUpdate sends guild metadata to the registration service.
func (c *Client) PostGuildUpdate(ctx context.Context, update GuildUpdate) (res GuildUpdateResult) {
	ctx, span := c.startSpan(ctx, "registration.PostGuildUpdate",
		attribute.String("discord.guild_id", update.GuildID),
		attribute.String("registration.guild_status", string(update.Status)),
	)
	res = GuildUpdateResult{GuildID: update.GuildID}
	defer func() {
		if r := recover(); r != nil {
			res.Envelope = failure(http.StatusInternalServerError, MessageGuildFailed, FailureUnknown, fmt.Errorf("panic: %v", r))
			res.Response = nil
		}
		c.logOutcome(ctx, "post_guild_update", res.Envelope,
			slog.String("guild_id", update.GuildID),
			slog.String("guild_name", update.GuildName),
			slog.String("status", string(update.Status)),
		)
		endSpan(span, res.Envelope)
	}()

	update = update.normalized()
	if err := update.Validate(); err != nil {
		res.Envelope = failure(http.StatusUnprocessableEntity, MessageGuildInvalid, FailureInvalidRequest, err)
		return res
	}

	a := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/guild/join_update/",
		body:    update,
		timeout: c.cfg.GuildPostTimeout,
	})
	switch {
	case !a.delivered():
		res.Envelope = failure(transportStatus(a.failure), MessageGuildFailed, a.failure, a.err)
	case a.status != http.StatusOK:
		res.Envelope = remoteReported(a.status, string(a.body))
	default:
		resp, err := decodeGuildUpdateResponse(a.body)
		if err != nil {
			res.Envelope = failure(http.StatusUnprocessableEntity, MessageGuildContract, FailureRemoteContract,
				&RemoteContractError{Op: "post_guild_update", Err: err})
			return res
		}
		res.Envelope, res.Response = success(), resp
	}
	return res
}
