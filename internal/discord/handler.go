// Package discord runs the Gotta.Bike bot on a Discord gateway session.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/id-gotta-bike/gottabike-bot/internal/guildsync"
	"github.com/id-gotta-bike/gottabike-bot/internal/logger"
	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
	"github.com/id-gotta-bike/gottabike-bot/internal/render"
)

// Replies for malformed command invocations.
const (
	MessageLookupNeedsSubject = "You must provide either a Discord user or a Zwift ID number."
	MessageLookupBothSubjects = "You must provide either a Discord user OR a Zwift ID number, not both."
	MessageGuildOnly          = "This command can only be used in a server."
	MessageUnknownCommand     = "Unknown command."
	MessageCommandFailed      = "An unexpected error occurred while handling the command."
)

// Session is the part of the Discord REST API the handler calls.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Directory resolves guild data from the gateway cache.
type Directory interface {
	Guild(guildID string) (*discordgo.Guild, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	Member(guildID, userID string) (*discordgo.Member, error)
}

// RegistrationService is the registration client as used by commands.
type RegistrationService interface {
	IssueMagicLink(ctx context.Context, kind registration.LinkKind, req registration.MagicLinkRequest) (registration.MagicLinkResult, error)
	LookupAthlete(ctx context.Context, id registration.AthleteIdentifier) registration.AthleteLookupResult
	CheckAPI(ctx context.Context) registration.APICheckResult
}

// GuildJoiner reports a newly joined guild to the registration service.
type GuildJoiner interface {
	Join(ctx context.Context, guild *discordgo.Guild, ownerName string) registration.GuildUpdateResult
}

// Handler answers interactions and gateway events.
type Handler struct {
	cfg          Config
	logger       *slog.Logger
	registration RegistrationService
	guilds       GuildJoiner
	now          func() time.Time

	mu    sync.Mutex
	known map[string]struct{}
}

// NewHandler creates a handler. guilds may be nil to disable join reports.
func NewHandler(log *slog.Logger, cfg Config, svc RegistrationService, guilds GuildJoiner) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:          cfg.withDefaults(),
		logger:       log.With(slog.String("component", "discord")),
		registration: svc,
		guilds:       guilds,
		now:          time.Now,
		known:        map[string]struct{}{},
	}
}

// OnReady records the guilds the bot already belongs to.
func (h *Handler) OnReady(r *discordgo.Ready) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range r.Guilds {
		if g != nil {
			h.known[g.ID] = struct{}{}
		}
	}
	user := ""
	if r.User != nil {
		user = r.User.String()
	}
	h.logger.Info("bot is ready", slog.String("user", user), slog.Int("guilds", len(r.Guilds)))
}

// OnGuildCreate reports guilds that were not part of the ready payload as joins.
func (h *Handler) OnGuildCreate(ctx context.Context, dir Directory, g *discordgo.Guild) {
	if g == nil {
		return
	}
	g = detachGuild(dir, g)
	if g.Unavailable {
		return
	}
	h.mu.Lock()
	_, seen := h.known[g.ID]
	h.known[g.ID] = struct{}{}
	h.mu.Unlock()
	if seen || h.guilds == nil {
		return
	}

	h.logger.Info("joined guild", slog.String("guild_id", g.ID), slog.String("guild_name", g.Name))
	res := h.guilds.Join(ctx, g, ownerName(dir, g))
	if !res.OK() {
		h.logger.Warn("guild join report failed",
			slog.String("guild_id", g.ID),
			slog.Int("status_code", res.StatusCode),
			slog.String("status_message", res.StatusMessage),
		)
	}
}

// OnMemberJoin sends the welcome DM.
func (h *Handler) OnMemberJoin(s Session, m *discordgo.Member) {
	if m == nil || m.User == nil || m.User.Bot || h.cfg.WelcomeMessage == "" {
		return
	}
	log := h.logger.With(slog.String("guild_id", m.GuildID), slog.String("user_id", m.User.ID))
	log.Info("member joined")
	ch, err := s.UserChannelCreate(m.User.ID)
	if err != nil {
		log.Warn("open dm channel failed", slog.Any("error", err))
		return
	}
	if _, err := s.ChannelMessageSend(ch.ID, h.cfg.WelcomeMessage); err != nil {
		log.Warn("send welcome failed", slog.Any("error", err))
	}
}

// OnInteraction defers the reply, runs the command and edits the deferred
// reply with the result.
func (h *Handler) OnInteraction(ctx context.Context, s Session, dir Directory, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	log := h.logger.With(
		slog.String("command", data.Name),
		slog.String("guild_id", i.GuildID),
		slog.String("user_id", invoker(i.Interaction).ID),
	)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error("defer interaction failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(ctx, log), h.cfg.InteractionTimeout)
	defer cancel()

	msg := h.dispatch(ctx, dir, i.Interaction, data)
	if _, err := s.InteractionResponseEdit(i.Interaction, msg.WebhookEdit()); err != nil {
		log.Error("edit interaction response failed", slog.Any("error", err))
	}
}

func (h *Handler) dispatch(ctx context.Context, dir Directory, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) (msg render.Message) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("command panicked", slog.Any("panic", r))
			msg = render.Text(MessageCommandFailed)
		}
	}()

	switch data.Name {
	case CommandLookupAthlete:
		return h.lookupAthlete(ctx, dir, i, data)
	case CommandMyProfile:
		return h.magicLink(ctx, dir, i, registration.LinkProfile)
	case CommandRegistrationStatus:
		return h.magicLink(ctx, dir, i, registration.LinkRegistrationStatus)
	case CommandHelp:
		log.Info("sent help link")
		return render.Text(render.HelpMessage(h.cfg.HelpURL))
	case CommandInfo:
		return h.info(ctx, dir, i)
	default:
		log.Warn("unknown command")
		return render.Text(MessageUnknownCommand)
	}
}

func (h *Handler) lookupAthlete(ctx context.Context, dir Directory, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) render.Message {
	log := logger.FromContext(ctx)
	var (
		userID  string
		zwiftID *int64
	)
	for _, opt := range data.Options {
		switch opt.Name {
		case optionMember:
			userID = opt.UserValue(nil).ID
		case optionZwiftID:
			v := opt.IntValue()
			zwiftID = &v
		}
	}
	switch {
	case userID == "" && zwiftID == nil:
		return render.Text(MessageLookupNeedsSubject)
	case userID != "" && zwiftID != nil:
		return render.Text(MessageLookupBothSubjects)
	}

	subject := render.LookupSubject{ZwiftID: zwiftID}
	var id registration.AthleteIdentifier
	if userID != "" {
		id = registration.ByDiscordUser(userID)
		subject.MemberMention = "<@" + userID + ">"
		subject.MemberRoles = roleNames(dir, i.GuildID, resolvedMemberRoles(dir, i.GuildID, userID, data.Resolved))
	} else {
		id = registration.ByZwiftID(*zwiftID)
	}

	log.Info("looking up athlete", slog.String("identifier", id.String()))
	res := h.registration.LookupAthlete(ctx, id)
	return render.LookupMessage(subject, res, h.now())
}

func (h *Handler) magicLink(ctx context.Context, dir Directory, i *discordgo.Interaction, kind registration.LinkKind) render.Message {
	log := logger.FromContext(ctx)
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return render.Text(MessageGuildOnly)
	}
	req := registration.MagicLinkRequest{
		DiscordID:   i.Member.User.ID,
		DiscordName: i.Member.User.Username,
		GuildID:     i.GuildID,
		GuildName:   guildName(dir, i.GuildID),
		GuildAdmin:  i.Member.Permissions&discordgo.PermissionAdministrator != 0,
		GuildRoles:  roleNames(dir, i.GuildID, i.Member.Roles),
	}
	res, err := h.registration.IssueMagicLink(ctx, kind, req)
	if err != nil {
		log.Error("magic link kind rejected", slog.Any("error", err))
		return render.Text(fmt.Sprintf("❌ An Unknown error occurred: CODE:%s_3", kind))
	}
	if res.OK() {
		log.Info("sent magic link", slog.Time("expires_at", res.Link.ExpiresAt))
	}
	return render.MagicLinkMessage(res)
}

func (h *Handler) info(ctx context.Context, dir Directory, i *discordgo.Interaction) render.Message {
	log := logger.FromContext(ctx)
	check := h.registration.CheckAPI(ctx)
	log.Info("api check", slog.String("outcome", check.Outcome))
	user := invoker(i)
	name := user.Username
	if name == "" {
		name = user.ID
	}
	return render.Text(render.InfoMessage(render.Info{
		UserName:    name,
		GuildName:   guildName(dir, i.GuildID),
		GuildID:     i.GuildID,
		Environment: h.cfg.Environment,
		SourceURL:   h.cfg.SourceURL,
		ContactURL:  h.cfg.ContactURL,
		APIOutcome:  check.Outcome,
	}))
}

func invoker(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func guildName(dir Directory, guildID string) string {
	if dir == nil || guildID == "" {
		return ""
	}
	g, err := dir.Guild(guildID)
	if err != nil || g == nil {
		return ""
	}
	return g.Name
}

// detachGuild snapshots g, under the cache read lock when dir is the cache.
func detachGuild(dir Directory, g *discordgo.Guild) *discordgo.Guild {
	if l, ok := dir.(interface {
		RLock()
		RUnlock()
	}); ok {
		l.RLock()
		defer l.RUnlock()
	}
	return guildsync.Snapshot(g)
}

func ownerName(dir Directory, g *discordgo.Guild) string {
	if dir == nil || g.OwnerID == "" {
		return ""
	}
	m, err := dir.Member(g.ID, g.OwnerID)
	if err != nil || m == nil || m.User == nil {
		return ""
	}
	return m.User.Username
}

// resolvedMemberRoles returns the role ids of the member picked in a command
// option, from the interaction payload or the cache.
func resolvedMemberRoles(dir Directory, guildID, userID string, resolved *discordgo.ApplicationCommandInteractionDataResolved) []string {
	if resolved != nil {
		if m, ok := resolved.Members[userID]; ok && m != nil {
			return m.Roles
		}
	}
	if dir != nil {
		if m, err := dir.Member(guildID, userID); err == nil && m != nil {
			return m.Roles
		}
	}
	return nil
}

// roleNames lists the member's role names, @everyone included, lowest
// position first. Roles missing from the cache are skipped.
func roleNames(dir Directory, guildID string, roleIDs []string) []string {
	if dir == nil || guildID == "" {
		return nil
	}
	ids := append([]string{guildID}, roleIDs...)
	roles := make([]*discordgo.Role, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		role, err := dir.Role(guildID, id)
		if err != nil || role == nil {
			continue
		}
		roles = append(roles, role)
	}
	sort.SliceStable(roles, func(a, b int) bool { return roles[a].Position < roles[b].Position })
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, strings.TrimSpace(r.Name))
	}
	return names
}
