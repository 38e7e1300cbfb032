package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/id-gotta-bike/gottabike-bot/internal/registration"
)

// ColorBlue is the embed accent color.
const ColorBlue = 0x3498db

// Message is an interaction reply: plain content, embeds and components.
type Message struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// WebhookEdit converts m into the edit that completes a deferred interaction.
func (m Message) WebhookEdit() *discordgo.WebhookEdit {
	content := Truncate(m.Content, MaxMessageLength)
	embeds := m.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := m.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

// Text is a content-only message.
func Text(content string) Message {
	return Message{Content: content}
}

// LookupSubject describes who was looked up, as given to the lookup command.
type LookupSubject struct {
	MemberMention string
	MemberRoles   []string
	ZwiftID       *int64
}

// LookupMessage renders an athlete lookup result. Failures render as their
// status message only.
func LookupMessage(subject LookupSubject, res registration.AthleteLookupResult, now time.Time) Message {
	if !res.OK() {
		return Text(res.StatusMessage)
	}
	return Message{Embeds: []*discordgo.MessageEmbed{ProfileEmbed(subject, res, now)}}
}

// ProfileEmbed builds the profile card for a successful lookup.
func ProfileEmbed(subject LookupSubject, res registration.AthleteLookupResult, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "Profile",
		Color:     ColorBlue,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	add := func(name, value string, inline bool) {
		embed.Fields = append(embed.Fields, field(name, value, inline))
	}

	if subject.MemberMention != "" {
		add("Discord", subject.MemberMention, true)
	}
	if subject.ZwiftID != nil {
		add("Zwift ID", formatID(subject.ZwiftID), true)
	}

	if a := res.Athlete; a != nil {
		add("Name", a.Name(), true)
		add("Zwift", formatID(a.ZwiftID), true)
		add("Zwiftpower", zwiftPowerURL(a.ZwiftID), true)
		add("Strava", stravaURL(a.StravaID), true)
		if verified, ok := a.ZwiftVerified(); ok {
			add("Zwift Verified", strconv.FormatBool(verified), true)
		} else {
			add("Zwift Status", "Not Verified", true)
		}
	}

	if s := res.Stats; s != nil {
		add("Category", s.Category, true)
		add("FTP", formatFloat(s.FTP), true)
		add("CP", formatFloat(s.CP), true)
		add("AWC", formatFloat(s.AWC), true)
		add("Compound Score", formatFloat(s.CompoundScore), true)
		add("Power Rating", formatFloat(s.PowerRating), true)
		add("Handicaps", FormatHandicaps(s), true)
		add("Phenotype", FormatPhenotype(s), true)
	}

	if subject.MemberMention != "" {
		add("Roles", registration.RoleListLiteral(subject.MemberRoles), false)
	}
	return embed
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{
		Name:   Truncate(orPlaceholder(name), MaxEmbedFieldName),
		Value:  Truncate(orPlaceholder(value), MaxEmbedFieldValue),
		Inline: inline,
	}
}

func zwiftPowerURL(id *int64) string {
	if id == nil {
		return placeholder
	}
	return "https://zwiftpower.com/profile.php?z=" + strconv.FormatInt(*id, 10)
}

func stravaURL(id *int64) string {
	if id == nil {
		return placeholder
	}
	return "https://www.strava.com/athletes/" + strconv.FormatInt(*id, 10)
}

type linkCopy struct {
	title       string
	description string
	button      string
}

var linkCopies = map[registration.LinkKind]linkCopy{
	registration.LinkProfile: {
		title:       "My Profile",
		description: "Click the button below to create or edit your profile",
		button:      "Manage Profile",
	},
	registration.LinkRegistrationStatus: {
		title:       "Registration Status",
		description: "Click the button below to check your registration status",
		button:      "View Status",
	},
}

// MagicLinkMessage renders a magic link result: an embed with a link button on
// success, an error line with the remote status otherwise.
func MagicLinkMessage(res registration.MagicLinkResult) Message {
	if !res.OK() || res.Link == nil {
		return Text(fmt.Sprintf("❌ Error getting %s link: CODE:%s_1: %s: status_code:%d",
			linkNoun(res.Kind), res.Kind, res.StatusMessage, res.StatusCode))
	}
	text, ok := linkCopies[res.Kind]
	if !ok {
		text = linkCopy{title: "Gotta.Bike", description: "Click the button below to continue", button: "Open"}
	}
	embed := &discordgo.MessageEmbed{
		Title:       text.title,
		Description: text.description,
		Color:       ColorBlue,
		Fields: []*discordgo.MessageEmbedField{
			field("Link Expires", fmt.Sprintf("<t:%d:R>", res.Link.ExpiresAt.Unix()), false),
		},
	}
	return Message{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: text.button, Style: discordgo.LinkButton, URL: res.Link.URL},
			}},
		},
	}
}

func linkNoun(kind registration.LinkKind) string {
	switch kind {
	case registration.LinkProfile:
		return "profile"
	case registration.LinkRegistrationStatus:
		return "registration status"
	default:
		return strings.ReplaceAll(string(kind), "_", " ")
	}
}

// Info is the content of the bot info command.
type Info struct {
	UserName    string
	GuildName   string
	GuildID     string
	Environment string
	SourceURL   string
	ContactURL  string
	APIOutcome  string
}

// InfoMessage renders the bot info reply.
func InfoMessage(info Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, %s, This is the ID Discord Gotta Bike Bot!\n", info.UserName)
	if info.SourceURL != "" {
		fmt.Fprintf(&b, "The source code is available at %s\n", info.SourceURL)
	}
	if info.GuildID != "" {
		fmt.Fprintf(&b, "You're running this on %s: %s Guild/Server\n", info.GuildName, info.GuildID)
	}
	fmt.Fprintf(&b, "This is the %s environment\n", orPlaceholder(info.Environment))
	if info.ContactURL != "" {
		fmt.Fprintf(&b, "If you have questions or issues, DM me at %s\n", info.ContactURL)
	}
	fmt.Fprintf(&b, "API server test response: %s\n", info.APIOutcome)
	return b.String()
}

// HelpMessage renders the help reply.
func HelpMessage(helpURL string) string {
	return "Need help with the Gotta.Bike Bot? Check out our help page: " + helpURL
}
