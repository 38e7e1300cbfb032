package discord

import "github.com/bwmarrin/discordgo"

// Slash command names.
const (
	CommandLookupAthlete      = "lookup_athlete"
	CommandMyProfile          = "my_profile"
	CommandRegistrationStatus = "registration_status"
	CommandHelp               = "help"
	CommandInfo               = "id_gotta_bike_info"

	optionMember  = "member"
	optionZwiftID = "zwift_id"
)

// Commands returns the application commands the bot registers on ready.
func Commands() []*discordgo.ApplicationCommand {
	guildOnly := &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandLookupAthlete,
			Description: "Look up an athlete by member or Zwift ID",
			Contexts:    guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        optionMember,
					Description: "Select a Discord user",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionZwiftID,
					Description: "Enter a Zwift ID number",
				},
			},
		},
		{
			Name:        CommandMyProfile,
			Description: "Get a link to manage your cyclist profile",
			Contexts:    guildOnly,
		},
		{
			Name:        CommandRegistrationStatus,
			Description: "Get a link to check your registration status",
			Contexts:    guildOnly,
		},
		{
			Name:        CommandHelp,
			Description: "Get help using the Gotta.Bike Bot",
		},
		{
			Name:        CommandInfo,
			Description: "Information about the Gotta.Bike bot and app.gotta.bike",
		},
	}
}
