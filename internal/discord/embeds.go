package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hunterjsb/animeguess/internal/game"
	"github.com/hunterjsb/animeguess/internal/scores"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	colorStart     = 0x3498db
	colorWon       = 0x2ecc71
	colorWrong     = 0xe74c3c
	colorHint      = 0xf1c40f
	colorExhausted = 0xe67e22
	colorIdle      = 0x95a5a6
	colorBoard     = 0x7289da
)

// startEmbed shows a fresh round (start, replay or character change)
func startEmbed(snap game.Snapshot) *discordgo.MessageEmbed {
	title := "🎲 Guess the Anime Character"
	switch snap.Event {
	case game.EventCharacterChanged:
		title = "🔄 New Character"
	case game.EventReplayed:
		title = fmt.Sprintf("🎲 Guess the Anime Character • Round %d", snap.Round)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("%s, you have %d attempts to guess this character!", mention(snap.PlayerID), game.MaxAttempts),
		Color:       colorStart,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Attempts left", Value: fmt.Sprint(snap.Remaining()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Type your answer in this channel • Skip for a hint • Change for another character",
		},
	}
	setImage(embed, snap.Character)
	return embed
}

// feedbackEmbed answers a wrong guess
func feedbackEmbed(snap game.Snapshot) *discordgo.MessageEmbed {
	value := fmt.Sprintf("`%s` is not the right answer.", sanitize(snap.Guess))
	if snap.Close {
		value += "\n🔥 So close!"
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("❌ Attempt #%d", snap.Attempts),
		Color: colorWrong,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Your answer", Value: value, Inline: false},
			{Name: "Attempts left", Value: fmt.Sprint(snap.Remaining()), Inline: false},
		},
	}
}

// hintEmbed shows a hint with the character picture
func hintEmbed(snap game.Snapshot, hint game.Hint) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("💡 Hint %d/%d", hint.Level, game.MaxHintLevel),
		Description: hint.Text(),
		Color:       colorHint,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Attempts left", Value: fmt.Sprint(hint.Remaining), Inline: true},
		},
	}
	setImage(embed, snap.Character)
	return embed
}

// finalEmbed closes a round. description overrides the default win line.
func finalEmbed(snap game.Snapshot, description string) *discordgo.MessageEmbed {
	answer := fmt.Sprintf("**%s** from *%s*", displayName(snap.Character), snap.Character.Series)

	embed := &discordgo.MessageEmbed{
		Timestamp: snap.EndedAt.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Press Replay to play again"},
	}

	switch snap.Outcome {
	case game.Won:
		embed.Title = "✅ Well done!"
		embed.Color = colorWon
		if description == "" {
			description = fmt.Sprintf("%s, it was indeed %s!", mention(snap.PlayerID), answer)
		} else {
			description = fmt.Sprintf("%s\n\nIt was %s.", description, answer)
		}
		embed.Description = description
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Attempts used", Value: fmt.Sprint(snap.Attempts), Inline: true},
			{Name: "Attempts left", Value: fmt.Sprint(snap.Remaining()), Inline: true},
		}
	case game.Exhausted:
		embed.Title = "🔚 Game over"
		embed.Color = colorExhausted
		embed.Description = fmt.Sprintf("No attempts left.\nThe answer was %s.", answer)
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Attempts used", Value: fmt.Sprint(snap.Attempts), Inline: true},
		}
	case game.Abandoned:
		embed.Title = "🏳️ Round ended"
		embed.Color = colorIdle
		embed.Description = fmt.Sprintf("%s gave up after %d attempt(s).\nThe answer was %s.", mention(snap.PlayerID), snap.Attempts, answer)
	case game.TimedOut:
		embed.Title = "⌛ Time's up"
		embed.Color = colorIdle
		embed.Description = fmt.Sprintf("No answer for a while, the round is over.\nThe answer was %s.", answer)
	}

	if snap.Character.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: snap.Character.ImageURL}
	}
	return embed
}

// leaderboardEmbed formats the top guessers
func leaderboardEmbed(entries []scores.Entry) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🎮 Leaderboard /guess",
		Color: colorBoard,
	}
	if len(entries) == 0 {
		embed.Description = "No data yet."
		return embed
	}

	var lines []string
	for i, e := range entries {
		medal := fmt.Sprintf("**%d.**", i+1)
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		lines = append(lines, fmt.Sprintf("%s %s • %d win%s", medal, mention(e.PlayerID), e.Wins, plural(e.Wins)))
	}
	embed.Description = strings.Join(lines, "\n")
	return embed
}

// helpEmbed explains the game
func helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎲 How to play /guess",
		Color: colorStart,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Rules",
				Value: fmt.Sprintf("Type `/guess` to get a character. You have %d attempts. The given name, the family name or the full name are all accepted.", game.MaxAttempts),
			},
			{
				Name: "Hints",
				Value: fmt.Sprintf("Hints unlock after %d, %d and %d wrong answers. The last one means you are on your final attempt.",
					game.HintThreshold(1), game.HintThreshold(2), game.HintThreshold(3)),
			},
			{
				Name:  "Buttons",
				Value: "**Skip** jumps to the next hint • **Change** draws another character • **End** gives up • **Replay** starts again right after a round.",
			},
			{
				Name:  "Leaderboard",
				Value: "`/classement` shows the best guessers.",
			},
		},
	}
}

// roundButtons are attached to start and hint messages
func roundButtons(snap game.Snapshot) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Skip",
				Style:    discordgo.PrimaryButton,
				CustomID: encodeCustomID(game.ActionSkip, snap),
				Disabled: snap.HintLevel >= game.MaxHintLevel,
				Emoji:    &discordgo.ComponentEmoji{Name: "💡"},
			},
			discordgo.Button{
				Label:    "Change",
				Style:    discordgo.SecondaryButton,
				CustomID: encodeCustomID(game.ActionChange, snap),
				Emoji:    &discordgo.ComponentEmoji{Name: "🔄"},
			},
			discordgo.Button{
				Label:    "End",
				Style:    discordgo.DangerButton,
				CustomID: encodeCustomID(game.ActionAbandon, snap),
				Emoji:    &discordgo.ComponentEmoji{Name: "🏳️"},
			},
		}},
	}
}

// replayButtons are attached to the final message
func replayButtons(snap game.Snapshot) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Replay",
				Style:    discordgo.SuccessButton,
				CustomID: encodeCustomID(game.ActionReplay, snap),
				Emoji:    &discordgo.ComponentEmoji{Name: "🔁"},
			},
		}},
	}
}

func setImage(embed *discordgo.MessageEmbed, c game.Character) {
	if c.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: c.ImageURL}
	}
}

// displayName title-cases names stored in lower case
func displayName(c game.Character) string {
	name := c.FullName()
	if name == strings.ToLower(name) {
		return cases.Title(language.Und).String(name)
	}
	return name
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

// sanitize keeps a guess from breaking out of its code span
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "`", "'")
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100]) + "…"
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
