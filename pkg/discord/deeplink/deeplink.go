// Package deeplink builds discord:// links that open a server, channel, DM, message or
// settings page in the desktop client.
package deeplink

import (
	"fmt"
	"strings"
)

// Scheme is the prefix every deep link starts with.
const Scheme = "discord://"

const base = Scheme + "-/"

// DMGuild is the guild segment used for direct-message links.
const DMGuild = "@me"

// Settings sections accepted by SettingsLink.
const (
	SettingsGeneral       = "general"
	SettingsKeybinds      = "keybinds"
	SettingsVoice         = "voice"
	SettingsNotifications = "notifications"
	SettingsAppearance    = "appearance"
	SettingsAccessibility = "accessibility"
	SettingsPrivacy       = "privacy"
	SettingsAdvanced      = "advanced"
)

// Kind is what a Target points at.
type Kind string

const (
	KindServer  Kind = "server"
	KindChannel Kind = "channel"
	KindDM      Kind = "dm"
)

// Target is the structured identifier set a link was generated from. It is stored next
// to the link so ids never have to be parsed back out of link text.
type Target struct {
	GuildID   string `json:"guildId,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// IsZero reports whether no id is set.
func (t Target) IsZero() bool {
	return t.GuildID == "" && t.ChannelID == "" && t.MessageID == ""
}

// Kind classifies the target. A channel without a guild is a DM.
func (t Target) Kind() Kind {
	switch {
	case t.GuildID != "" && t.ChannelID == "":
		return KindServer
	case t.GuildID == "" || t.GuildID == DMGuild:
		return KindDM
	default:
		return KindChannel
	}
}

// Validate checks that the ids form a linkable combination.
func (t Target) Validate() error {
	t = t.trimmed()
	switch {
	case t.IsZero():
		return fmt.Errorf("target has no ids")
	case t.MessageID != "" && t.ChannelID == "":
		return fmt.Errorf("message id requires a channel id")
	case t.GuildID == "" && t.ChannelID == "":
		return fmt.Errorf("target needs a guild or channel id")
	}
	return nil
}

// Link builds the deep link for the target.
func (t Target) Link() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	t = t.trimmed()
	if t.Kind() == KindServer {
		return ServerLink(t.GuildID), nil
	}
	guild := t.GuildID
	if guild == "" {
		guild = DMGuild
	}
	link := base + "channels/" + guild + "/" + t.ChannelID
	if t.MessageID != "" {
		link += "/" + t.MessageID
	}
	return link, nil
}

func (t Target) trimmed() Target {
	return Target{
		GuildID:   strings.TrimSpace(t.GuildID),
		ChannelID: strings.TrimSpace(t.ChannelID),
		MessageID: strings.TrimSpace(t.MessageID),
	}
}

func ServerLink(guildID string) string {
	return base + "channels/" + guildID
}

func ChannelLink(guildID, channelID string) string {
	return base + "channels/" + guildID + "/" + channelID
}

func DMLink(channelID string) string {
	return base + "channels/" + DMGuild + "/" + channelID
}

func GuildMessageLink(guildID, channelID, messageID string) string {
	return ChannelLink(guildID, channelID) + "/" + messageID
}

func DMMessageLink(channelID, messageID string) string {
	return DMLink(channelID) + "/" + messageID
}

// SettingsLink returns the settings page link. Unknown sections and "general" map to the
// settings root.
func SettingsLink(section string) string {
	switch section {
	case SettingsKeybinds, SettingsVoice, SettingsNotifications, SettingsAppearance,
		SettingsAccessibility, SettingsPrivacy, SettingsAdvanced:
		return base + "settings/" + section
	default:
		return base + "settings"
	}
}

// IsDeepLink reports whether s starts with the discord:// scheme, ignoring case and
// surrounding whitespace. No further structure is checked.
func IsDeepLink(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= len(Scheme) && strings.EqualFold(s[:len(Scheme)], Scheme)
}
