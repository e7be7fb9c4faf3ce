package cache

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// LiveSession is the subset of a connected Discord client the cache drives.
// Implementations must be safe for concurrent use.
type LiveSession interface {
	// Ready blocks until the session finished its handshake or ctx is done.
	Ready(ctx context.Context) error
	IsReady() bool
	// OnMessageCreate registers fn for every pushed message. The returned func detaches it.
	OnMessageCreate(fn func(*discordgo.Message)) (release func())

	CurrentUser(ctx context.Context) (*discordgo.User, error)
	Guilds(ctx context.Context) ([]*discordgo.Guild, error)
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	DirectMessageChannels(ctx context.Context) ([]*discordgo.Channel, error)
	// ChannelMessages returns up to limit messages newest first, older than beforeID when set.
	ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	// GuildChannels lists every channel of the guild, categories included.
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	// ActiveThreads lists active threads under channelID, or every active thread of the
	// guild when channelID is empty.
	ActiveThreads(ctx context.Context, guildID, channelID string) ([]*discordgo.Channel, error)
	SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error)
}
