package session

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/errutil"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// Error messages
const (
	ErrSessionCreationFailed   = "failed to create Discord session: %w"
	ErrSessionConnectionFailed = "failed to connect to Discord: %w"
)

// Intents requests what the cache needs: guild metadata plus guild and DM message events.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentMessageContent

var (
	newSession   = discordgo.New
	openSession  = func(s *discordgo.Session) error { return s.Open() }
	closeSession = func(s *discordgo.Session) error { return s.Close() }
)

// NewDiscordSession creates an unopened session. Bot tokens get the "Bot " prefix.
func NewDiscordSession(token string, bot bool) (*discordgo.Session, error) {
	if token == "" {
		log.ErrorLoggerRaw().Error("Discord token is empty; set DISCORDDECK_TOKEN")
		return nil, fmt.Errorf("discord token is empty")
	}

	auth := token
	if bot {
		auth = "Bot " + token
	}

	var s *discordgo.Session
	if err := errutil.HandleDiscordError("create_session", func() error {
		var sessionErr error
		s, sessionErr = newSession(auth)
		return sessionErr
	}); err != nil {
		return nil, fmt.Errorf(ErrSessionCreationFailed, err)
	}

	s.Identify.Intents = Intents
	log.DiscordLogger().Info("Discord session created", "bot", bot)
	return s, nil
}

// Connect creates a session, wires a Live adapter to it and opens the gateway.
// The adapter is attached before opening so the Ready event is never missed.
func Connect(token string, bot bool) (*Live, error) {
	s, err := NewDiscordSession(token, bot)
	if err != nil {
		return nil, err
	}
	live := NewLive(s)

	log.DiscordLogger().Info("Connecting to Discord...")
	if err := errutil.HandleDiscordError("connect", func() error {
		return openSession(s)
	}); err != nil {
		live.detach()
		if closeErr := closeSession(s); closeErr != nil {
			log.DiscordLogger().Warn("Failed to close session after connect error", "error", closeErr)
		}
		return nil, fmt.Errorf(ErrSessionConnectionFailed, err)
	}

	log.DiscordLogger().Info("Connected to Discord")
	return live, nil
}
