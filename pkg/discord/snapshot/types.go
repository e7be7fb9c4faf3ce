// Package snapshot holds the persisted shapes of Discord entities and the explicit
// mapping between them and live discordgo objects. Snapshots never alias live handles.
package snapshot

// CachedUserProfile is the single stored record for the session's own user.
type CachedUserProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// CachedGuild is one entry of the stored guild collection.
type CachedGuild struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// CachedMessage is a point-in-time copy of a message.
type CachedMessage struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channelId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName,omitempty"`
	Content    string `json:"content"`
	// CreatedTimestamp is Unix milliseconds.
	CreatedTimestamp int64              `json:"createdTimestamp"`
	Embeds           []CachedEmbed      `json:"embeds"`
	Attachments      []CachedAttachment `json:"attachments"`
}

type CachedEmbed struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
	Image       *CachedImage  `json:"image,omitempty"`
	Fields      []CachedField `json:"fields"`
}

type CachedImage struct {
	URL string `json:"url"`
}

type CachedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CachedAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ThreadSummary is an active forum thread shown in place of messages.
type ThreadSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	OwnerID          string `json:"ownerId"`
	CreatedTimestamp int64  `json:"createdTimestamp"`
}

// LastMessageIndex maps a conversation id to its most recent known message.
type LastMessageIndex map[string]CachedMessage
