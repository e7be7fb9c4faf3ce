package cache

import "strings"

// Well-known store keys. Message pages are stored one key per conversation.
const (
	KeyUserProfile  = "userProfile"
	KeyGuilds       = "guilds"
	KeyLastMessages = "lastMessages"

	messagesKeyPrefix = "messages:"
)

// MessagesKey returns the store key holding the cached first page of a conversation.
func MessagesKey(conversationID string) string {
	return messagesKeyPrefix + conversationID
}

// ConversationFromKey is the inverse of MessagesKey.
func ConversationFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, messagesKeyPrefix)
	return id, ok && id != ""
}
