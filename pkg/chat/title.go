package chat

// titleMaxLen is the number of characters of the first user message kept as
// the conversation title.
const titleMaxLen = 30

// TitleFromMessage derives a conversation title from the first user message:
// the first 30 characters, with an ellipsis suffix when truncated.
func TitleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxLen {
		return message
	}
	return string(runes[:titleMaxLen]) + "..."
}
