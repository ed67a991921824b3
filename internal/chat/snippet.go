package chat

import "github.com/npezzotti/roamchat/internal/database"

const (
	snippetMaxLen         = 50
	snippetEllipsis       = "..."
	attachmentPlaceholder = "📷 Image/File"
	noMessagesSnippet     = "No messages yet"
	emptyMessageSnippet   = "Empty message"
)

// truncate shortens s to at most snippetMaxLen runes, ending in an ellipsis
// when it had to cut.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetMaxLen {
		return s
	}

	return string(runes[:snippetMaxLen-len(snippetEllipsis)]) + snippetEllipsis
}

// snippet previews msg for list views. fallback is used when the message has
// neither text nor attachments.
func snippet(msg database.Message, fallback string) string {
	switch {
	case msg.Content != "":
		return truncate(msg.Content)
	case len(msg.Attachments) > 0:
		return attachmentPlaceholder
	default:
		return fallback
	}
}
