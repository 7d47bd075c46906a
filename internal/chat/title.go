package chat

const maxTitleLength = 40

// TruncateTitle shortens a room title derived from the first message: text
// longer than 40 characters is cut to 40 and suffixed with "...".
func TruncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleLength {
		return s
	}
	return string(r[:maxTitleLength]) + "..."
}
