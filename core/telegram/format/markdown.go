package format

import "strings"

// markdownV1Escaper escapes the characters Telegram treats specially in
// legacy Markdown captions and messages.
var markdownV1Escaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"[", `\[`,
	"`", "\\`",
)

// EscapeMarkdown escapes user-supplied text for embedding into a Markdown
// formatted message without breaking the surrounding entities.
func EscapeMarkdown(text string) string {
	if text == "" {
		return text
	}
	return markdownV1Escaper.Replace(text)
}
