package competition

import (
	"strings"

	tgformat "github.com/shmeleva/TiKGingerbreadBot/core/telegram/format"
)

func formatCaptionLine(text, tag, attribution string) string {
	if text == "" {
		return ""
	}
	return tag + tgformat.EscapeMarkdown(text) + tag + attribution + "\n"
}

// FormatCaption renders a draft or submission as Markdown: the name
// emphasized on its own line, the description de-emphasized on the next.
// Absent fields emit no line at all. When a user is given and carries a
// username or first name, the name line gets a " by ..." attribution.
func FormatCaption(name, description string, user *User) string {
	attribution := ""
	if user != nil {
		author := ""
		switch {
		case user.Username != "":
			author = "@" + user.Username
		case user.FirstName != "":
			author = user.FirstName
		}
		if author != "" {
			attribution = " by " + tgformat.EscapeMarkdown(author)
		}
	}
	return formatCaptionLine(name, "*", attribution) + formatCaptionLine(description, "_", "")
}

// FormatMediaList maps media items to transport-ready references with
// the caption attached to the first element only. It returns nil, not an
// empty slice, when there is no media, so callers can distinguish
// "nothing to send" from an empty send.
func FormatMediaList(media []MediaItem, caption string) []MediaRef {
	if len(media) == 0 {
		return nil
	}
	refs := make([]MediaRef, 0, len(media))
	for i, m := range media {
		ref := MediaRef{Kind: m.Kind, FileID: m.FileID}
		if i == 0 {
			ref.Caption = caption
		}
		refs = append(refs, ref)
	}
	return refs
}

// FormatErrorMessage is the single validation authority used before both
// review display and submit. It returns "" iff the draft has a name and
// at least one current media item.
func FormatErrorMessage(name string, media []MediaItem) string {
	var missing []string
	if name == "" {
		missing = append(missing, "give your creation a name 🍪")
	}
	if len(media) == 0 {
		missing = append(missing, "add some pictures 🖼️")
	}
	if len(missing) == 0 {
		return ""
	}
	return "Please, " + strings.Join(missing, " and ")
}
