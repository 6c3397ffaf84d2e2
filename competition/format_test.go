package competition

import (
	"strings"
	"testing"
	"time"
)

func TestFormatErrorMessage(t *testing.T) {
	media := []MediaItem{{FileID: "f1", Kind: KindPhoto, SentAt: time.Now()}}

	cases := []struct {
		name  string
		draft string
		media []MediaItem
		want  string
	}{
		{"both missing", "", nil, "Please, give your creation a name 🍪 and add some pictures 🖼️"},
		{"name missing", "", media, "Please, give your creation a name 🍪"},
		{"media missing", "Ginger Fortress", nil, "Please, add some pictures 🖼️"},
		{"valid", "Ginger Fortress", media, ""},
	}
	for _, tc := range cases {
		if got := FormatErrorMessage(tc.draft, tc.media); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatCaptionOmitsAbsentFields(t *testing.T) {
	if got := FormatCaption("", "", nil); got != "" {
		t.Fatalf("empty entry: got %q, want empty", got)
	}

	got := FormatCaption("House", "", nil)
	if got != "*House*\n" {
		t.Fatalf("name only: got %q", got)
	}
	if strings.Contains(got, "_") {
		t.Fatalf("name-only caption must not carry a description line: %q", got)
	}

	got = FormatCaption("", "Made of rye", nil)
	if got != "_Made of rye_\n" {
		t.Fatalf("description only: got %q", got)
	}
}

func TestFormatCaptionAttribution(t *testing.T) {
	u := &User{Username: "baker", FirstName: "Berta"}
	if got := FormatCaption("House", "", u); got != "*House* by @baker\n" {
		t.Fatalf("username attribution: got %q", got)
	}

	u = &User{FirstName: "Berta"}
	if got := FormatCaption("House", "", u); got != "*House* by Berta\n" {
		t.Fatalf("first-name attribution: got %q", got)
	}

	u = &User{}
	if got := FormatCaption("House", "", u); got != "*House*\n" {
		t.Fatalf("no attribution source: got %q", got)
	}
}

func TestFormatCaptionEscapesMarkdown(t *testing.T) {
	got := FormatCaption("a*b_c", "", nil)
	if !strings.Contains(got, `a\*b\_c`) {
		t.Fatalf("markdown specials not escaped: %q", got)
	}
}

func TestFormatMediaList(t *testing.T) {
	if got := FormatMediaList(nil, "caption"); got != nil {
		t.Fatalf("empty media: got %v, want nil", got)
	}

	media := []MediaItem{
		{FileID: "f1", Kind: KindPhoto},
		{FileID: "f2", Kind: KindVideo},
	}
	refs := FormatMediaList(media, "caption")
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	if refs[0].Caption != "caption" {
		t.Errorf("first ref caption: got %q", refs[0].Caption)
	}
	if refs[1].Caption != "" {
		t.Errorf("second ref caption: got %q, want empty", refs[1].Caption)
	}
	if refs[0].Kind != KindPhoto || refs[1].Kind != KindVideo {
		t.Errorf("kinds not preserved: %v", refs)
	}
}
