package competition_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
	"github.com/shmeleva/TiKGingerbreadBot/competition/store"
)

type sentText struct {
	ChatID   int64
	Text     string
	Keyboard [][]string
}

type fakeOutbound struct {
	mu     sync.Mutex
	Texts  []sentText
	Albums [][]competition.MediaRef
}

func (f *fakeOutbound) SendText(_ context.Context, chatID int64, text string, keyboard [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts = append(f.Texts, sentText{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (f *fakeOutbound) SendAlbum(_ context.Context, chatID int64, media []competition.MediaRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Albums = append(f.Albums, media)
	return nil
}

func (f *fakeOutbound) lastText(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Texts) == 0 {
		t.Fatal("no text was sent")
	}
	return f.Texts[len(f.Texts)-1]
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	Captions []string
	Albums   [][]competition.MediaRef
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, caption string, media []competition.MediaRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Captions = append(f.Captions, caption)
	f.Albums = append(f.Albums, media)
}

func newTestDispatcher() (*competition.Dispatcher, *store.Memory, *fakeOutbound, *fakeBroadcaster) {
	mem := store.NewMemory()
	out := &fakeOutbound{}
	bcast := &fakeBroadcaster{}
	return competition.NewDispatcher(mem, out, bcast), mem, out, bcast
}

func text(userID int64, body string) competition.Incoming {
	return competition.Incoming{
		UserID: userID,
		ChatID: userID,
		Kind:   competition.KindText,
		Text:   body,
		SentAt: time.Now(),
	}
}

func photo(userID int64, fileID string, at time.Time) competition.Incoming {
	return competition.Incoming{
		UserID: userID,
		ChatID: userID,
		Kind:   competition.KindPhoto,
		FileID: fileID,
		SentAt: at,
	}
}

func handle(t *testing.T, d *competition.Dispatcher, msgs ...competition.Incoming) {
	t.Helper()
	for _, m := range msgs {
		if err := d.Handle(context.Background(), m); err != nil {
			t.Fatalf("Handle(%+v): %v", m, err)
		}
	}
}

func TestGreetingForNewUser(t *testing.T) {
	d, _, out, _ := newTestDispatcher()
	handle(t, d, text(1, "hello"))

	got := out.lastText(t)
	if !strings.Contains(got.Text, "Hi, cookie!") {
		t.Fatalf("expected greeting, got %q", got.Text)
	}
	if len(got.Keyboard) == 0 || got.Keyboard[0][0] != competition.LabelStartSubmission {
		t.Fatalf("expected start keyboard, got %v", got.Keyboard)
	}
}

func TestEditNameFlow(t *testing.T) {
	d, mem, out, _ := newTestDispatcher()
	handle(t, d, text(1, competition.LabelStartSubmission))

	handle(t, d, text(1, competition.LabelEditName))
	if got := out.lastText(t); got.Text != "OK. Send me the new name for your creation 🙌" {
		t.Fatalf("edit name prompt: got %q", got.Text)
	}

	handle(t, d, text(1, "Ginger Fortress"))
	if got := out.lastText(t); got.Text != "👌 The name is now updated!" {
		t.Fatalf("edit name confirmation: got %q", got.Text)
	}

	draft, ok, err := mem.ReadDraft(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("ReadDraft: ok=%v err=%v", ok, err)
	}
	if draft.Name != "Ginger Fortress" {
		t.Fatalf("draft name: got %q", draft.Name)
	}
}

func TestButtonLabelIsNeverConsumedAsContent(t *testing.T) {
	d, mem, out, _ := newTestDispatcher()
	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelEditName),
		// A label arriving while a name is awaited must execute the
		// command, not become the draft name.
		text(1, competition.LabelEditDescription),
	)

	if got := out.lastText(t); got.Text != "OK. Send me the new description. Keep it short 🙌" {
		t.Fatalf("expected description prompt, got %q", got.Text)
	}
	draft, _, _ := mem.ReadDraft(context.Background(), 1)
	if draft.Name != "" {
		t.Fatalf("label leaked into draft name: %q", draft.Name)
	}
}

func TestPreconditionGatesSubmitAndBack(t *testing.T) {
	d, _, out, bcast := newTestDispatcher()
	handle(t, d, text(1, competition.LabelStartSubmission))

	// Submit without a preceding review is not a command; the user gets
	// the in-progress prompt instead.
	handle(t, d, text(1, competition.LabelSubmit))
	if got := out.lastText(t); !strings.Contains(got.Text, "in progress") {
		t.Fatalf("ungated submit replied %q", got.Text)
	}
	if len(bcast.Captions) != 0 {
		t.Fatal("ungated submit must not broadcast")
	}

	handle(t, d, text(1, competition.LabelBack))
	if got := out.lastText(t); got.Text == "Anything you didn't like? You can still make the changes!" {
		t.Fatal("back fired without a preceding review")
	}
}

func TestReviewInvalidDraftKeepsEditingKeyboard(t *testing.T) {
	d, _, out, _ := newTestDispatcher()
	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelReviewAndSubmit),
	)

	got := out.lastText(t)
	if !strings.Contains(got.Text, "give your creation a name") || !strings.Contains(got.Text, "add some pictures") {
		t.Fatalf("validation text missing: %q", got.Text)
	}
	for _, row := range got.Keyboard {
		for _, label := range row {
			if label == competition.LabelSubmit {
				t.Fatalf("invalid review must not offer submit, got %v", got.Keyboard)
			}
		}
	}
}

func TestMediaBatchReplacesEarlierUploads(t *testing.T) {
	d, mem, _, _ := newTestDispatcher()
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)

	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelUploadPictures),
		photo(1, "old-1", t1),
		text(1, competition.LabelUploadPictures),
		photo(1, "new-1", t2),
		photo(1, "new-2", t2), // rest of the album, same timestamp
	)

	draft, ok, err := mem.ReadDraft(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("ReadDraft: ok=%v err=%v", ok, err)
	}
	if len(draft.Media) != 2 {
		t.Fatalf("current batch size: got %d, want 2", len(draft.Media))
	}
	for _, m := range draft.Media {
		if m.SentAt != t2 {
			t.Fatalf("stale media leaked into current batch: %+v", m)
		}
	}
}

func TestMediaWithoutDraftIsIgnored(t *testing.T) {
	d, mem, _, _ := newTestDispatcher()
	handle(t, d, photo(1, "stray", time.Unix(1000, 0)))

	if _, ok, _ := mem.ReadDraft(context.Background(), 1); ok {
		t.Fatal("a stray photo must not create a draft")
	}
}

func TestSubmitFlow(t *testing.T) {
	d, mem, out, bcast := newTestDispatcher()
	at := time.Unix(3000, 0)
	user := competition.Incoming{
		UserID:   7,
		ChatID:   7,
		Username: "baker",
		Kind:     competition.KindText,
	}

	start := user
	start.Text = competition.LabelStartSubmission
	editName := user
	editName.Text = competition.LabelEditName
	name := user
	name.Text = "Ginger Fortress"
	upload := user
	upload.Text = competition.LabelUploadPictures
	review := user
	review.Text = competition.LabelReviewAndSubmit
	submit := user
	submit.Text = competition.LabelSubmit

	pic := photo(7, "pic-1", at)
	pic.Username = "baker"

	handle(t, d, start, editName, name, upload, pic, review)

	got := out.lastText(t)
	if !strings.Contains(got.Text, "press Submit") {
		t.Fatalf("valid review prompt: got %q", got.Text)
	}
	if len(got.Keyboard) != 1 || got.Keyboard[0][0] != competition.LabelBack || got.Keyboard[0][1] != competition.LabelSubmit {
		t.Fatalf("review keyboard: got %v", got.Keyboard)
	}

	handle(t, d, submit)

	if got := out.lastText(t); got.Text != "Got it! 🎉 Feel free to add another submission 🙌" {
		t.Fatalf("submit confirmation: got %q", got.Text)
	}
	if _, ok, _ := mem.ReadDraft(context.Background(), 7); ok {
		t.Fatal("draft must be cleared after submit")
	}

	subs, err := mem.ListSubmissions(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d submissions, want 1", len(subs))
	}
	if subs[0].Seq != 1 {
		t.Fatalf("seq: got %d, want 1", subs[0].Seq)
	}
	if len(subs[0].Media) != 1 || subs[0].Media[0].FileID != "pic-1" {
		t.Fatalf("submission media snapshot: %+v", subs[0].Media)
	}

	if len(bcast.Captions) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(bcast.Captions))
	}
	if !strings.Contains(bcast.Captions[0], "#1") {
		t.Fatalf("broadcast caption lacks sequence number: %q", bcast.Captions[0])
	}
	if !strings.Contains(bcast.Captions[0], "by @baker") {
		t.Fatalf("broadcast caption lacks attribution: %q", bcast.Captions[0])
	}
	if len(bcast.Albums[0]) != 1 {
		t.Fatalf("broadcast media: %+v", bcast.Albums[0])
	}
}

func TestSubmitRevalidatesStaleState(t *testing.T) {
	d, mem, out, bcast := newTestDispatcher()
	at := time.Unix(3000, 0)

	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelUploadPictures),
		photo(1, "pic", at),
		text(1, competition.LabelReviewAndSubmit),
	)
	// The draft turned invalid between review and submit.
	if err := mem.UpdateDraftName(context.Background(), 1, ""); err != nil {
		t.Fatal(err)
	}

	handle(t, d, text(1, competition.LabelSubmit))
	if got := out.lastText(t); !strings.Contains(got.Text, "give your creation a name") {
		t.Fatalf("stale submit replied %q", got.Text)
	}
	if len(bcast.Captions) != 0 {
		t.Fatal("invalid submit must not broadcast")
	}
	subs, _ := mem.ListSubmissions(context.Background(), 1)
	if len(subs) != 0 {
		t.Fatalf("invalid submit created a submission: %+v", subs)
	}
}

func TestBackReturnsToEditing(t *testing.T) {
	d, _, out, _ := newTestDispatcher()
	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelReviewAndSubmit),
		text(1, competition.LabelBack),
	)

	got := out.lastText(t)
	if got.Text != "Anything you didn't like? You can still make the changes!" {
		t.Fatalf("back reply: got %q", got.Text)
	}
	if len(got.Keyboard) == 0 || got.Keyboard[0][0] != competition.LabelEditName {
		t.Fatalf("back keyboard: got %v", got.Keyboard)
	}
}

func TestListSubmissions(t *testing.T) {
	d, _, out, _ := newTestDispatcher()

	handle(t, d, text(1, competition.LabelListSubmissions))
	if got := out.lastText(t); got.Text != "You didn't send anything yet 🥺" {
		t.Fatalf("empty list reply: got %q", got.Text)
	}

	at := time.Unix(3000, 0)
	handle(t, d,
		text(1, competition.LabelStartSubmission),
		text(1, competition.LabelEditName),
		text(1, "Ginger Fortress"),
		text(1, competition.LabelUploadPictures),
		photo(1, "pic", at),
		text(1, competition.LabelReviewAndSubmit),
		text(1, competition.LabelSubmit),
		text(1, competition.LabelListSubmissions),
	)

	got := out.lastText(t)
	if !strings.HasPrefix(got.Text, "> ") || !strings.Contains(got.Text, "Ginger Fortress") {
		t.Fatalf("list reply: got %q", got.Text)
	}
}
