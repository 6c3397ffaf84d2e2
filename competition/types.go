// Package competition implements the conversational submission flow:
// users assemble a draft entry (name, description, pictures), review it
// and submit it, receiving a global sequence number. The package is
// transport-agnostic; the bot glue translates chat updates into Incoming
// messages and implements Outbound and Broadcaster over the chat API.
package competition

import (
	"context"
	"time"
)

// ContentKind tags the payload of an incoming message.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindPhoto ContentKind = "photo"
	KindVideo ContentKind = "video"
)

// User is one chat participant. LastCommand is the conversational cursor:
// the identifier of the command executed on the user's previous turn, or
// empty when the previous message was not a recognised command.
type User struct {
	ID          int64
	Username    string
	FirstName   string
	ChatID      int64
	LastCommand string
}

// MediaItem is one attached photo or video. SentAt carries the timestamp
// of the message the item arrived with; items sharing the draft's media
// date form the current upload batch.
type MediaItem struct {
	FileID       string
	MediaGroupID string
	Kind         ContentKind
	SentAt       time.Time
}

// Draft is a submission under construction. At most one exists per user.
// When loaded through Gateway.ReadDraft, Media holds only the current
// batch: items whose SentAt equals MediaDate.
type Draft struct {
	UserID      int64
	Name        string
	Description string
	MediaDate   time.Time
	Media       []MediaItem
}

// Submission is a finalized entry. Seq is unique and monotonically
// increasing across all users. Submissions are never mutated.
type Submission struct {
	UserID      int64
	Seq         int64
	Name        string
	Description string
	Media       []MediaItem
	SubmittedAt time.Time
}

// Incoming is one inbound chat message, reduced to the fields the
// dispatcher needs. Exactly one of Text or FileID is meaningful,
// depending on Kind.
type Incoming struct {
	UserID       int64
	Username     string
	FirstName    string
	ChatID       int64
	Kind         ContentKind
	Text         string
	FileID       string
	MediaGroupID string
	SentAt       time.Time
}

// MediaRef is a transport-ready media reference. Caption is set only on
// the first element of a formatted list.
type MediaRef struct {
	Kind    ContentKind
	FileID  string
	Caption string
}

// Gateway is the persistence boundary. Every operation is keyed by the
// stable user identity and is a narrowly scoped write: mutations touch
// single fields or append single rows rather than rewriting whole
// records, and they no-op when the addressed record is missing.
type Gateway interface {
	FindOrCreateUser(ctx context.Context, u User) (User, error)
	FindUser(ctx context.Context, id int64) (User, bool, error)
	SetLastCommand(ctx context.Context, userID int64, command string) error

	CreateDraft(ctx context.Context, userID int64) error
	UpdateDraftName(ctx context.Context, userID int64, name string) error
	UpdateDraftDescription(ctx context.Context, userID int64, description string) error
	UpdateDraftMediaDate(ctx context.Context, userID int64, at time.Time) error
	AppendDraftMedia(ctx context.Context, userID int64, item MediaItem) error
	ReadDraft(ctx context.Context, userID int64) (Draft, bool, error)

	// FinalizeSubmission atomically bumps the competition counter,
	// snapshots the draft into a new Submission carrying the counter
	// value as Seq, and deletes the draft.
	FinalizeSubmission(ctx context.Context, userID int64, draft Draft) (Submission, error)
	ListSubmissions(ctx context.Context, userID int64) ([]Submission, error)

	CountUsers(ctx context.Context) (int64, error)
	CountSubmissions(ctx context.Context) (int64, error)
}

// Outbound delivers replies back to the chat the message came from.
type Outbound interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard [][]string) error
	SendAlbum(ctx context.Context, chatID int64, media []MediaRef) error
}

// Broadcaster fans an accepted submission out to the configured
// channels. Delivery is best effort per channel; implementations log
// failures and never return them to the submit flow.
type Broadcaster interface {
	Broadcast(ctx context.Context, caption string, media []MediaRef)
}
