package competition

import (
	"context"
	"fmt"
	"strings"
)

// CommandID identifies a command in the table and is the value persisted
// as the user's last executed command.
type CommandID string

const (
	CmdStartSubmission CommandID = "startSubmission"
	CmdEditName        CommandID = "editName"
	CmdEditDescription CommandID = "editDescription"
	CmdUploadPictures  CommandID = "uploadPictures"
	CmdReviewAndSubmit CommandID = "reviewAndSubmit"
	CmdSubmit          CommandID = "submit"
	CmdBack            CommandID = "back"
	CmdListSubmissions CommandID = "listSubmissions"
)

// Button labels double as match keys for incoming text messages.
const (
	LabelStartSubmission = "Start a new submission 🍪"
	LabelEditName        = "Edit name 🖋️"
	LabelEditDescription = "Edit description 🖋️"
	LabelUploadPictures  = "Edit pictures 🖼️"
	LabelReviewAndSubmit = "Review and submit ✅"
	LabelSubmit          = "Submit ✅"
	LabelBack            = "Back 🔙"
	LabelListSubmissions = "See my other submissions 📜"
)

const (
	greetingText = "Hi, cookie! 👋 Give your creation a name, tell us a bit more about it, add pictures and share it with the Grandma Club! 🤶🎅🍪"

	startedText = "Let's go! 🎉 Give your creation a name, tell us a bit more about it, and add some pictures 🖼️"

	keepEditingText = "You have a submission in progress 🍪 Keep editing, or review it when you are ready ✅"

	askNameText         = "OK. Send me the new name for your creation 🙌"
	nameUpdatedText     = "👌 The name is now updated!"
	askDescriptionText  = "OK. Send me the new description. Keep it short 🙌"
	descUpdatedText     = "👌 The description is now updated!"
	askPicturesText     = "OK. Send me the new pictures. If you want to add more than one picture, send them all at once in a single message. Videos are also fine 🎬"
	picturesUpdatedText = "👌 Looking good! The pictures are now updated."

	reviewPromptText  = "If you like how it looks, go on and press Submit ✅ We will also repost this to the Grandma Chat 🤶🎅🍪"
	submittedText     = "Got it! 🎉 Feel free to add another submission 🙌"
	backText          = "Anything you didn't like? You can still make the changes!"
	noSubmissionsText = "You didn't send anything yet 🥺"

	broadcastHeader = "New Gingerbread Competition submission #%d 🎊\n\n%s"
)

// NoDraftKeyboard is shown to users without a draft.
func NoDraftKeyboard() [][]string {
	return [][]string{{LabelStartSubmission}, {LabelListSubmissions}}
}

// DraftKeyboard is the editing menu shown while a draft exists.
func DraftKeyboard() [][]string {
	return [][]string{
		{LabelEditName, LabelEditDescription},
		{LabelUploadPictures},
		{LabelReviewAndSubmit},
		{LabelListSubmissions},
	}
}

// ReviewKeyboard is offered when a valid draft is up for review.
func ReviewKeyboard() [][]string {
	return [][]string{{LabelBack, LabelSubmit}}
}

// reply is what a command or continuation produces for one turn. Empty
// Text with no Media means nothing is sent. A nil Keyboard falls back to
// the draft-presence default.
type reply struct {
	Text     string
	Keyboard [][]string
	Media    []MediaRef
}

// commandSpec describes one entry of the command table. After gates
// eligibility on the user's last executed command. ContinueKinds marks
// the command as awaiting a follow-up of one of those kinds, handled by
// Continue on the next message.
type commandSpec struct {
	Label         string
	After         CommandID
	Execute       func(ctx context.Context, user User, msg Incoming) (reply, error)
	ContinueKinds []ContentKind
	Continue      func(ctx context.Context, user User, msg Incoming) (reply, error)
}

// commandTable wires the eight commands to their handlers as closures
// over the dispatcher.
func (d *Dispatcher) commandTable() (map[CommandID]commandSpec, []CommandID) {
	table := map[CommandID]commandSpec{
		CmdStartSubmission: {
			Label: LabelStartSubmission,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				if err := d.store.CreateDraft(ctx, user.ID); err != nil {
					return reply{}, err
				}
				return reply{Text: startedText, Keyboard: DraftKeyboard()}, nil
			},
		},
		CmdEditName: {
			Label: LabelEditName,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				return reply{Text: askNameText}, nil
			},
			ContinueKinds: []ContentKind{KindText},
			Continue: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				if err := d.store.UpdateDraftName(ctx, user.ID, msg.Text); err != nil {
					return reply{}, err
				}
				return reply{Text: nameUpdatedText}, nil
			},
		},
		CmdEditDescription: {
			Label: LabelEditDescription,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				return reply{Text: askDescriptionText}, nil
			},
			ContinueKinds: []ContentKind{KindText},
			Continue: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				if err := d.store.UpdateDraftDescription(ctx, user.ID, msg.Text); err != nil {
					return reply{}, err
				}
				return reply{Text: descUpdatedText}, nil
			},
		},
		CmdUploadPictures: {
			Label: LabelUploadPictures,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				return reply{Text: askPicturesText}, nil
			},
			ContinueKinds: []ContentKind{KindPhoto, KindVideo},
			Continue: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				// Stamping the media date selects the batch: draft reads
				// filter media to items sharing this timestamp, so earlier
				// uploads drop out of the current view without deletion.
				if err := d.store.UpdateDraftMediaDate(ctx, user.ID, msg.SentAt); err != nil {
					return reply{}, err
				}
				return reply{Text: picturesUpdatedText}, nil
			},
		},
		CmdReviewAndSubmit: {
			Label: LabelReviewAndSubmit,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				draft, ok, err := d.store.ReadDraft(ctx, user.ID)
				if err != nil || !ok {
					return reply{}, err
				}
				caption := FormatCaption(draft.Name, draft.Description, nil)
				media := FormatMediaList(draft.Media, "")
				if errText := FormatErrorMessage(draft.Name, draft.Media); errText != "" {
					return reply{Text: caption + "\n" + errText, Media: media}, nil
				}
				return reply{
					Text:     caption + "\n" + reviewPromptText,
					Media:    media,
					Keyboard: ReviewKeyboard(),
				}, nil
			},
		},
		CmdSubmit: {
			Label: LabelSubmit,
			After: CmdReviewAndSubmit,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				return d.submit(ctx, user)
			},
		},
		CmdBack: {
			Label: LabelBack,
			After: CmdReviewAndSubmit,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				return reply{Text: backText, Keyboard: DraftKeyboard()}, nil
			},
		},
		CmdListSubmissions: {
			Label: LabelListSubmissions,
			Execute: func(ctx context.Context, user User, msg Incoming) (reply, error) {
				subs, err := d.store.ListSubmissions(ctx, user.ID)
				if err != nil {
					return reply{}, err
				}
				if len(subs) == 0 {
					return reply{Text: noSubmissionsText}, nil
				}
				lines := make([]string, 0, len(subs))
				for _, s := range subs {
					lines = append(lines, "> "+FormatCaption(s.Name, s.Description, nil))
				}
				return reply{Text: strings.Join(lines, "\n")}, nil
			},
		},
	}

	order := []CommandID{
		CmdStartSubmission,
		CmdEditName,
		CmdEditDescription,
		CmdUploadPictures,
		CmdReviewAndSubmit,
		CmdSubmit,
		CmdBack,
		CmdListSubmissions,
	}
	return table, order
}

// BroadcastCaption renders the channel announcement for an accepted
// submission, including its sequence number and author attribution.
func BroadcastCaption(sub Submission, user *User) string {
	return fmt.Sprintf(broadcastHeader, sub.Seq, FormatCaption(sub.Name, sub.Description, user))
}
