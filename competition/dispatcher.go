package competition

import (
	"context"
	"log/slog"

	"github.com/shmeleva/TiKGingerbreadBot/core/logger"
)

// Dispatcher is the per-message state machine. Conversational state is
// not held in memory: it is derived each turn from the user's persisted
// last command and draft, so concurrent instances behave identically.
type Dispatcher struct {
	store Gateway
	out   Outbound
	bcast Broadcaster
	table map[CommandID]commandSpec
	order []CommandID
}

// NewDispatcher builds a dispatcher over the given collaborators.
// bcast may be nil when no broadcast channels are configured.
func NewDispatcher(store Gateway, out Outbound, bcast Broadcaster) *Dispatcher {
	d := &Dispatcher{store: store, out: out, bcast: bcast}
	d.table, d.order = d.commandTable()
	return d
}

// Handle processes one inbound message to completion. A message is first
// tested as a command (exact label match plus precondition), and only on
// failure as draft content or a continuation; a button label is never
// consumed as both. Unrecognised non-text input degrades to silence.
func (d *Dispatcher) Handle(ctx context.Context, msg Incoming) error {
	if msg.UserID == 0 {
		return nil
	}
	user, err := d.store.FindOrCreateUser(ctx, User{
		ID:        msg.UserID,
		Username:  msg.Username,
		FirstName: msg.FirstName,
		ChatID:    msg.ChatID,
	})
	if err != nil {
		return err
	}
	prev := CommandID(user.LastCommand)

	if msg.Kind == KindText {
		for _, id := range d.order {
			spec := d.table[id]
			if msg.Text != spec.Label {
				continue
			}
			if spec.After != "" && spec.After != prev {
				continue
			}
			rep, err := spec.Execute(ctx, user, msg)
			if err != nil {
				return err
			}
			if err := d.send(ctx, user, rep); err != nil {
				return err
			}
			if err := d.store.SetLastCommand(ctx, user.ID, string(id)); err != nil {
				return err
			}
			if logger.ShouldSampleDebug() {
				logger.SVCSubs.Debug("command.executed",
					slog.String("event", "command"),
					slog.String("command", string(id)),
					slog.Int64("user_id", user.ID),
				)
			}
			return nil
		}
	}

	// Any non-command message breaks a pending continuation chain.
	if err := d.store.SetLastCommand(ctx, user.ID, ""); err != nil {
		return err
	}

	// Media accumulates onto the current draft even when no continuation
	// fires, so pictures sent out of band are not lost.
	if msg.Kind == KindPhoto || msg.Kind == KindVideo {
		item := MediaItem{
			FileID:       msg.FileID,
			MediaGroupID: msg.MediaGroupID,
			Kind:         msg.Kind,
			SentAt:       msg.SentAt,
		}
		if err := d.store.AppendDraftMedia(ctx, user.ID, item); err != nil {
			return err
		}
	}

	if spec, ok := d.table[prev]; ok && spec.Continue != nil && kindAccepted(spec.ContinueKinds, msg.Kind) {
		_, exists, err := d.store.ReadDraft(ctx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			rep, err := spec.Continue(ctx, user, msg)
			if err != nil {
				return err
			}
			if logger.ShouldSampleDebug() {
				logger.SVCSubs.Debug("continuation.executed",
					slog.String("event", "continuation"),
					slog.String("command", string(prev)),
					slog.String("kind", string(msg.Kind)),
					slog.Int64("user_id", user.ID),
				)
			}
			return d.send(ctx, user, rep)
		}
	}

	if msg.Kind == KindText {
		_, exists, err := d.store.ReadDraft(ctx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			return d.out.SendText(ctx, user.ChatID, keepEditingText, DraftKeyboard())
		}
		return d.out.SendText(ctx, user.ChatID, greetingText, NoDraftKeyboard())
	}
	return nil
}

// submit re-validates the draft, finalizes it and fans the result out
// to the broadcast channels. Broadcast delivery never affects the reply
// to the submitting user.
func (d *Dispatcher) submit(ctx context.Context, user User) (reply, error) {
	draft, ok, err := d.store.ReadDraft(ctx, user.ID)
	if err != nil || !ok {
		return reply{}, err
	}
	if errText := FormatErrorMessage(draft.Name, draft.Media); errText != "" {
		return reply{Text: errText}, nil
	}

	sub, err := d.store.FinalizeSubmission(ctx, user.ID, draft)
	if err != nil {
		return reply{}, err
	}
	logger.SVCSubs.Info("submission.finalized",
		slog.String("event", "finalize"),
		slog.Int64("seq", sub.Seq),
		slog.Int64("user_id", user.ID),
		slog.Int("media_count", len(sub.Media)),
	)

	if d.bcast != nil {
		caption := BroadcastCaption(sub, &user)
		d.bcast.Broadcast(ctx, caption, FormatMediaList(sub.Media, ""))
	}

	return reply{Text: submittedText, Keyboard: NoDraftKeyboard()}, nil
}

func (d *Dispatcher) send(ctx context.Context, user User, rep reply) error {
	if rep.Text == "" && len(rep.Media) == 0 {
		return nil
	}
	kb := rep.Keyboard
	if kb == nil {
		kb = d.defaultKeyboard(ctx, user.ID)
	}
	if len(rep.Media) > 0 {
		if err := d.out.SendAlbum(ctx, user.ChatID, rep.Media); err != nil {
			return err
		}
	}
	if rep.Text != "" {
		return d.out.SendText(ctx, user.ChatID, rep.Text, kb)
	}
	return nil
}

func (d *Dispatcher) defaultKeyboard(ctx context.Context, userID int64) [][]string {
	_, exists, err := d.store.ReadDraft(ctx, userID)
	if err != nil || !exists {
		return NoDraftKeyboard()
	}
	return DraftKeyboard()
}

func kindAccepted(kinds []ContentKind, kind ContentKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
