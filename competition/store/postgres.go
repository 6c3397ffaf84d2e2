// Package store provides the persistence gateway implementations for
// the submission flow: a Postgres gateway used in production and an
// in-memory gateway used by tests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
	"github.com/shmeleva/TiKGingerbreadBot/core/logger"
)

// CounterName is the row in the counters table supplying submission
// sequence numbers.
const CounterName = "competition"

// Postgres implements competition.Gateway over sqlx. Every mutation is
// a narrowly scoped statement keyed by user id, so concurrent turns for
// the same user interleave at row granularity instead of clobbering
// whole records.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type userRow struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	FirstName   string `db:"first_name"`
	ChatID      int64  `db:"chat_id"`
	LastCommand string `db:"last_command"`
}

func (r userRow) toUser() competition.User {
	return competition.User{
		ID:          r.ID,
		Username:    r.Username,
		FirstName:   r.FirstName,
		ChatID:      r.ChatID,
		LastCommand: r.LastCommand,
	}
}

type mediaRow struct {
	FileID       string    `db:"file_id"`
	MediaGroupID string    `db:"media_group_id"`
	Kind         string    `db:"kind"`
	SentAt       time.Time `db:"sent_at"`
}

func (r mediaRow) toItem() competition.MediaItem {
	return competition.MediaItem{
		FileID:       r.FileID,
		MediaGroupID: r.MediaGroupID,
		Kind:         competition.ContentKind(r.Kind),
		SentAt:       r.SentAt,
	}
}

// FindOrCreateUser upserts the user row, refreshing the mutable profile
// fields on every turn. LastCommand is left untouched on conflict.
func (p *Postgres) FindOrCreateUser(ctx context.Context, u competition.User) (competition.User, error) {
	const q = `
		INSERT INTO users (id, username, first_name, chat_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    chat_id = EXCLUDED.chat_id
		RETURNING id, username, first_name, chat_id, last_command`
	var row userRow
	if err := p.db.GetContext(ctx, &row, q, u.ID, u.Username, u.FirstName, u.ChatID); err != nil {
		return competition.User{}, fmt.Errorf("store: upsert user %d: %w", u.ID, err)
	}
	return row.toUser(), nil
}

func (p *Postgres) FindUser(ctx context.Context, id int64) (competition.User, bool, error) {
	const q = `SELECT id, username, first_name, chat_id, last_command FROM users WHERE id = $1`
	var row userRow
	err := p.db.GetContext(ctx, &row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return competition.User{}, false, nil
	}
	if err != nil {
		return competition.User{}, false, fmt.Errorf("store: find user %d: %w", id, err)
	}
	return row.toUser(), true, nil
}

func (p *Postgres) SetLastCommand(ctx context.Context, userID int64, command string) error {
	const q = `UPDATE users SET last_command = $2 WHERE id = $1`
	if _, err := p.db.ExecContext(ctx, q, userID, command); err != nil {
		return fmt.Errorf("store: set last command for %d: %w", userID, err)
	}
	return nil
}

// CreateDraft starts a fresh draft, resetting fields and discarding any
// media accumulated on a previous one.
func (p *Postgres) CreateDraft(ctx context.Context, userID int64) error {
	const upsert = `
		INSERT INTO drafts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE
		SET name = '', description = '', media_date = NULL`
	const clear = `DELETE FROM draft_media WHERE user_id = $1`

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: create draft for %d: %w", userID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsert, userID); err != nil {
		return fmt.Errorf("store: create draft for %d: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, clear, userID); err != nil {
		return fmt.Errorf("store: create draft for %d: %w", userID, err)
	}
	return tx.Commit()
}

func (p *Postgres) UpdateDraftName(ctx context.Context, userID int64, name string) error {
	const q = `UPDATE drafts SET name = $2 WHERE user_id = $1`
	if _, err := p.db.ExecContext(ctx, q, userID, name); err != nil {
		return fmt.Errorf("store: update draft name for %d: %w", userID, err)
	}
	return nil
}

func (p *Postgres) UpdateDraftDescription(ctx context.Context, userID int64, description string) error {
	const q = `UPDATE drafts SET description = $2 WHERE user_id = $1`
	if _, err := p.db.ExecContext(ctx, q, userID, description); err != nil {
		return fmt.Errorf("store: update draft description for %d: %w", userID, err)
	}
	return nil
}

func (p *Postgres) UpdateDraftMediaDate(ctx context.Context, userID int64, at time.Time) error {
	const q = `UPDATE drafts SET media_date = $2 WHERE user_id = $1`
	if _, err := p.db.ExecContext(ctx, q, userID, at); err != nil {
		return fmt.Errorf("store: update draft media date for %d: %w", userID, err)
	}
	return nil
}

// AppendDraftMedia inserts one media item, but only when a draft row
// exists; otherwise the statement matches nothing and the call no-ops.
func (p *Postgres) AppendDraftMedia(ctx context.Context, userID int64, item competition.MediaItem) error {
	const q = `
		INSERT INTO draft_media (user_id, file_id, media_group_id, kind, sent_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM drafts WHERE user_id = $1)`
	_, err := p.db.ExecContext(ctx, q, userID, item.FileID, item.MediaGroupID, string(item.Kind), item.SentAt)
	if err != nil {
		return fmt.Errorf("store: append draft media for %d: %w", userID, err)
	}
	return nil
}

// ReadDraft loads the draft with its current media batch: items whose
// sent_at equals the draft's media date. A NULL media date matches no
// items, so a draft that never went through the pictures flow reads as
// having no media.
func (p *Postgres) ReadDraft(ctx context.Context, userID int64) (competition.Draft, bool, error) {
	const draftQ = `SELECT name, description, media_date FROM drafts WHERE user_id = $1`
	var row struct {
		Name        string       `db:"name"`
		Description string       `db:"description"`
		MediaDate   sql.NullTime `db:"media_date"`
	}
	err := p.db.GetContext(ctx, &row, draftQ, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return competition.Draft{}, false, nil
	}
	if err != nil {
		return competition.Draft{}, false, fmt.Errorf("store: read draft for %d: %w", userID, err)
	}

	draft := competition.Draft{
		UserID:      userID,
		Name:        row.Name,
		Description: row.Description,
	}
	if !row.MediaDate.Valid {
		return draft, true, nil
	}
	draft.MediaDate = row.MediaDate.Time

	const mediaQ = `
		SELECT file_id, media_group_id, kind, sent_at
		FROM draft_media
		WHERE user_id = $1 AND sent_at = $2
		ORDER BY id`
	var media []mediaRow
	if err := p.db.SelectContext(ctx, &media, mediaQ, userID, draft.MediaDate); err != nil {
		return competition.Draft{}, false, fmt.Errorf("store: read draft media for %d: %w", userID, err)
	}
	for _, m := range media {
		draft.Media = append(draft.Media, m.toItem())
	}
	return draft, true, nil
}

// FinalizeSubmission runs the whole submit mutation in one transaction:
// bump the counter and take its new value as the sequence number, insert
// the submission with a snapshot of the draft's current media batch,
// then delete the draft. The counter update locks the row, so two
// concurrent submits serialize on it and can never share a sequence.
func (p *Postgres) FinalizeSubmission(ctx context.Context, userID int64, draft competition.Draft) (competition.Submission, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return competition.Submission{}, fmt.Errorf("store: finalize for %d: %w", userID, err)
	}
	defer tx.Rollback()

	var seq int64
	const bump = `UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`
	if err := tx.GetContext(ctx, &seq, bump, CounterName); err != nil {
		return competition.Submission{}, fmt.Errorf("store: bump counter: %w", err)
	}

	now := time.Now().UTC()
	var submissionID int64
	const insertSub = `
		INSERT INTO submissions (user_id, seq, name, description, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := tx.GetContext(ctx, &submissionID, insertSub, userID, seq, draft.Name, draft.Description, now); err != nil {
		return competition.Submission{}, fmt.Errorf("store: insert submission for %d: %w", userID, err)
	}

	const insertMedia = `
		INSERT INTO submission_media (submission_id, file_id, media_group_id, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5)`
	for _, m := range draft.Media {
		if _, err := tx.ExecContext(ctx, insertMedia, submissionID, m.FileID, m.MediaGroupID, string(m.Kind), m.SentAt); err != nil {
			return competition.Submission{}, fmt.Errorf("store: insert submission media for %d: %w", userID, err)
		}
	}

	const dropDraft = `DELETE FROM drafts WHERE user_id = $1`
	if _, err := tx.ExecContext(ctx, dropDraft, userID); err != nil {
		return competition.Submission{}, fmt.Errorf("store: drop draft for %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return competition.Submission{}, fmt.Errorf("store: finalize for %d: %w", userID, err)
	}

	if logger.ShouldSampleDebug() {
		logger.DB.Debug("submission.stored",
			slog.String("event", "finalize"),
			slog.Int64("user_id", userID),
			slog.Int64("seq", seq),
			slog.Int("media_count", len(draft.Media)),
		)
	}

	sub := competition.Submission{
		UserID:      userID,
		Seq:         seq,
		Name:        draft.Name,
		Description: draft.Description,
		Media:       append([]competition.MediaItem(nil), draft.Media...),
		SubmittedAt: now,
	}
	return sub, nil
}

func (p *Postgres) ListSubmissions(ctx context.Context, userID int64) ([]competition.Submission, error) {
	const q = `
		SELECT id, seq, name, description, submitted_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY seq`
	var rows []struct {
		ID          int64     `db:"id"`
		Seq         int64     `db:"seq"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		SubmittedAt time.Time `db:"submitted_at"`
	}
	if err := p.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("store: list submissions for %d: %w", userID, err)
	}

	subs := make([]competition.Submission, 0, len(rows))
	for _, r := range rows {
		sub := competition.Submission{
			UserID:      userID,
			Seq:         r.Seq,
			Name:        r.Name,
			Description: r.Description,
			SubmittedAt: r.SubmittedAt,
		}
		const mediaQ = `
			SELECT file_id, media_group_id, kind, sent_at
			FROM submission_media
			WHERE submission_id = $1
			ORDER BY id`
		var media []mediaRow
		if err := p.db.SelectContext(ctx, &media, mediaQ, r.ID); err != nil {
			return nil, fmt.Errorf("store: list submission media for %d: %w", userID, err)
		}
		for _, m := range media {
			sub.Media = append(sub.Media, m.toItem())
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (p *Postgres) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.GetContext(ctx, &n, `SELECT count(*) FROM users`); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}

func (p *Postgres) CountSubmissions(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.GetContext(ctx, &n, `SELECT count(*) FROM submissions`); err != nil {
		return 0, fmt.Errorf("store: count submissions: %w", err)
	}
	return n, nil
}
