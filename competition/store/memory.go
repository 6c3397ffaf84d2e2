package store

import (
	"context"
	"sync"
	"time"

	"github.com/shmeleva/TiKGingerbreadBot/competition"
)

var (
	_ competition.Gateway = (*Postgres)(nil)
	_ competition.Gateway = (*Memory)(nil)
)

type memoryDraft struct {
	name        string
	description string
	mediaDate   time.Time
	hasDate     bool
	media       []competition.MediaItem
}

// Memory is a mutex-guarded in-memory gateway with the same observable
// behaviour as Postgres, including the current-batch media filter and
// the atomic counter. It backs the dispatcher tests.
type Memory struct {
	mu          sync.Mutex
	users       map[int64]competition.User
	drafts      map[int64]*memoryDraft
	submissions map[int64][]competition.Submission
	counter     int64
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[int64]competition.User),
		drafts:      make(map[int64]*memoryDraft),
		submissions: make(map[int64][]competition.Submission),
	}
}

func (m *Memory) FindOrCreateUser(_ context.Context, u competition.User) (competition.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if ok {
		existing.Username = u.Username
		existing.FirstName = u.FirstName
		existing.ChatID = u.ChatID
		m.users[u.ID] = existing
		return existing, nil
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) FindUser(_ context.Context, id int64) (competition.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *Memory) SetLastCommand(_ context.Context, userID int64, command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastCommand = command
		m.users[userID] = u
	}
	return nil
}

func (m *Memory) CreateDraft(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[userID] = &memoryDraft{}
	return nil
}

func (m *Memory) UpdateDraftName(_ context.Context, userID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[userID]; ok {
		d.name = name
	}
	return nil
}

func (m *Memory) UpdateDraftDescription(_ context.Context, userID int64, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[userID]; ok {
		d.description = description
	}
	return nil
}

func (m *Memory) UpdateDraftMediaDate(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[userID]; ok {
		d.mediaDate = at
		d.hasDate = true
	}
	return nil
}

func (m *Memory) AppendDraftMedia(_ context.Context, userID int64, item competition.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.drafts[userID]; ok {
		d.media = append(d.media, item)
	}
	return nil
}

func (m *Memory) ReadDraft(_ context.Context, userID int64) (competition.Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[userID]
	if !ok {
		return competition.Draft{}, false, nil
	}
	draft := competition.Draft{
		UserID:      userID,
		Name:        d.name,
		Description: d.description,
	}
	if !d.hasDate {
		return draft, true, nil
	}
	draft.MediaDate = d.mediaDate
	for _, item := range d.media {
		if item.SentAt.Equal(d.mediaDate) {
			draft.Media = append(draft.Media, item)
		}
	}
	return draft, true, nil
}

func (m *Memory) FinalizeSubmission(_ context.Context, userID int64, draft competition.Draft) (competition.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	sub := competition.Submission{
		UserID:      userID,
		Seq:         m.counter,
		Name:        draft.Name,
		Description: draft.Description,
		Media:       append([]competition.MediaItem(nil), draft.Media...),
		SubmittedAt: time.Now().UTC(),
	}
	m.submissions[userID] = append(m.submissions[userID], sub)
	delete(m.drafts, userID)
	return sub, nil
}

func (m *Memory) ListSubmissions(_ context.Context, userID int64) ([]competition.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]competition.Submission(nil), m.submissions[userID]...), nil
}

func (m *Memory) CountUsers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *Memory) CountSubmissions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, subs := range m.submissions {
		n += int64(len(subs))
	}
	return n, nil
}
