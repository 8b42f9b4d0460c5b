// Package memory is an in-process record store used by the dev server
// and by tests. It mirrors the semantics of the PostgreSQL repositories.
package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/phrasebook-app/apiserver/internal/store"
	"github.com/phrasebook-app/apiserver/types"
)

// Store holds users and messages behind a single lock so cross-table
// operations stay atomic.
type Store struct {
	mu       sync.RWMutex
	clock    func() time.Time
	users    map[int]types.User
	messages map[int]types.Message
	nextUser int
	nextMsg  int
	last     time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for creation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:    time.Now,
		users:    make(map[int]types.User),
		messages: make(map[int]types.Message),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// Messages returns the message repository view of the store.
func (s *Store) Messages() *MessageRepository {
	return &MessageRepository{s: s}
}

// now returns strictly increasing timestamps so created_at stays a usable
// cursor key. Callers must hold the write lock.
func (s *Store) now() time.Time {
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// MessageRepository implements message persistence in memory.
type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) Get(_ context.Context, id int) (types.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messages[id]
	if !ok {
		return types.Message{}, store.ErrNotFound
	}
	return m, nil
}

func (r *MessageRepository) Page(_ context.Context, before *time.Time, limit int) ([]types.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []types.Message{}
	for _, m := range r.s.sortedMessages() {
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MessageRepository) Random(_ context.Context, limit int) ([]types.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.s.sortedMessages()
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MessageRepository) ListByUserIDs(_ context.Context, userIDs []int) (map[int][]types.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wanted := make(map[int]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[int][]types.Message, len(userIDs))
	for _, m := range r.s.sortedMessages() {
		if _, ok := wanted[m.UserID]; ok {
			out[m.UserID] = append(out[m.UserID], m)
		}
	}
	return out, nil
}

func (r *MessageRepository) Create(_ context.Context, input types.MessageInput) (types.Message, error) {
	if err := input.Validate(); err != nil {
		return types.Message{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[input.UserID]; !ok {
		return types.Message{}, store.ErrNotFound
	}
	r.s.nextMsg++
	m := types.Message{
		ID:               r.s.nextMsg,
		SentenceLang:     input.SentenceLang,
		Category:         input.Category,
		Keyword:          input.Keyword,
		OrgAuthor:        input.OrgAuthor,
		From:             input.From,
		KeyPhrase:        input.KeyPhrase,
		KeyPhraseMeaning: input.KeyPhraseMeaning,
		Sentence:         input.Sentence,
		SentenceMeaning:  input.SentenceMeaning,
		Difficulty:       input.Difficulty,
		CreatedAt:        r.s.now(),
		UserID:           input.UserID,
	}
	r.s.messages[m.ID] = m
	return m, nil
}

func (r *MessageRepository) Update(_ context.Context, id int, patch types.MessagePatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return false, nil
	}
	r.s.messages[id] = patch.Apply(m)
	return true, nil
}

func (r *MessageRepository) Delete(_ context.Context, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.messages[id]; !ok {
		return false, nil
	}
	delete(r.s.messages, id)
	return true, nil
}

func (r *MessageRepository) IncrementLikes(_ context.Context, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return false, nil
	}
	m.Likes++
	r.s.messages[id] = m
	return true, nil
}

// sortedMessages returns a copy of all messages, newest first. Callers
// must hold the lock.
func (s *Store) sortedMessages() []types.Message {
	all := make([]types.Message, 0, len(s.messages))
	for _, m := range s.messages {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

// UserRepository implements user persistence in memory.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []int) (map[int]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int]types.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *UserRepository) GetByLogin(_ context.Context, login string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) List(_ context.Context) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]types.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepository) Create(_ context.Context, input types.NewUser) (types.User, error) {
	if err := input.Validate(); err != nil {
		return types.User{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == input.Username {
			return types.User{}, &store.ConflictError{Field: "username"}
		}
		if u.Email == input.Email {
			return types.User{}, &store.ConflictError{Field: "email"}
		}
	}
	role := input.Role
	if role == "" {
		role = types.RoleNormal
	}
	r.s.nextUser++
	ts := r.s.now()
	u := types.User{
		ID:           r.s.nextUser,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         role,
		Point:        input.Point,
		AvatarURL:    input.AvatarURL,
		Description:  input.Description,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r *UserRepository) UpdateAvatar(_ context.Context, id int, avatarURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.AvatarURL = avatarURL
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *UserRepository) DeleteWithMessages(_ context.Context, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return false, nil
	}
	for mid, m := range r.s.messages {
		if m.UserID == id {
			delete(r.s.messages, mid)
		}
	}
	delete(r.s.users, id)
	return true, nil
}
