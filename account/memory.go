package account

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository. It backs tests and the
// service binary's -memory mode.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]Account
	byUsername map[string]int64
	byEmail    map[string]int64
	now        func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       map[int64]Account{},
		byUsername: map[string]int64{},
		byEmail:    map[string]int64{},
		now:        time.Now,
	}
}

func (m *MemoryRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (m *MemoryRepository) FindByUsername(ctx context.Context, username string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return Account{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return m.byID[id], nil
}

// Insert assigns the next id and timestamps to acc.
func (m *MemoryRepository) Insert(ctx context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc.Email = NormalizeEmail(acc.Email)
	if _, ok := m.byUsername[acc.Username]; ok {
		return ErrUsernameTaken
	}
	if _, ok := m.byEmail[acc.Email]; ok {
		return ErrEmailTaken
	}

	m.nextID++
	now := m.now().UTC()
	acc.ID = m.nextID
	acc.CreatedAt = now
	acc.UpdatedAt = now
	m.store(*acc)
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.byID[acc.ID]
	if !ok {
		return ErrNotFound
	}
	acc.Email = NormalizeEmail(acc.Email)
	if id, ok := m.byUsername[acc.Username]; ok && id != acc.ID {
		return ErrUsernameTaken
	}
	if id, ok := m.byEmail[acc.Email]; ok && id != acc.ID {
		return ErrEmailTaken
	}

	delete(m.byUsername, prev.Username)
	delete(m.byEmail, prev.Email)
	acc.CreatedAt = prev.CreatedAt
	acc.UpdatedAt = m.now().UTC()
	m.store(*acc)
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byUsername, acc.Username)
	delete(m.byEmail, acc.Email)
	return nil
}

// Len returns the number of stored accounts.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MemoryRepository) store(acc Account) {
	m.byID[acc.ID] = acc
	m.byUsername[acc.Username] = acc.ID
	m.byEmail[acc.Email] = acc.ID
}
