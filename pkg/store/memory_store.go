package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"boathub/internal/util"
	"boathub/pkg/domain"
)

// MemoryStore keeps all data in-process. It backs handler and service tests
// and makes local development possible without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	phones   map[string]string // phone -> user ID
	boats    map[string]domain.Boat
	contacts map[string][]domain.BoatContact // boat ID -> contacts
	settings map[domain.SettingKey]domain.AiSetting
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		phones:   make(map[string]string),
		boats:    make(map[string]domain.Boat),
		contacts: make(map[string][]domain.BoatContact),
		settings: make(map[domain.SettingKey]domain.AiSetting),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok && old.Phone != u.Phone {
		delete(m.phones, old.Phone)
	}
	m.users[u.ID] = u
	m.phones[u.Phone] = u.ID
	return nil
}

func (m *MemoryStore) HasUserPhone(phone string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.phones[phone]
	return ok, nil
}

func (m *MemoryStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.phones[phone]
	if !ok {
		return domain.User{}, false, nil
	}
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) CreateBoat(b domain.Boat, contacts []domain.BoatContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boats[b.ID] = b
	if len(contacts) > 0 {
		stored := make([]domain.BoatContact, 0, len(contacts))
		for _, c := range contacts {
			if c.ID == "" {
				c.ID = util.NewID()
			}
			c.BoatID = b.ID
			stored = append(stored, c)
		}
		m.contacts[b.ID] = stored
	}
	return nil
}

func (m *MemoryStore) SaveBoat(b domain.Boat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.boats[b.ID]; ok {
		// History and counters are owned by RecordView.
		b.ViewCount = existing.ViewCount
		b.ViewHistory = existing.ViewHistory
	}
	m.boats[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBoat(id string) (domain.Boat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	boat, ok := m.boats[id]
	if !ok {
		return domain.Boat{}, false, nil
	}
	boat.Contacts = append([]domain.BoatContact(nil), m.contacts[id]...)
	return boat, true, nil
}

func (m *MemoryStore) ListBoats() ([]domain.Boat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(domain.Boat) bool { return true }), nil
}

func (m *MemoryStore) ListBoatsByOwner(ownerID string) ([]domain.Boat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(b domain.Boat) bool { return b.OwnerID == ownerID }), nil
}

func (m *MemoryStore) SearchBoats(f domain.SearchFilter) ([]domain.Boat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(f.Query))
	location := strings.ToLower(strings.TrimSpace(f.Location))
	return m.collect(func(b domain.Boat) bool {
		if query != "" && !matchesKeyword(b, query) {
			return false
		}
		if f.MinPrice > 0 && b.Price < f.MinPrice {
			return false
		}
		if f.MaxPrice > 0 && b.Price > f.MaxPrice {
			return false
		}
		if f.Year > 0 && b.Year != f.Year {
			return false
		}
		if f.BoatType != "" && b.BoatType != f.BoatType {
			return false
		}
		if location != "" && !strings.Contains(strings.ToLower(b.Location), location) {
			return false
		}
		return true
	}), nil
}

func matchesKeyword(b domain.Boat, query string) bool {
	for _, field := range []string{b.Title, b.Description, b.Manufacturer, b.Model} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// collect filters and sorts under the caller's lock: promoted first, newest first.
func (m *MemoryStore) collect(keep func(domain.Boat) bool) []domain.Boat {
	res := make([]domain.Boat, 0, len(m.boats))
	for _, b := range m.boats {
		if keep(b) {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].IsPromoted != res[j].IsPromoted {
			return res[i].IsPromoted
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (m *MemoryStore) DeleteBoat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boats, id)
	delete(m.contacts, id)
	return nil
}

func (m *MemoryStore) SetBoatStatus(id string, status domain.BoatStatus, aiError, rejectionReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	boat, ok := m.boats[id]
	if !ok {
		return nil
	}
	boat.Status = status
	boat.AIError = aiError
	boat.RejectionReason = rejectionReason
	boat.UpdatedAt = time.Now().UTC()
	m.boats[id] = boat
	return nil
}

func (m *MemoryStore) RecordView(boatID, viewerID string) (bool, error) {
	if strings.TrimSpace(viewerID) == "" {
		viewerID = "anonymous"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	boat, ok := m.boats[boatID]
	if !ok {
		return false, nil
	}
	boat.ViewCount++
	boat.ViewHistory = append(boat.ViewHistory, domain.ViewEntry{ViewerID: viewerID, ViewedAt: time.Now().UTC()})
	m.boats[boatID] = boat
	return true, nil
}

func (m *MemoryStore) GetSetting(key domain.SettingKey) (domain.AiSetting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	setting, ok := m.settings[key]
	return setting, ok, nil
}

func (m *MemoryStore) UpsertSetting(setting domain.AiSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setting.UpdatedAt = time.Now().UTC()
	m.settings[setting.Key] = setting
	return nil
}

func (m *MemoryStore) ListSettings() ([]domain.AiSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.AiSetting, 0, len(m.settings))
	for _, s := range m.settings {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}
