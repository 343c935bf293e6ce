package store

import "boathub/pkg/domain"

// Store is the persistence interface for users, listings and AI settings.
// It is the only component that talks to the relational database.
type Store interface {
	SaveUser(u domain.User) error
	HasUserPhone(phone string) (bool, error)
	GetUserByPhone(phone string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)

	// CreateBoat inserts the listing and its contact channels atomically:
	// a failure on either side leaves nothing behind.
	CreateBoat(b domain.Boat, contacts []domain.BoatContact) error
	SaveBoat(b domain.Boat) error
	GetBoat(id string) (domain.Boat, bool, error)
	// ListBoats returns all listings ordered promoted-first, then newest-first.
	// Callers depend on this ordering for the catalog default sort.
	ListBoats() ([]domain.Boat, error)
	ListBoatsByOwner(ownerID string) ([]domain.Boat, error)
	SearchBoats(f domain.SearchFilter) ([]domain.Boat, error)
	DeleteBoat(id string) error
	SetBoatStatus(id string, status domain.BoatStatus, aiError, rejectionReason string) error
	// RecordView appends a view-history entry and bumps the counter.
	// Returns false when the listing does not exist.
	RecordView(boatID, viewerID string) (bool, error)

	GetSetting(key domain.SettingKey) (domain.AiSetting, bool, error)
	UpsertSetting(s domain.AiSetting) error
	ListSettings() ([]domain.AiSetting, error)
}
