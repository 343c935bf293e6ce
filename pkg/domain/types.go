package domain

import "time"

type BoatStatus string

const (
	StatusAIProcessing BoatStatus = "ai_processing"
	StatusAIReady      BoatStatus = "ai_ready"
	StatusApproved     BoatStatus = "approved"
	StatusRejected     BoatStatus = "rejected"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type ContactType string

const (
	ContactPhone    ContactType = "phone"
	ContactWhatsApp ContactType = "whatsapp"
	ContactTelegram ContactType = "telegram"
	ContactChat     ContactType = "chat"
)

type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ViewEntry is one append-only view-history record.
// ViewerID is "anonymous" for unauthenticated viewers.
type ViewEntry struct {
	ViewerID string    `json:"viewerId"`
	ViewedAt time.Time `json:"viewedAt"`
}

type Boat struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Price        int    `json:"price"`
	Currency     string `json:"currency"`
	Year         int    `json:"year"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	BoatType     string `json:"boatType,omitempty"`
	// Length is a fixed-precision decimal string (metres); callers that need
	// arithmetic parse it back to a number.
	Length   string `json:"length,omitempty"`
	Location string `json:"location,omitempty"`

	PhotoURLs  []string `json:"photoUrls"`
	PhotoCount int      `json:"photoCount"`

	IsPromoted  bool        `json:"isPromoted"`
	ViewCount   int         `json:"viewCount"`
	ViewHistory []ViewEntry `json:"viewHistory,omitempty"`

	SellerName        string `json:"sellerName,omitempty"`
	SellerRating      string `json:"sellerRating,omitempty"`
	SellerReviewCount int    `json:"sellerReviewCount,omitempty"`
	Phone             string `json:"phone,omitempty"`

	Status          BoatStatus `json:"status"`
	AIError         string     `json:"aiError,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	RawDescription  string     `json:"rawDescription,omitempty"`

	Contacts []BoatContact `json:"contacts,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BoatContact struct {
	ID     string      `json:"id"`
	BoatID string      `json:"boatId"`
	Type   ContactType `json:"type"`
	Value  string      `json:"value"`
}

// SettingKey enumerates the allowed AI setting keys. Free-form keys are not
// accepted; an absent key falls back to a hardcoded default at the call site.
type SettingKey string

const (
	SettingValidationPrompt SettingKey = "validation_prompt"
	SettingGenerationPrompt SettingKey = "generation_prompt"
	SettingSearchPrompt     SettingKey = "search_prompt"
	SettingWebSearchPrompt  SettingKey = "web_search_prompt"
	SettingGenerationModel  SettingKey = "generation_model"
	SettingWebSearchModel   SettingKey = "web_search_model"
)

// KnownSettingKeys lists every accepted key, in stable order for the admin console.
var KnownSettingKeys = []SettingKey{
	SettingValidationPrompt,
	SettingGenerationPrompt,
	SettingSearchPrompt,
	SettingWebSearchPrompt,
	SettingGenerationModel,
	SettingWebSearchModel,
}

// IsValidSettingKey reports whether key belongs to the enumerated set.
func IsValidSettingKey(key SettingKey) bool {
	for _, k := range KnownSettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

type AiSetting struct {
	Key         SettingKey `json:"key"`
	Value       string     `json:"value"`
	Description string     `json:"description,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SearchFilter is a conjunction of optional listing predicates.
// Zero values mean "no constraint".
type SearchFilter struct {
	Query    string `json:"query,omitempty"`
	MinPrice int    `json:"minPrice,omitempty"`
	MaxPrice int    `json:"maxPrice,omitempty"`
	Year     int    `json:"year,omitempty"`
	BoatType string `json:"boatType,omitempty"`
	Location string `json:"location,omitempty"`
}

// IsEmpty reports whether no predicate is set. An empty filter returns the
// full collection in contract order (promoted first, then newest).
func (f SearchFilter) IsEmpty() bool {
	return f.Query == "" && f.MinPrice == 0 && f.MaxPrice == 0 &&
		f.Year == 0 && f.BoatType == "" && f.Location == ""
}

// BoatUpdate is the realtime moderation event pushed to admin clients.
type BoatUpdate struct {
	Type      string     `json:"type"`
	BoatID    string     `json:"boatId"`
	Status    BoatStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}
