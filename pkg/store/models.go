package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Phone        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type BoatModel struct {
	ID           string  `gorm:"primaryKey"`
	UserID       *string `gorm:"index"`
	Title        string  `gorm:"not null"`
	Description  string  `gorm:"type:text;not null"`
	Price        int     `gorm:"not null"`
	Currency     string  `gorm:"not null"`
	Year         int     `gorm:"not null"`
	Manufacturer string
	Model        string
	BoatType     string `gorm:"index"`
	Length       string `gorm:"type:decimal(10,2)"`
	Location     string

	PhotoURLs  datatypes.JSON `gorm:"type:jsonb"`
	PhotoCount int

	IsPromoted  bool `gorm:"not null;index"`
	ViewCount   int  `gorm:"not null"`
	ViewHistory datatypes.JSON `gorm:"type:jsonb"`

	SellerName        string
	SellerRating      string
	SellerReviewCount int
	Phone             string

	Status          string `gorm:"not null;index"`
	AIError         string
	RejectionReason string
	RawDescription  string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (BoatModel) TableName() string { return "boats" }

type BoatContactModel struct {
	ID     string `gorm:"primaryKey"`
	BoatID string `gorm:"not null;index"`
	Type   string `gorm:"not null"`
	Value  string `gorm:"not null"`
}

func (BoatContactModel) TableName() string { return "boat_contacts" }

type AiSettingModel struct {
	ID          string `gorm:"primaryKey"`
	SettingKey  string `gorm:"uniqueIndex;not null"`
	SettingValue string `gorm:"type:text;not null"`
	Description string
	UpdatedAt   time.Time `gorm:"not null"`
}

func (AiSettingModel) TableName() string { return "ai_settings" }

// SessionModel backs the postgres session strategy: sid is the cookie value,
// sess the serialized session payload, expire the hard cutoff.
type SessionModel struct {
	Sid    string         `gorm:"primaryKey;column:sid"`
	Sess   datatypes.JSON `gorm:"type:jsonb;not null"`
	Expire time.Time      `gorm:"not null;index"`
}

func (SessionModel) TableName() string { return "sessions" }
