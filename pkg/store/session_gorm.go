package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"boathub/internal/util"
)

// sessionPayload is the serialized sess column.
type sessionPayload struct {
	UserID string `json:"userId"`
}

// GormSessionStore keeps sessions in the sessions table. Expired rows are
// rejected on read and swept opportunistically on write.
type GormSessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewGormSessionStore(db *gorm.DB, ttl time.Duration) *GormSessionStore {
	return &GormSessionStore{db: db, ttl: ttl}
}

func (s *GormSessionStore) NewSession(userID string) (string, error) {
	token := util.NewSessionToken()
	payload, err := json.Marshal(sessionPayload{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	row := SessionModel{Sid: token, Sess: payload, Expire: time.Now().UTC().Add(s.ttl)}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sid"}},
		DoUpdates: clause.AssignmentColumns([]string{"sess", "expire"}),
	}).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	s.sweep()
	return token, nil
}

func (s *GormSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	var row SessionModel
	err := s.db.First(&row, "sid = ?", token).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load session: %w", err)
	}
	if time.Now().UTC().After(row.Expire) {
		_ = s.DeleteSession(token)
		return "", false, nil
	}
	var payload sessionPayload
	if err := json.Unmarshal(row.Sess, &payload); err != nil {
		return "", false, fmt.Errorf("decode session: %w", err)
	}
	if payload.UserID == "" {
		return "", false, nil
	}
	return payload.UserID, true, nil
}

func (s *GormSessionStore) DeleteSession(token string) error {
	if err := s.db.Delete(&SessionModel{}, "sid = ?", token).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *GormSessionStore) sweep() {
	s.db.Delete(&SessionModel{}, "expire < ?", time.Now().UTC())
}
