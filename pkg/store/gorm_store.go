package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"boathub/internal/util"
	"boathub/pkg/domain"
)

const migrateLockID int64 = 81428142

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &BoatModel{}, &BoatContactModel{}, &AiSettingModel{}, &SessionModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM boat_contacts c
				WHERE NOT EXISTS (SELECT 1 FROM boats b WHERE b.id = c.boat_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'boat_contacts'
					AND constraint_name = 'boat_contacts_boat_id_fkey'
				) THEN
					ALTER TABLE boat_contacts
					ADD CONSTRAINT boat_contacts_boat_id_fkey
					FOREIGN KEY (boat_id) REFERENCES boats(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure contact foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying connection so session storage can share it.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phone", "password_hash", "first_name", "last_name", "role", "updated_at"}),
	}).Create(&model).Error
}

// HasUserPhone checks if a phone is already registered.
func (s *GormStore) HasUserPhone(phone string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("phone = ?", phone).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByPhone looks up a user by phone.
func (s *GormStore) GetUserByPhone(phone string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("phone = ?", phone).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateBoat inserts a listing and its contacts in one transaction.
func (s *GormStore) CreateBoat(b domain.Boat, contacts []domain.BoatContact) error {
	model := boatToModel(b)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(contacts) == 0 {
			return nil
		}
		contactModels := make([]BoatContactModel, 0, len(contacts))
		for _, c := range contacts {
			id := c.ID
			if id == "" {
				id = util.NewID()
			}
			contactModels = append(contactModels, BoatContactModel{
				ID:     id,
				BoatID: b.ID,
				Type:   string(c.Type),
				Value:  c.Value,
			})
		}
		return tx.Create(&contactModels).Error
	})
}

// SaveBoat stores or updates a listing.
func (s *GormStore) SaveBoat(b domain.Boat) error {
	model := boatToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "title", "description", "price", "currency", "year",
			"manufacturer", "model", "boat_type", "length", "location",
			"photo_urls", "photo_count", "is_promoted",
			"seller_name", "seller_rating", "seller_review_count", "phone",
			"status", "ai_error", "rejection_reason", "raw_description",
			"updated_at",
		}),
	}).Create(&model).Error
}

// GetBoat retrieves a listing with its contacts.
func (s *GormStore) GetBoat(id string) (domain.Boat, bool, error) {
	var model BoatModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Boat{}, false, nil
		}
		return domain.Boat{}, false, err
	}
	boat := boatFromModel(model)
	var contactModels []BoatContactModel
	if err := s.db.Where("boat_id = ?", id).Find(&contactModels).Error; err != nil {
		return domain.Boat{}, false, err
	}
	for _, c := range contactModels {
		boat.Contacts = append(boat.Contacts, contactFromModel(c))
	}
	return boat, true, nil
}

// ListBoats returns all listings in catalog order.
func (s *GormStore) ListBoats() ([]domain.Boat, error) {
	return s.listBoats(nil)
}

// ListBoatsByOwner returns listings filtered by owner, same order.
func (s *GormStore) ListBoatsByOwner(ownerID string) ([]domain.Boat, error) {
	return s.listBoats(func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ?", ownerID)
	})
}

// SearchBoats applies a conjunction of optional predicates, keeping the
// catalog order contract (promoted first, then newest).
func (s *GormStore) SearchBoats(f domain.SearchFilter) ([]domain.Boat, error) {
	return s.listBoats(func(tx *gorm.DB) *gorm.DB {
		if q := strings.TrimSpace(f.Query); q != "" {
			like := "%" + q + "%"
			tx = tx.Where(
				"(title ILIKE ? OR description ILIKE ? OR manufacturer ILIKE ? OR model ILIKE ?)",
				like, like, like, like,
			)
		}
		if f.MinPrice > 0 {
			tx = tx.Where("price >= ?", f.MinPrice)
		}
		if f.MaxPrice > 0 {
			tx = tx.Where("price <= ?", f.MaxPrice)
		}
		if f.Year > 0 {
			tx = tx.Where("year = ?", f.Year)
		}
		if f.BoatType != "" {
			tx = tx.Where("boat_type = ?", f.BoatType)
		}
		if loc := strings.TrimSpace(f.Location); loc != "" {
			tx = tx.Where("location ILIKE ?", "%"+loc+"%")
		}
		return tx
	})
}

func (s *GormStore) listBoats(scope func(*gorm.DB) *gorm.DB) ([]domain.Boat, error) {
	var models []BoatModel
	tx := s.db.Order("is_promoted DESC").Order("created_at DESC")
	if scope != nil {
		tx = scope(tx)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Boat, 0, len(models))
	for _, m := range models {
		res = append(res, boatFromModel(m))
	}
	return res, nil
}

// DeleteBoat removes a listing; contacts follow via FK cascade.
func (s *GormStore) DeleteBoat(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BoatContactModel{}, "boat_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BoatModel{}, "id = ?", id).Error
	})
}

// SetBoatStatus updates moderation status and associated messages.
func (s *GormStore) SetBoatStatus(id string, status domain.BoatStatus, aiError, rejectionReason string) error {
	return s.db.Model(&BoatModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           string(status),
			"ai_error":         aiError,
			"rejection_reason": rejectionReason,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// RecordView appends a view-history entry and bumps the counter inside one
// transaction. The read-modify-write on the history array is last-write-wins
// under true concurrency; acceptable for an analytics counter.
func (s *GormStore) RecordView(boatID, viewerID string) (bool, error) {
	if strings.TrimSpace(viewerID) == "" {
		viewerID = "anonymous"
	}
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model BoatModel
		if err := tx.First(&model, "id = ?", boatID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		found = true
		var history []domain.ViewEntry
		if len(model.ViewHistory) > 0 {
			_ = json.Unmarshal(model.ViewHistory, &history)
		}
		history = append(history, domain.ViewEntry{ViewerID: viewerID, ViewedAt: time.Now().UTC()})
		rawHistory, err := json.Marshal(history)
		if err != nil {
			return err
		}
		return tx.Model(&BoatModel{}).Where("id = ?", boatID).Updates(map[string]any{
			"view_count":   gorm.Expr("view_count + 1"),
			"view_history": rawHistory,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// GetSetting looks up one AI setting by key.
func (s *GormStore) GetSetting(key domain.SettingKey) (domain.AiSetting, bool, error) {
	var model AiSettingModel
	if err := s.db.Where("setting_key = ?", string(key)).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.AiSetting{}, false, nil
		}
		return domain.AiSetting{}, false, err
	}
	return settingFromModel(model), true, nil
}

// UpsertSetting inserts or updates a setting keyed by setting_key.
func (s *GormStore) UpsertSetting(setting domain.AiSetting) error {
	model := AiSettingModel{
		ID:           util.NewID(),
		SettingKey:   string(setting.Key),
		SettingValue: setting.Value,
		Description:  setting.Description,
		UpdatedAt:    time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "description", "updated_at"}),
	}).Create(&model).Error
}

// ListSettings returns all settings ordered by key.
func (s *GormStore) ListSettings() ([]domain.AiSetting, error) {
	var models []AiSettingModel
	if err := s.db.Order("setting_key ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AiSetting, 0, len(models))
	for _, m := range models {
		res = append(res, settingFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	role := domain.UserRole(m.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.User{
		ID:           m.ID,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Role:         role,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func boatToModel(b domain.Boat) BoatModel {
	var userID *string
	if strings.TrimSpace(b.OwnerID) != "" {
		value := strings.TrimSpace(b.OwnerID)
		userID = &value
	}
	rawPhotos, _ := json.Marshal(b.PhotoURLs)
	rawHistory, _ := json.Marshal(b.ViewHistory)
	return BoatModel{
		ID:                b.ID,
		UserID:            userID,
		Title:             b.Title,
		Description:       b.Description,
		Price:             b.Price,
		Currency:          b.Currency,
		Year:              b.Year,
		Manufacturer:      b.Manufacturer,
		Model:             b.Model,
		BoatType:          b.BoatType,
		Length:            b.Length,
		Location:          b.Location,
		PhotoURLs:         rawPhotos,
		PhotoCount:        b.PhotoCount,
		IsPromoted:        b.IsPromoted,
		ViewCount:         b.ViewCount,
		ViewHistory:       rawHistory,
		SellerName:        b.SellerName,
		SellerRating:      b.SellerRating,
		SellerReviewCount: b.SellerReviewCount,
		Phone:             b.Phone,
		Status:            string(b.Status),
		AIError:           b.AIError,
		RejectionReason:   b.RejectionReason,
		RawDescription:    b.RawDescription,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

func boatFromModel(m BoatModel) domain.Boat {
	ownerID := ""
	if m.UserID != nil {
		ownerID = strings.TrimSpace(*m.UserID)
	}
	var photos []string
	if len(m.PhotoURLs) > 0 {
		_ = json.Unmarshal(m.PhotoURLs, &photos)
	}
	var history []domain.ViewEntry
	if len(m.ViewHistory) > 0 {
		_ = json.Unmarshal(m.ViewHistory, &history)
	}
	return domain.Boat{
		ID:                m.ID,
		OwnerID:           ownerID,
		Title:             m.Title,
		Description:       m.Description,
		Price:             m.Price,
		Currency:          m.Currency,
		Year:              m.Year,
		Manufacturer:      m.Manufacturer,
		Model:             m.Model,
		BoatType:          m.BoatType,
		Length:            m.Length,
		Location:          m.Location,
		PhotoURLs:         photos,
		PhotoCount:        m.PhotoCount,
		IsPromoted:        m.IsPromoted,
		ViewCount:         m.ViewCount,
		ViewHistory:       history,
		SellerName:        m.SellerName,
		SellerRating:      m.SellerRating,
		SellerReviewCount: m.SellerReviewCount,
		Phone:             m.Phone,
		Status:            domain.BoatStatus(m.Status),
		AIError:           m.AIError,
		RejectionReason:   m.RejectionReason,
		RawDescription:    m.RawDescription,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func contactFromModel(m BoatContactModel) domain.BoatContact {
	return domain.BoatContact{
		ID:     m.ID,
		BoatID: m.BoatID,
		Type:   domain.ContactType(m.Type),
		Value:  m.Value,
	}
}

func settingFromModel(m AiSettingModel) domain.AiSetting {
	return domain.AiSetting{
		Key:         domain.SettingKey(m.SettingKey),
		Value:       m.SettingValue,
		Description: m.Description,
		UpdatedAt:   m.UpdatedAt,
	}
}
