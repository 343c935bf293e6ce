package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"boathub/internal/util"
	"boathub/pkg/ai"
	"boathub/pkg/auth"
	"boathub/pkg/domain"
	"boathub/pkg/store"
)

// Notifier pushes moderation events to connected realtime clients.
type Notifier interface {
	Broadcast(domain.BoatUpdate)
}

// noopNotifier keeps the moderation path working when no hub is wired.
type noopNotifier struct{}

func (noopNotifier) Broadcast(domain.BoatUpdate) {}

// Config holds the collaborators of the core application service.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	AI       *ai.Orchestrator
	Notifier Notifier
	Logger   *slog.Logger
}

// App is the core service layer: auth, listings, AI pipeline, moderation.
type App struct {
	store    store.Store
	sessions store.SessionStore
	ai       *ai.Orchestrator
	notifier Notifier
	logger   *slog.Logger
}

// New wires the application service. Store, Sessions and AI are required.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.AI == nil {
		return nil, fmt.Errorf("ai orchestrator required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		ai:       cfg.AI,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Register creates a user account and issues a session. The first registered
// user becomes admin so a fresh deployment has a moderation account.
func (a *App) Register(phone, password, firstName, lastName string) (domain.User, string, error) {
	normalized, err := auth.NormalizePhone(phone)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserPhone(normalized)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check phone: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrPhoneAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Phone:        normalized,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token. Unknown phone and
// wrong password are indistinguishable to the caller.
func (a *App) Login(phone, password string) (domain.User, string, error) {
	normalized, err := auth.NormalizePhone(phone)
	if err != nil {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByPhone(normalized)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout destroys the server-side session for the token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ListUsers returns all accounts, admin console only.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// BoatInput is the caller-editable part of a listing.
type BoatInput struct {
	Title        string
	Description  string
	Price        int
	Currency     string
	Year         int
	Manufacturer string
	Model        string
	BoatType     string
	Length       string
	Location     string
	PhotoURLs    []string
	SellerName   string
	Phone        string
	Contacts     []domain.BoatContact
}

func (in BoatInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return validateYear(in.Year)
}

// validateYear bounds a model year to [1900, next year].
func validateYear(year int) error {
	maxYear := time.Now().UTC().Year() + 1
	if year < 1900 || year > maxYear {
		return fmt.Errorf("%w: year must be between 1900 and %d", ErrInvalidInput, maxYear)
	}
	return nil
}

func (a *App) newBoat(owner domain.User, in BoatInput, status domain.BoatStatus) domain.Boat {
	now := time.Now().UTC()
	currency := in.Currency
	if currency == "" {
		currency = "RUB"
	}
	return domain.Boat{
		ID:           util.NewID(),
		OwnerID:      owner.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		Currency:     currency,
		Year:         in.Year,
		Manufacturer: in.Manufacturer,
		Model:        in.Model,
		BoatType:     in.BoatType,
		Length:       in.Length,
		Location:     in.Location,
		PhotoURLs:    in.PhotoURLs,
		PhotoCount:   len(in.PhotoURLs),
		SellerName:   in.SellerName,
		Phone:        in.Phone,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CreateBoat is the direct listing path: no AI involved, the boat lands in
// ai_ready awaiting moderation.
func (a *App) CreateBoat(owner domain.User, in BoatInput) (domain.Boat, error) {
	if err := in.validate(); err != nil {
		return domain.Boat{}, err
	}
	boat := a.newBoat(owner, in, domain.StatusAIReady)
	if err := a.store.CreateBoat(boat, in.Contacts); err != nil {
		return domain.Boat{}, fmt.Errorf("create boat: %w", err)
	}
	return a.loadBoat(boat.ID)
}

// AICreateInput is the seller-provided material for the AI listing pipeline.
type AICreateInput struct {
	RawDescription string
	Price          int
	Year           int
	Location       string
	Manufacturer   string
	Model          string
	Length         string
	PhotoURLs      []string
	SellerName     string
	Phone          string
	Contacts       []domain.BoatContact
	UseWebSearch   bool
}

// CreateBoatWithAI runs the listing pipeline: validate the raw description,
// persist the boat as ai_processing together with its contacts, then generate
// the listing content synchronously. A failed or timed-out generation leaves
// the boat in ai_processing with AIError set; it does not advance the status.
// When validation rejects the description the returned error is
// ErrDescriptionRejected and the ValidationResult carries the missing fields.
func (a *App) CreateBoatWithAI(ctx context.Context, owner domain.User, in AICreateInput) (domain.Boat, *ai.ValidationResult, error) {
	if strings.TrimSpace(in.RawDescription) == "" {
		return domain.Boat{}, nil, fmt.Errorf("%w: description required", ErrInvalidInput)
	}

	validation := a.ai.ValidateDescription(ctx, in.RawDescription)
	if !validation.IsValid {
		return domain.Boat{}, &validation, ErrDescriptionRejected
	}
	input := ai.ListingInput{
		RawDescription: in.RawDescription,
		Price:          in.Price,
		Year:           in.Year,
		Location:       in.Location,
		Manufacturer:   in.Manufacturer,
		Model:          in.Model,
		Length:         in.Length,
	}
	if ex := validation.Extracted; ex != nil {
		if input.Price == 0 {
			input.Price = ex.Price
		}
		if input.Year == 0 {
			input.Year = ex.Year
		}
		if input.Location == "" {
			input.Location = ex.Location
		}
		if input.Manufacturer == "" {
			input.Manufacturer = ex.Manufacturer
		}
		if input.Model == "" {
			input.Model = ex.Model
		}
		if input.Length == "" {
			input.Length = ex.Length
		}
	}

	boat := a.newBoat(owner, BoatInput{
		Title:        "Объявление обрабатывается",
		Description:  in.RawDescription,
		Price:        input.Price,
		Year:         input.Year,
		Manufacturer: input.Manufacturer,
		Model:        input.Model,
		Length:       input.Length,
		Location:     input.Location,
		PhotoURLs:    in.PhotoURLs,
		SellerName:   in.SellerName,
		Phone:        in.Phone,
	}, domain.StatusAIProcessing)
	boat.RawDescription = in.RawDescription
	if err := a.store.CreateBoat(boat, in.Contacts); err != nil {
		return domain.Boat{}, nil, fmt.Errorf("create boat: %w", err)
	}

	draft, sources, warnings, err := a.generate(ctx, input, in.UseWebSearch)
	if err != nil {
		a.logger.Warn("listing generation failed",
			slog.String("boat_id", boat.ID),
			slog.String("error", err.Error()),
		)
		if serr := a.store.SetBoatStatus(boat.ID, domain.StatusAIProcessing, err.Error(), ""); serr != nil {
			a.logger.Error("record ai error", slog.String("boat_id", boat.ID), slog.String("error", serr.Error()))
		}
		return a.finishLoad(boat.ID, &validation)
	}

	boat.Title = draft.Title
	boat.Description = draft.Description
	if draft.Manufacturer != "" {
		boat.Manufacturer = draft.Manufacturer
	}
	if draft.Model != "" {
		boat.Model = draft.Model
	}
	if draft.BoatType != "" {
		boat.BoatType = draft.BoatType
	}
	if draft.Length != "" {
		boat.Length = draft.Length
	}
	boat.Status = domain.StatusAIReady
	boat.AIError = ""
	boat.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBoat(boat); err != nil {
		return domain.Boat{}, nil, fmt.Errorf("save boat: %w", err)
	}
	if len(sources) > 0 || len(warnings) > 0 {
		a.logger.Info("listing enriched",
			slog.String("boat_id", boat.ID),
			slog.Int("sources", len(sources)),
			slog.Int("warnings", len(warnings)),
		)
	}
	return a.finishLoad(boat.ID, &validation)
}

func (a *App) generate(ctx context.Context, input ai.ListingInput, useWebSearch bool) (ai.ListingDraft, []string, []string, error) {
	if useWebSearch {
		enriched, err := a.ai.GenerateListingWithWebSearch(ctx, input)
		if err != nil {
			return ai.ListingDraft{}, nil, nil, err
		}
		return enriched.ListingDraft, enriched.Sources, enriched.Warnings, nil
	}
	draft, err := a.ai.GenerateListing(ctx, input)
	return draft, nil, nil, err
}

func (a *App) finishLoad(id string, validation *ai.ValidationResult) (domain.Boat, *ai.ValidationResult, error) {
	boat, err := a.loadBoat(id)
	return boat, validation, err
}

func (a *App) loadBoat(id string) (domain.Boat, error) {
	boat, ok, err := a.store.GetBoat(id)
	if err != nil {
		return domain.Boat{}, fmt.Errorf("load boat: %w", err)
	}
	if !ok {
		return domain.Boat{}, ErrNotFound
	}
	return boat, nil
}

// ListBoats returns the public catalog: approved listings, promoted first,
// then newest first.
func (a *App) ListBoats() ([]domain.Boat, error) {
	boats, err := a.store.ListBoats()
	if err != nil {
		return nil, fmt.Errorf("list boats: %w", err)
	}
	return filterApproved(boats), nil
}

// GetBoat returns a listing. Boats not yet approved are visible only to their
// owner and admins; everyone else gets ErrNotFound so unpublished listings do
// not leak.
func (a *App) GetBoat(viewer domain.User, id string) (domain.Boat, error) {
	boat, err := a.loadBoat(id)
	if err != nil {
		return domain.Boat{}, err
	}
	if boat.Status == domain.StatusApproved {
		return boat, nil
	}
	if viewer.ID != "" && (viewer.ID == boat.OwnerID || viewer.Role == domain.RoleAdmin) {
		return boat, nil
	}
	return domain.Boat{}, ErrNotFound
}

// ListBoatsByOwner returns every listing of one seller regardless of status.
func (a *App) ListBoatsByOwner(ownerID string) ([]domain.Boat, error) {
	return a.store.ListBoatsByOwner(ownerID)
}

// BoatPatch is a partial listing update. Nil fields are left as they are, so
// a client only sends what changed.
type BoatPatch struct {
	Title        *string
	Description  *string
	Price        *int
	Currency     *string
	Year         *int
	Manufacturer *string
	Model        *string
	BoatType     *string
	Length       *string
	Location     *string
	PhotoURLs    []string
	SellerName   *string
	Phone        *string
}

func (p BoatPatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if p.Price != nil && *p.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if p.Year != nil {
		return validateYear(*p.Year)
	}
	return nil
}

// UpdateBoat applies a partial edit to listing content. Only the owner or an
// admin may edit, and editing never changes moderation status.
func (a *App) UpdateBoat(user domain.User, id string, patch BoatPatch) (domain.Boat, error) {
	boat, err := a.loadBoat(id)
	if err != nil {
		return domain.Boat{}, err
	}
	if boat.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return domain.Boat{}, ErrForbidden
	}
	if err := patch.validate(); err != nil {
		return domain.Boat{}, err
	}
	if patch.Title != nil {
		boat.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		boat.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		boat.Price = *patch.Price
	}
	if patch.Currency != nil && *patch.Currency != "" {
		boat.Currency = *patch.Currency
	}
	if patch.Year != nil {
		boat.Year = *patch.Year
	}
	if patch.Manufacturer != nil {
		boat.Manufacturer = *patch.Manufacturer
	}
	if patch.Model != nil {
		boat.Model = *patch.Model
	}
	if patch.BoatType != nil {
		boat.BoatType = *patch.BoatType
	}
	if patch.Length != nil {
		boat.Length = *patch.Length
	}
	if patch.Location != nil {
		boat.Location = *patch.Location
	}
	if patch.PhotoURLs != nil {
		boat.PhotoURLs = patch.PhotoURLs
		boat.PhotoCount = len(patch.PhotoURLs)
	}
	if patch.SellerName != nil {
		boat.SellerName = *patch.SellerName
	}
	if patch.Phone != nil {
		boat.Phone = *patch.Phone
	}
	boat.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBoat(boat); err != nil {
		return domain.Boat{}, fmt.Errorf("save boat: %w", err)
	}
	return a.loadBoat(id)
}

// DeleteBoat removes a listing. Owner or admin only.
func (a *App) DeleteBoat(user domain.User, id string) error {
	boat, err := a.loadBoat(id)
	if err != nil {
		return err
	}
	if boat.OwnerID != user.ID && user.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	if err := a.store.DeleteBoat(id); err != nil {
		return fmt.Errorf("delete boat: %w", err)
	}
	return nil
}

// SearchBoats applies a conjunctive filter over the approved catalog.
func (a *App) SearchBoats(filter domain.SearchFilter) ([]domain.Boat, error) {
	boats, err := a.store.SearchBoats(filter)
	if err != nil {
		return nil, fmt.Errorf("search boats: %w", err)
	}
	return filterApproved(boats), nil
}

// AISearch interprets a free-text query into a structured filter, then
// searches. Interpretation degrades to a plain keyword search on any model
// failure, so this never errors on the AI side.
func (a *App) AISearch(ctx context.Context, query string) ([]domain.Boat, domain.SearchFilter, error) {
	filter := a.ai.InterpretSearchQuery(ctx, query)
	boats, err := a.SearchBoats(filter)
	if err != nil {
		return nil, filter, err
	}
	return boats, filter, nil
}

// RecordView counts a catalog view. viewerID may be empty for anonymous
// visitors. Returns false when the boat does not exist.
func (a *App) RecordView(boatID, viewerID string) (bool, error) {
	return a.store.RecordView(boatID, viewerID)
}

// AdminListBoats returns every listing in every status for the moderation
// console.
func (a *App) AdminListBoats() ([]domain.Boat, error) {
	return a.store.ListBoats()
}

// ApproveBoat publishes a listing awaiting moderation and broadcasts the
// status change. Only ai_ready boats can be approved.
func (a *App) ApproveBoat(id string) (domain.Boat, error) {
	return a.moderate(id, domain.StatusApproved, "")
}

// RejectBoat declines a listing awaiting moderation with a reason and
// broadcasts the status change. Only ai_ready boats can be rejected.
func (a *App) RejectBoat(id, reason string) (domain.Boat, error) {
	return a.moderate(id, domain.StatusRejected, strings.TrimSpace(reason))
}

func (a *App) moderate(id string, status domain.BoatStatus, reason string) (domain.Boat, error) {
	boat, err := a.loadBoat(id)
	if err != nil {
		return domain.Boat{}, err
	}
	if boat.Status != domain.StatusAIReady {
		return domain.Boat{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, boat.Status, status)
	}
	if err := a.store.SetBoatStatus(id, status, "", reason); err != nil {
		return domain.Boat{}, fmt.Errorf("set status: %w", err)
	}
	a.notifier.Broadcast(domain.BoatUpdate{
		Type:      "boat_update",
		BoatID:    id,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
	return a.loadBoat(id)
}

// UpdateBoatPromotion flags a listing as promoted so it sorts ahead of
// regular catalog entries, or clears the flag.
func (a *App) UpdateBoatPromotion(id string, promoted bool) error {
	boat, err := a.loadBoat(id)
	if err != nil {
		return err
	}
	boat.IsPromoted = promoted
	boat.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBoat(boat); err != nil {
		return fmt.Errorf("save boat: %w", err)
	}
	return nil
}

// ListSettings returns every known AI setting key, with stored overrides where
// present and empty values where the hardcoded default applies.
func (a *App) ListSettings() ([]domain.AiSetting, error) {
	stored, err := a.store.ListSettings()
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	byKey := make(map[domain.SettingKey]domain.AiSetting, len(stored))
	for _, s := range stored {
		byKey[s.Key] = s
	}
	out := make([]domain.AiSetting, 0, len(domain.KnownSettingKeys))
	for _, key := range domain.KnownSettingKeys {
		if s, ok := byKey[key]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, domain.AiSetting{Key: key})
	}
	return out, nil
}

// UpsertSetting stores an AI setting override. Keys outside the known set are
// rejected.
func (a *App) UpsertSetting(setting domain.AiSetting) error {
	if !domain.IsValidSettingKey(setting.Key) {
		return fmt.Errorf("%w: %q", ErrInvalidSettingKey, setting.Key)
	}
	setting.UpdatedAt = time.Now().UTC()
	if err := a.store.UpsertSetting(setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// SettingLookup adapts the store to the orchestrator's settings source.
func (a *App) SettingLookup() ai.SettingsFunc {
	return SettingLookup(a.store)
}

// SettingLookup builds an orchestrator settings source over a store. Empty
// stored values are treated as absent so defaults stay in effect.
func SettingLookup(s store.Store) ai.SettingsFunc {
	return func(_ context.Context, key domain.SettingKey) (string, bool) {
		setting, ok, err := s.GetSetting(key)
		if err != nil || !ok || strings.TrimSpace(setting.Value) == "" {
			return "", false
		}
		return setting.Value, true
	}
}

func filterApproved(boats []domain.Boat) []domain.Boat {
	out := make([]domain.Boat, 0, len(boats))
	for _, b := range boats {
		if b.Status == domain.StatusApproved {
			out = append(out, b)
		}
	}
	return out
}
