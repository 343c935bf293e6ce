package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boathub/internal/app"
	"boathub/internal/ratelimit"
	"boathub/internal/util"
	"boathub/internal/ws"
	"boathub/pkg/auth"
	"boathub/pkg/domain"
	"boathub/pkg/storage"
)

const (
	sessionCookieName = "boathub_session"
	presignTTL        = 15 * time.Minute
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	Objects                    storage.ObjectStore
	Hub                        *ws.Hub
	AllowedOrigins             []string
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	SessionTTL                 time.Duration
	CookieSecure               bool
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	objects         storage.ObjectStore
	hub             *ws.Hub
	mux             *http.ServeMux
	allowedOrigins  []string
	sessionTTL      time.Duration
	cookieSecure    bool
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "boathub:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		objects:         cfg.Objects,
		hub:             cfg.Hub,
		mux:             http.NewServeMux(),
		allowedOrigins:  cfg.AllowedOrigins,
		sessionTTL:      sessionTTL,
		cookieSecure:    cfg.CookieSecure,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.allowedOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/user", s.handleCurrentUser)

	// catalog & listings
	s.mux.HandleFunc("GET /api/boats", s.handleListBoats)
	s.mux.HandleFunc("GET /api/boats/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/boats/ai-search", s.handleAISearch)
	s.mux.Handle("GET /api/boats/my", s.authenticated(s.handleMyBoats))
	s.mux.Handle("POST /api/boats", s.authenticated(s.handleCreateBoat))
	s.mux.Handle("POST /api/boats/ai-create", s.authenticated(s.handleAICreateBoat))
	s.mux.HandleFunc("GET /api/boats/{id}", s.handleGetBoat)
	s.mux.Handle("PUT /api/boats/{id}", s.authenticated(s.handleUpdateBoat))
	s.mux.Handle("DELETE /api/boats/{id}", s.authenticated(s.handleDeleteBoat))
	s.mux.HandleFunc("POST /api/boats/{id}/view", s.handleRecordView)

	// object storage
	s.mux.Handle("POST /api/objects/upload", s.authenticated(s.handleObjectUpload))
	s.mux.Handle("POST /api/objects/download-url", s.authenticated(s.handleObjectDownloadURL))
	s.mux.HandleFunc("GET /objects/{key...}", s.handleObjectGet)

	// admin
	s.mux.Handle("GET /api/admin/boats", s.adminOnly(s.handleAdminBoats))
	s.mux.Handle("POST /api/admin/boats/{id}/approve", s.adminOnly(s.handleApprove))
	s.mux.Handle("POST /api/admin/boats/{id}/reject", s.adminOnly(s.handleReject))
	s.mux.Handle("POST /api/admin/boats/{id}/promote", s.adminOnly(s.handlePromote))
	s.mux.Handle("GET /api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("GET /api/admin/ai-settings", s.adminOnly(s.handleListSettings))
	s.mux.Handle("PUT /api/admin/ai-settings", s.adminOnly(s.handleUpsertSetting))

	// realtime moderation feed
	s.mux.Handle("GET /ws", s.adminOnly(s.handleWebsocket))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "auth.session", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "no_session")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := sessionToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// viewer resolves the session if present; anonymous requests get a zero user.
func (s *Server) viewer(r *http.Request) domain.User {
	user, _ := s.authorize(r)
	return user
}

type registerRequest struct {
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// authResponse is the shape of every auth endpoint reply. The zero value is
// the anonymous state: {"authenticated": false, "user": null}.
type authResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Phone, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{Authenticated: true, User: &user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Phone, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Authenticated: true, User: &user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := sessionToken(r); ok {
		if err := s.app.Logout(token); err != nil {
			s.audit(r, "auth.logout", "fail", "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
	}
	s.audit(r, "auth.logout", "success")
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, authResponse{})
}

// handleCurrentUser answers 200 for everyone; anonymous callers get the
// unauthenticated shape rather than an error.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(r)
	if !ok {
		writeJSON(w, http.StatusOK, authResponse{})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Authenticated: true, User: &user})
}

func (s *Server) handleListBoats(w http.ResponseWriter, r *http.Request) {
	boats, err := s.app.ListBoats()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boats)
}

func (s *Server) handleMyBoats(w http.ResponseWriter, r *http.Request, user domain.User) {
	boats, err := s.app.ListBoatsByOwner(user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boats)
}

func (s *Server) handleGetBoat(w http.ResponseWriter, r *http.Request) {
	boat, err := s.app.GetBoat(s.viewer(r), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boat)
}

type boatRequest struct {
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Price        int                  `json:"price"`
	Currency     string               `json:"currency"`
	Year         int                  `json:"year"`
	Manufacturer string               `json:"manufacturer"`
	Model        string               `json:"model"`
	BoatType     string               `json:"boatType"`
	Length       string               `json:"length"`
	Location     string               `json:"location"`
	PhotoURLs    []string             `json:"photoUrls"`
	SellerName   string               `json:"sellerName"`
	Phone        string               `json:"phone"`
	Contacts     []domain.BoatContact `json:"contacts"`
}

func (req boatRequest) toInput() app.BoatInput {
	return app.BoatInput{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		Year:         req.Year,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		BoatType:     req.BoatType,
		Length:       req.Length,
		Location:     req.Location,
		PhotoURLs:    req.PhotoURLs,
		SellerName:   req.SellerName,
		Phone:        req.Phone,
		Contacts:     req.Contacts,
	}
}

func (s *Server) handleCreateBoat(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req boatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	boat, err := s.app.CreateBoat(user, req.toInput())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, boat)
}

type aiCreateRequest struct {
	Description  string               `json:"description"`
	Price        int                  `json:"price"`
	Year         int                  `json:"year"`
	Location     string               `json:"location"`
	Manufacturer string               `json:"manufacturer"`
	Model        string               `json:"model"`
	Length       string               `json:"length"`
	PhotoURLs    []string             `json:"photoUrls"`
	SellerName   string               `json:"sellerName"`
	Phone        string               `json:"phone"`
	Contacts     []domain.BoatContact `json:"contacts"`
	UseWebSearch bool                 `json:"useWebSearch"`
}

func (s *Server) handleAICreateBoat(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req aiCreateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	boat, validation, err := s.app.CreateBoatWithAI(r.Context(), user, app.AICreateInput{
		RawDescription: req.Description,
		Price:          req.Price,
		Year:           req.Year,
		Location:       req.Location,
		Manufacturer:   req.Manufacturer,
		Model:          req.Model,
		Length:         req.Length,
		PhotoURLs:      req.PhotoURLs,
		SellerName:     req.SellerName,
		Phone:          req.Phone,
		Contacts:       req.Contacts,
		UseWebSearch:   req.UseWebSearch,
	})
	if errors.Is(err, app.ErrDescriptionRejected) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "description rejected",
			"validation": validation,
		})
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"boat":       boat,
		"validation": validation,
	})
}

// boatUpdateRequest uses pointer fields so an omitted field is
// distinguishable from an explicit zero and stays untouched.
type boatUpdateRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Price        *int     `json:"price"`
	Currency     *string  `json:"currency"`
	Year         *int     `json:"year"`
	Manufacturer *string  `json:"manufacturer"`
	Model        *string  `json:"model"`
	BoatType     *string  `json:"boatType"`
	Length       *string  `json:"length"`
	Location     *string  `json:"location"`
	PhotoURLs    []string `json:"photoUrls"`
	SellerName   *string  `json:"sellerName"`
	Phone        *string  `json:"phone"`
}

func (s *Server) handleUpdateBoat(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req boatUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	boat, err := s.app.UpdateBoat(user, r.PathValue("id"), app.BoatPatch{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		Year:         req.Year,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
		BoatType:     req.BoatType,
		Length:       req.Length,
		Location:     req.Location,
		PhotoURLs:    req.PhotoURLs,
		SellerName:   req.SellerName,
		Phone:        req.Phone,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boat)
}

func (s *Server) handleDeleteBoat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteBoat(user, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := q.Get("query")
	if keyword == "" {
		keyword = q.Get("q")
	}
	filter := domain.SearchFilter{
		Query:    keyword,
		MinPrice: parseIntParam(q.Get("minPrice")),
		MaxPrice: parseIntParam(q.Get("maxPrice")),
		Year:     parseIntParam(q.Get("year")),
		BoatType: q.Get("boatType"),
		Location: q.Get("location"),
	}
	boats, err := s.app.SearchBoats(filter)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boats)
}

type aiSearchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleAISearch(w http.ResponseWriter, r *http.Request) {
	var req aiSearchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	boats, filter, err := s.app.AISearch(r.Context(), req.Query)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"boats":             boats,
		"interpretedParams": filter,
	})
}

func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	found, err := s.app.RecordView(r.PathValue("id"), s.viewer(r).ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "boat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type objectUploadRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleObjectUpload(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if s.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage unavailable")
		return
	}
	var req objectUploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	key := storage.PhotoKey(req.Filename)
	uploadURL, err := s.objects.PresignPut(r.Context(), key, presignTTL)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"uploadUrl": uploadURL,
		"path":      "/objects/" + key,
	})
}

type objectDownloadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleObjectDownloadURL(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if s.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage unavailable")
		return
	}
	var req objectDownloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	key := strings.TrimPrefix(strings.TrimSpace(req.Path), "/objects/")
	if key == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	url, err := s.objects.PresignGet(r.Context(), key, presignTTL)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleObjectGet(w http.ResponseWriter, r *http.Request) {
	if s.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage unavailable")
		return
	}
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "object key is required")
		return
	}
	url, err := s.objects.PresignGet(r.Context(), key, presignTTL)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleAdminBoats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	boats, err := s.app.AdminListBoats()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boats)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, admin domain.User) {
	boat, err := s.app.ApproveBoat(r.PathValue("id"))
	if err != nil {
		s.audit(r, "moderation.approve", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "moderation.approve", "success", "user_id", admin.ID, "boat_id", boat.ID)
	writeJSON(w, http.StatusOK, boat)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req rejectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	boat, err := s.app.RejectBoat(r.PathValue("id"), req.Reason)
	if err != nil {
		s.audit(r, "moderation.reject", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "moderation.reject", "success", "user_id", admin.ID, "boat_id", boat.ID)
	writeJSON(w, http.StatusOK, boat)
}

type promoteRequest struct {
	Promoted bool `json:"promoted"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req promoteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.UpdateBoatPromotion(r.PathValue("id"), req.Promoted); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "moderation.promote", "success", "user_id", admin.ID, "boat_id", r.PathValue("id"), "promoted", req.Promoted)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := s.app.ListUsers()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request, _ domain.User) {
	settings, err := s.app.ListSettings()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type settingRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (s *Server) handleUpsertSetting(w http.ResponseWriter, r *http.Request, admin domain.User) {
	var req settingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	err := s.app.UpsertSetting(domain.AiSetting{
		Key:         domain.SettingKey(req.Key),
		Value:       req.Value,
		Description: req.Description,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "settings.upsert", "success", "user_id", admin.ID, "key", req.Key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime feed unavailable")
		return
	}
	s.hub.ServeHTTP(w, r)
}

// session cookie helpers

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func parseIntParam(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps service-layer sentinels to HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrPhoneAlreadyExists):
		writeError(w, http.StatusConflict, "phone already registered")
	case errors.Is(err, app.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrInvalidSettingKey),
		errors.Is(err, auth.ErrInvalidPhone),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error",
			"path", r.URL.Path,
			"method", r.Method,
			"error", err.Error(),
			"request_id", util.RequestIDFromRequest(r),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
