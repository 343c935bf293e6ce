package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"boathub/internal/app"
	"boathub/pkg/ai"
	"boathub/pkg/domain"
	"boathub/pkg/store"
)

const (
	testValidReply = `{"isValid": true, "missingFields": [], "extractedData": {"price": 1500000, "location": "Сочи", "year": 2020, "manufacturer": "Yamaha", "model": "VX", "boatType": "Гидроцикл", "length": "3.35"}}`
	testDraftReply = `{"title": "Гидроцикл Yamaha VX 2020", "description": "Ухоженный гидроцикл Yamaha VX 2020 года, один владелец, полный комплект документов.", "manufacturer": "Yamaha", "model": "VX", "boatType": "Гидроцикл", "length": "3.35"}`
)

type scriptedGenerator struct {
	reply func(req ai.Request) (string, error)
}

func (g *scriptedGenerator) GenerateText(_ context.Context, req ai.Request) (string, error) {
	if g.reply != nil {
		return g.reply(req)
	}
	if strings.Contains(req.SystemPrompt, "missingFields") {
		return testValidReply, nil
	}
	return testDraftReply, nil
}

type fakeObjectStore struct{}

func (fakeObjectStore) Put(context.Context, string, io.Reader, int64, string) error { return nil }
func (fakeObjectStore) Get(context.Context, string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("")), "image/jpeg", nil
}
func (fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.test/presigned-get/" + key, nil
}
func (fakeObjectStore) PresignPut(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.test/presigned-put/" + key, nil
}
func (fakeObjectStore) Delete(context.Context, string) error { return nil }

type testEnv struct {
	srv *httptest.Server
	app *app.App
}

func newTestEnv(t *testing.T, cfgChanges ...func(*Config)) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	orch := ai.NewOrchestrator(&scriptedGenerator{}, nil, app.SettingLookup(mem), 2*time.Second)
	a, err := app.New(app.Config{
		Store:    mem,
		Sessions: store.NewMemorySessionStore(time.Hour),
		AI:       orch,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	redis := miniredis.RunT(t)
	cfg := Config{
		App:       a,
		Objects:   fakeObjectStore{},
		RedisAddr: redis.Addr(),
	}
	for _, change := range cfgChanges {
		change(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, app: a}
}

// newClient returns an http client with its own cookie jar, i.e. one browser.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// register creates an account through the API; the first one is the admin.
func register(t *testing.T, env *testEnv, client *http.Client, phone string) domain.User {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/register", map[string]string{
		"phone":    phone,
		"password": "secret1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", phone, resp.StatusCode)
	}
	var body struct {
		User domain.User `json:"user"`
	}
	decodeBody(t, resp, &body)
	return body.User
}

func createApprovedBoat(t *testing.T, env *testEnv, owner *http.Client, adminClient *http.Client, title string, price int) domain.Boat {
	t.Helper()
	resp := doJSON(t, owner, http.MethodPost, env.srv.URL+"/api/boats", map[string]any{
		"title": title,
		"price": price,
		"year":  2020,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create boat: status %d", resp.StatusCode)
	}
	var boat domain.Boat
	decodeBody(t, resp, &boat)

	approve := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/admin/boats/"+boat.ID+"/approve", nil)
	if approve.StatusCode != http.StatusOK {
		t.Fatalf("approve boat: status %d", approve.StatusCode)
	}
	decodeBody(t, approve, &boat)
	return boat
}

func TestAuthCookieFlow(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)

	user := register(t, env, client, "+79990000001")
	if user.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", user.Role)
	}

	type authBody struct {
		Authenticated bool         `json:"authenticated"`
		User          *domain.User `json:"user"`
	}

	resp := doJSON(t, client, http.MethodGet, env.srv.URL+"/api/auth/user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current user: status %d", resp.StatusCode)
	}
	var current authBody
	decodeBody(t, resp, &current)
	if !current.Authenticated || current.User == nil || current.User.ID != user.ID {
		t.Fatalf("current user = %+v", current)
	}

	resp = doJSON(t, client, http.MethodPost, env.srv.URL+"/api/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Anonymous identity checks succeed with the unauthenticated shape.
	resp = doJSON(t, client, http.MethodGet, env.srv.URL+"/api/auth/user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("after logout: status %d, want 200", resp.StatusCode)
	}
	var anon authBody
	decodeBody(t, resp, &anon)
	if anon.Authenticated || anon.User != nil {
		t.Fatalf("after logout = %+v, want authenticated:false user:null", anon)
	}

	resp = doJSON(t, client, http.MethodPost, env.srv.URL+"/api/login", map[string]string{
		"phone":    "+79990000001",
		"password": "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	var loggedIn authBody
	decodeBody(t, resp, &loggedIn)
	if !loggedIn.Authenticated || loggedIn.User == nil {
		t.Fatalf("login body = %+v, want authenticated:true with user", loggedIn)
	}
}

func TestLoginFailureDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)
	register(t, env, newClient(t), "+79990000001")

	readFailure := func(phone, password string) (int, string) {
		resp := doJSON(t, newClient(t), http.MethodPost, env.srv.URL+"/api/login", map[string]string{
			"phone":    phone,
			"password": password,
		})
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	unknownStatus, unknownBody := readFailure("+79990000099", "secret1")
	wrongStatus, wrongBody := readFailure("+79990000001", "oops-wrong")

	if unknownStatus != http.StatusUnauthorized || wrongStatus != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401 for both", unknownStatus, wrongStatus)
	}
	if unknownBody != wrongBody {
		t.Fatalf("unknown-phone and wrong-password responses differ: %q vs %q", unknownBody, wrongBody)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.LoginRateLimitPerMinute = 1
	})
	register(t, env, newClient(t), "+79990000001")

	client := newClient(t)
	body := map[string]string{"phone": "+79990000001", "password": "secret1"}

	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/login", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first login: status %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, env.srv.URL+"/api/login", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login: status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("429 response should carry Retry-After")
	}
}

func TestCatalogOrderAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")

	older := createApprovedBoat(t, env, adminClient, adminClient, "Старый катер", 100)
	newer := createApprovedBoat(t, env, adminClient, adminClient, "Новый катер", 200)
	promoted := createApprovedBoat(t, env, adminClient, adminClient, "Продвигаемый катер", 300)
	promote := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/admin/boats/"+promoted.ID+"/promote", map[string]bool{"promoted": true})
	promote.Body.Close()
	if promote.StatusCode != http.StatusNoContent {
		t.Fatalf("promote: status %d", promote.StatusCode)
	}

	// Pending boat stays out of the public catalog.
	resp := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/boats", map[string]any{
		"title": "Ожидает модерации",
		"price": 1,
		"year":  2010,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pending: status %d", resp.StatusCode)
	}

	list := doJSON(t, newClient(t), http.MethodGet, env.srv.URL+"/api/boats", nil)
	var boats []domain.Boat
	decodeBody(t, list, &boats)
	if len(boats) != 3 {
		t.Fatalf("catalog size = %d, want 3", len(boats))
	}
	want := []string{promoted.ID, newer.ID, older.ID}
	for i, id := range want {
		if boats[i].ID != id {
			t.Fatalf("catalog[%d] = %s (%s), want %s", i, boats[i].ID, boats[i].Title, id)
		}
	}
}

func TestBoatOwnership(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")
	ownerClient := newClient(t)
	register(t, env, ownerClient, "+79990000002")
	strangerClient := newClient(t)
	register(t, env, strangerClient, "+79990000003")

	boat := createApprovedBoat(t, env, ownerClient, adminClient, "Яхта", 1_000)

	update := map[string]any{"title": "Чужая яхта", "price": 1}
	resp := doJSON(t, strangerClient, http.MethodPut, env.srv.URL+"/api/boats/"+boat.ID, update)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger update: status %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, strangerClient, http.MethodDelete, env.srv.URL+"/api/boats/"+boat.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger delete: status %d, want 403", resp.StatusCode)
	}

	// No session at all never reaches the ownership check.
	resp = doJSON(t, newClient(t), http.MethodDelete, env.srv.URL+"/api/boats/"+boat.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: status %d, want 401", resp.StatusCode)
	}

	resp = doJSON(t, ownerClient, http.MethodDelete, env.srv.URL+"/api/boats/"+boat.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("owner delete: status %d, want 204", resp.StatusCode)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")
	userClient := newClient(t)
	register(t, env, userClient, "+79990000002")

	for _, path := range []string{"/api/admin/boats", "/api/admin/users", "/api/admin/ai-settings", "/ws"} {
		resp := doJSON(t, userClient, http.MethodGet, env.srv.URL+path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("GET %s as user: status %d, want 403", path, resp.StatusCode)
		}
		resp = doJSON(t, newClient(t), http.MethodGet, env.srv.URL+path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s anonymous: status %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestModerationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")

	resp := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/boats", map[string]any{
		"title": "Катер на модерацию",
		"price": 500_000,
		"year":  2019,
	})
	var boat domain.Boat
	decodeBody(t, resp, &boat)

	reject := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/admin/boats/"+boat.ID+"/reject", map[string]string{
		"reason": "мало фотографий",
	})
	var rejected domain.Boat
	decodeBody(t, reject, &rejected)
	if rejected.Status != domain.StatusRejected || rejected.RejectionReason != "мало фотографий" {
		t.Fatalf("rejected boat = %+v", rejected)
	}

	// A decided boat cannot be approved afterwards.
	again := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/admin/boats/"+boat.ID+"/approve", nil)
	again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("approve after reject: status %d, want 409", again.StatusCode)
	}
}

func TestAICreateOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)
	register(t, env, client, "+79990000001")

	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/boats/ai-create", map[string]any{
		"description": "Продаю гидроцикл Yamaha VX 2020 года, 1.5 млн, Сочи",
		"contacts": []map[string]string{
			{"type": "phone", "value": "+79990000001"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("ai-create: status %d, body %s", resp.StatusCode, body)
	}
	var body struct {
		Boat domain.Boat `json:"boat"`
	}
	decodeBody(t, resp, &body)
	if body.Boat.Status != domain.StatusAIReady {
		t.Fatalf("boat status = %s, want ai_ready", body.Boat.Status)
	}
	if body.Boat.Title != "Гидроцикл Yamaha VX 2020" {
		t.Fatalf("boat title = %q", body.Boat.Title)
	}
	if len(body.Boat.Contacts) != 1 {
		t.Fatalf("contacts = %+v", body.Boat.Contacts)
	}
}

func TestAICreateRejectedDescription(t *testing.T) {
	env := newTestEnvWithReply(t, func(req ai.Request) (string, error) {
		return `{"isValid": false, "missingFields": ["price"]}`, nil
	})
	client := newClient(t)
	register(t, env, client, "+79990000001")

	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/boats/ai-create", map[string]any{
		"description": "Продаю лодку",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("ai-create with bad description: status %d, want 422", resp.StatusCode)
	}
	var out struct {
		Validation ai.ValidationResult `json:"validation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode 422 body: %v", err)
	}
	if len(out.Validation.MissingFields) != 1 || out.Validation.MissingFields[0] != "price" {
		t.Fatalf("missing fields = %v", out.Validation.MissingFields)
	}
}

func newTestEnvWithReply(t *testing.T, reply func(ai.Request) (string, error)) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	orch := ai.NewOrchestrator(&scriptedGenerator{reply: reply}, nil, app.SettingLookup(mem), 2*time.Second)
	a, err := app.New(app.Config{
		Store:    mem,
		Sessions: store.NewMemorySessionStore(time.Hour),
		AI:       orch,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	redis := miniredis.RunT(t)
	s, err := New(Config{App: a, Objects: fakeObjectStore{}, RedisAddr: redis.Addr()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, app: a}
}

func TestRecordViewOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")
	boat := createApprovedBoat(t, env, adminClient, adminClient, "Катер", 100)

	resp := doJSON(t, newClient(t), http.MethodPost, env.srv.URL+"/api/boats/"+boat.ID+"/view", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("record view: status %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, newClient(t), http.MethodPost, env.srv.URL+"/api/boats/missing/view", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("record view on missing boat: status %d, want 404", resp.StatusCode)
	}
}

func TestObjectEndpoints(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)
	register(t, env, client, "+79990000001")

	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/objects/upload", map[string]string{
		"filename": "bow.jpg",
	})
	var upload struct {
		UploadURL string `json:"uploadUrl"`
		Path      string `json:"path"`
	}
	decodeBody(t, resp, &upload)
	if !strings.HasPrefix(upload.UploadURL, "http://minio.test/presigned-put/photos/") {
		t.Fatalf("upload url = %q", upload.UploadURL)
	}
	if !strings.HasPrefix(upload.Path, "/objects/photos/") || !strings.HasSuffix(upload.Path, ".jpg") {
		t.Fatalf("object path = %q", upload.Path)
	}

	resp = doJSON(t, client, http.MethodPost, env.srv.URL+"/api/objects/download-url", map[string]string{
		"path": upload.Path,
	})
	var download struct {
		URL string `json:"url"`
	}
	decodeBody(t, resp, &download)
	wantKey := strings.TrimPrefix(upload.Path, "/objects/")
	if download.URL != "http://minio.test/presigned-get/"+wantKey {
		t.Fatalf("download url = %q", download.URL)
	}

	// Direct object fetch redirects to the presigned URL.
	get := doJSON(t, newClient(t), http.MethodGet, env.srv.URL+upload.Path, nil)
	get.Body.Close()
	if get.StatusCode != http.StatusFound {
		t.Fatalf("object get: status %d, want 302", get.StatusCode)
	}
	if loc := get.Header.Get("Location"); loc != download.URL {
		t.Fatalf("redirect location = %q, want %q", loc, download.URL)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")
	createApprovedBoat(t, env, adminClient, adminClient, "Катер Bayliner", 2_000_000)
	match := createApprovedBoat(t, env, adminClient, adminClient, "Гидроцикл Yamaha", 700_000)

	searchOne := func(url string) {
		t.Helper()
		resp := doJSON(t, newClient(t), http.MethodGet, url, nil)
		var boats []domain.Boat
		decodeBody(t, resp, &boats)
		if len(boats) != 1 || boats[0].ID != match.ID {
			t.Fatalf("%s: result = %+v, want only %s", url, boats, match.ID)
		}
	}

	searchOne(fmt.Sprintf("%s/api/boats/search?query=yamaha&minPrice=%d&maxPrice=%d", env.srv.URL, 500_000, 1_000_000))
	// The short form stays accepted as an alias.
	searchOne(env.srv.URL + "/api/boats/search?q=yamaha")
	// The keyword alone must narrow the catalog.
	searchOne(env.srv.URL + "/api/boats/search?query=yamaha")

	// Unparseable numeric params are ignored, not treated as a prefix number.
	resp := doJSON(t, newClient(t), http.MethodGet, env.srv.URL+"/api/boats/search?minPrice=500abc", nil)
	var boats []domain.Boat
	decodeBody(t, resp, &boats)
	if len(boats) != 2 {
		t.Fatalf("garbage minPrice: got %d boats, want the full catalog of 2", len(boats))
	}
}

func TestAISearchResponseShape(t *testing.T) {
	env := newTestEnvWithReply(t, func(req ai.Request) (string, error) {
		return `{"query": "Yamaha", "minPrice": 500000, "boatType": "Гидроцикл"}`, nil
	})
	resp := doJSON(t, newClient(t), http.MethodPost, env.srv.URL+"/api/boats/ai-search", map[string]string{
		"query": "Yamaha гидроцикл от 500 тысяч",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ai-search: status %d", resp.StatusCode)
	}
	var body struct {
		Boats             []domain.Boat        `json:"boats"`
		InterpretedParams *domain.SearchFilter `json:"interpretedParams"`
	}
	decodeBody(t, resp, &body)
	if body.InterpretedParams == nil {
		t.Fatal("response is missing interpretedParams")
	}
	if body.InterpretedParams.MinPrice != 500_000 || body.InterpretedParams.BoatType != "Гидроцикл" {
		t.Fatalf("interpretedParams = %+v", body.InterpretedParams)
	}
}

func TestCreateBoatRejectsInvalidPriceAndYear(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(t)
	register(t, env, client, "+79990000001")

	resp := doJSON(t, client, http.MethodPost, env.srv.URL+"/api/boats", map[string]any{
		"title": "Катер",
		"price": 0,
		"year":  1700,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("create with price=0 year=1700: status %d, want 400", resp.StatusCode)
	}
}

func TestUpdateBoatIsPartial(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")

	resp := doJSON(t, adminClient, http.MethodPost, env.srv.URL+"/api/boats", map[string]any{
		"title":        "Катер Bayliner 175",
		"price":        2_000_000,
		"year":         2018,
		"manufacturer": "Bayliner",
		"location":     "Сочи",
		"sellerName":   "Анна",
	})
	var boat domain.Boat
	decodeBody(t, resp, &boat)

	// Only the price is sent; everything else must survive untouched.
	update := doJSON(t, adminClient, http.MethodPut, env.srv.URL+"/api/boats/"+boat.ID, map[string]any{
		"price": 1_800_000,
	})
	if update.StatusCode != http.StatusOK {
		t.Fatalf("partial update: status %d", update.StatusCode)
	}
	var updated domain.Boat
	decodeBody(t, update, &updated)
	if updated.Price != 1_800_000 {
		t.Fatalf("price = %d, want 1800000", updated.Price)
	}
	if updated.Manufacturer != "Bayliner" || updated.Location != "Сочи" || updated.SellerName != "Анна" {
		t.Fatalf("omitted fields were wiped: %+v", updated)
	}
	if updated.Title != "Катер Bayliner 175" || updated.Year != 2018 {
		t.Fatalf("omitted fields were wiped: %+v", updated)
	}
}

func TestSettingsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminClient := newClient(t)
	register(t, env, adminClient, "+79990000001")

	resp := doJSON(t, adminClient, http.MethodPut, env.srv.URL+"/api/admin/ai-settings", map[string]string{
		"key":   "generation_model",
		"value": "gpt-4o-mini",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("upsert setting: status %d", resp.StatusCode)
	}

	resp = doJSON(t, adminClient, http.MethodPut, env.srv.URL+"/api/admin/ai-settings", map[string]string{
		"key":   "made_up_key",
		"value": "x",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("upsert unknown key: status %d, want 400", resp.StatusCode)
	}

	list := doJSON(t, adminClient, http.MethodGet, env.srv.URL+"/api/admin/ai-settings", nil)
	var settings []domain.AiSetting
	decodeBody(t, list, &settings)
	if len(settings) != len(domain.KnownSettingKeys) {
		t.Fatalf("settings count = %d, want %d", len(settings), len(domain.KnownSettingKeys))
	}
}
