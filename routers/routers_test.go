package routers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"RecordStore/account"
	"RecordStore/auth"
	"RecordStore/cart"
	"RecordStore/catalog"
	"RecordStore/jwt"
	"RecordStore/metrics"
	"RecordStore/models"
	"RecordStore/repository/memory"
)

const (
	password        = "Passw0rd!"
	managerEmail    = "boss@x.com"
	managerPassword = "B0ss!pass"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	m := metrics.New()
	hasher := auth.NewHasher(bcrypt.MinCost)
	authenticator, err := auth.NewAuthenticator(store, hasher, time.Second, nil)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	tokens, err := jwt.NewHMAC([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	denylist := jwt.NewMemoryDenylist()
	engine := cart.NewEngine(store, store, cart.Options{StoreTimeout: time.Second, StockRetries: 5}, nil, m)
	accounts := account.NewService(account.Deps{
		Accounts: store,
		Hasher:   hasher,
		Carts:    engine,
		Denylist: denylist,
		TokenTTL: tokens.TTL(),
		Timeout:  time.Second,
	})
	if err := accounts.EnsureManager(context.Background(), managerEmail, managerPassword); err != nil {
		t.Fatalf("bootstrap manager: %v", err)
	}

	router := SetupRouters(Deps{
		Authenticator: authenticator,
		Tokens:        tokens,
		Denylist:      denylist,
		Accounts:      accounts,
		Catalog:       catalog.NewService(store, time.Second, 5, nil, m),
		Carts:         engine,
		Metrics:       m,
	})
	return testServer{router: router, store: store}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s testServer) register(t *testing.T, email string) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/v1/register", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %v", email, w.Code, body)
	}
}

func (s testServer) login(t *testing.T, email, pw string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/v1/login", "", gin.H{"username": email, "password": pw})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %v", email, w.Code, body)
	}
	token, _ := body["token"].(string)
	if token == "" || w.Header().Get("Authorization") != "Bearer "+token {
		t.Fatalf("login %s: missing token in %v", email, body)
	}
	return token
}

func (s testServer) seedItem(t *testing.T, id uint, price string, stock int) {
	t.Helper()
	item := &models.Item{Model: gorm.Model{ID: id}, Name: "Kind of Blue", UnitPrice: decimal.RequireFromString(price), Stock: stock}
	if err := s.store.SaveItem(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func cartOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	c, ok := body["cart"].(map[string]any)
	if !ok {
		t.Fatalf("no cart in %v", body)
	}
	return c
}

func TestCartScenario(t *testing.T) {
	s := newTestServer(t)
	s.seedItem(t, 7, "19.99", 5)
	s.register(t, "a@x.com")
	token := s.login(t, "A@X.com", password)

	w, body := s.do(t, http.MethodPost, "/api/v1/user/carts/items", token, gin.H{"itemId": 7, "quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("add: %d %v", w.Code, body)
	}
	snapshot := cartOf(t, body)
	if snapshot["items"] != float64(1) || snapshot["totalQuantity"] != float64(2) || snapshot["totalPrice"] != "39.98" {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/user/carts/items", token, gin.H{"itemId": 7, "quantity": 4})
	if w.Code != http.StatusConflict || body["error"] != "insufficient_stock" {
		t.Fatalf("expected insufficient stock, got %d %v", w.Code, body)
	}
	if body["available"] != float64(5) || body["requested"] != float64(6) {
		t.Fatalf("unexpected stock report %v", body)
	}

	t.Run("cart unchanged after rejection", func(t *testing.T) {
		w, body := s.do(t, http.MethodGet, "/api/v1/user/carts", token, nil)
		if w.Code != http.StatusOK || cartOf(t, body)["totalQuantity"] != float64(2) {
			t.Fatalf("unexpected cart %d %v", w.Code, body)
		}
	})

	t.Run("item shows reserved stock", func(t *testing.T) {
		w, body := s.do(t, http.MethodGet, "/api/v1/items/7", "", nil)
		item, _ := body["item"].(map[string]any)
		if w.Code != http.StatusOK || item["stock"] != float64(3) {
			t.Fatalf("unexpected item %d %v", w.Code, body)
		}
	})

	t.Run("remove releases stock", func(t *testing.T) {
		w, _ := s.do(t, http.MethodDelete, "/api/v1/user/carts/items/7", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("remove: %d", w.Code)
		}
		w, body := s.do(t, http.MethodGet, "/api/v1/user/carts", token, nil)
		snapshot := cartOf(t, body)
		if w.Code != http.StatusOK || snapshot["items"] != float64(0) || snapshot["totalPrice"] != "0" {
			t.Fatalf("expected empty cart, got %v", snapshot)
		}
	})

	t.Run("invalid quantity", func(t *testing.T) {
		w, body := s.do(t, http.MethodPost, "/api/v1/user/carts/items", token, gin.H{"itemId": 7, "quantity": 0})
		if w.Code != http.StatusBadRequest || body["error"] != "invalid_quantity" {
			t.Fatalf("expected 400, got %d %v", w.Code, body)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/v1/user/carts/items", token, gin.H{"itemId": 999, "quantity": 1})
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestRegisterConflict(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")

	w, body := s.do(t, http.MethodPost, "/api/v1/register", "", gin.H{"email": "A@x.COM", "password": password})
	if w.Code != http.StatusConflict || body["error"] != "email_already_registered" {
		t.Fatalf("expected 409, got %d %v", w.Code, body)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/register", "", gin.H{"email": "b@x.com", "password": "weak"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", w.Code)
	}
}

func TestUnauthorizedResponsesMatch(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")

	wrongPassword, _ := s.do(t, http.MethodPost, "/api/v1/login", "", gin.H{"username": "a@x.com", "password": "Wr0ng!pass"})
	unknownEmail, _ := s.do(t, http.MethodPost, "/api/v1/login", "", gin.H{"username": "nobody@x.com", "password": password})
	noToken, _ := s.do(t, http.MethodGet, "/api/v1/user/carts", "", nil)
	badToken, _ := s.do(t, http.MethodGet, "/api/v1/user/carts", "not.a.token", nil)

	for name, w := range map[string]*httptest.ResponseRecorder{
		"unknown email": unknownEmail,
		"no token":      noToken,
		"bad token":     badToken,
	} {
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
		if w.Body.String() != wrongPassword.Body.String() {
			t.Fatalf("%s: body %q differs from %q", name, w.Body.String(), wrongPassword.Body.String())
		}
	}
	if wrongPassword.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", wrongPassword.Code)
	}

	metricsPage, _ := s.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(metricsPage.Body.String(), `recordstore_auth_failures_total{reason="login_invalid_credentials"} 2`) {
		t.Fatalf("failed logins not counted:\n%s", metricsPage.Body.String())
	}
}

func TestManagerGating(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")
	customer := s.login(t, "a@x.com", password)
	manager := s.login(t, managerEmail, managerPassword)

	newItem := gin.H{"name": "Blue Train", "unitPrice": "21.50", "stock": 4}

	if w, _ := s.do(t, http.MethodPost, "/api/v1/admin/items", "", newItem); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/v1/admin/items", customer, newItem); w.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403, got %d", w.Code)
	}

	w, body := s.do(t, http.MethodPost, "/api/v1/admin/items", manager, newItem)
	if w.Code != http.StatusCreated {
		t.Fatalf("manager create item: %d %v", w.Code, body)
	}
	item, _ := body["item"].(map[string]any)
	id, _ := item["id"].(float64)
	if id == 0 || item["unitPrice"] != "21.5" {
		t.Fatalf("unexpected item %v", item)
	}

	path := "/api/v1/admin/items/" + jsonNumber(id) + "/stock"
	w, body = s.do(t, http.MethodPatch, path, manager, gin.H{"delta": 3})
	item, _ = body["item"].(map[string]any)
	if w.Code != http.StatusOK || item["stock"] != float64(7) {
		t.Fatalf("restock: %d %v", w.Code, body)
	}
	if w, _ := s.do(t, http.MethodPatch, path, manager, gin.H{"delta": -100}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative stock: expected 400, got %d", w.Code)
	}

	w, body = s.do(t, http.MethodPost, "/api/v1/admin/managers", manager, gin.H{"email": "second@x.com", "password": password})
	if w.Code != http.StatusCreated {
		t.Fatalf("create manager: %d %v", w.Code, body)
	}
	second := s.login(t, "second@x.com", password)
	if w, _ := s.do(t, http.MethodPost, "/api/v1/admin/items", second, newItem); w.Code != http.StatusCreated {
		t.Fatalf("second manager: expected 201, got %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/v1/admin/managers", customer, gin.H{"email": "c@x.com", "password": password}); w.Code != http.StatusForbidden {
		t.Fatalf("customer creating manager: expected 403, got %d", w.Code)
	}
}

func jsonNumber(f float64) string {
	raw, _ := json.Marshal(f)
	return string(raw)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com")
	token := s.login(t, "a@x.com", password)
	other := s.login(t, "a@x.com", password)

	if w, _ := s.do(t, http.MethodPost, "/api/v1/user/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/v1/user/carts", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/v1/user/carts", other, nil); w.Code != http.StatusOK {
		t.Fatalf("other session must survive logout, got %d", w.Code)
	}
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	s.seedItem(t, 3, "10.00", 4)
	s.register(t, "a@x.com")
	s.register(t, "b@x.com")
	token := s.login(t, "a@x.com", password)

	if w, _ := s.do(t, http.MethodPost, "/api/v1/user/carts/items", token, gin.H{"itemId": 3, "quantity": 4}); w.Code != http.StatusOK {
		t.Fatalf("add: %d", w.Code)
	}

	if w, _ := s.do(t, http.MethodDelete, "/api/v1/user/account", token, gin.H{"email": "b@x.com"}); w.Code != http.StatusForbidden {
		t.Fatalf("deleting another account: expected 403, got %d", w.Code)
	}

	if w, body := s.do(t, http.MethodDelete, "/api/v1/user/account", token, gin.H{"email": "A@x.com"}); w.Code != http.StatusOK {
		t.Fatalf("delete: %d %v", w.Code, body)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/v1/user/carts", token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("token of deleted account: expected 401, got %d", w.Code)
	}
	_, body := s.do(t, http.MethodGet, "/api/v1/items/3", "", nil)
	if item, _ := body["item"].(map[string]any); item["stock"] != float64(4) {
		t.Fatalf("stock not released: %v", body)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("healthz: %d %q", w.Code, w.Header().Get("X-Request-ID"))
	}

	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "recordstore_http_requests_total") {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}
}
