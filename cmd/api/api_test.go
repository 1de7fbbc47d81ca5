package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/inkwell/internal/auth"
	"github.com/crucial707/inkwell/internal/config"
	"github.com/crucial707/inkwell/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var userCols = []string{"id", "username", "email", "password_hash", "role", "created_at"}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret-for-integration", JWTExpireHours: 1}
}

// TestAPI_LoginThenCreatePost builds the full router with a sqlmock-backed
// DB, logs in as the admin and creates a post through the /api mount.
func TestAPI_LoginThenCreatePost(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE email = \$1 OR username = \$2`).
		WithArgs("admin", "admin").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "admin", "admin@blogapp.com", string(hash), "admin", now))
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "admin", "admin@blogapp.com", string(hash), "admin", now))
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	loginBody, _ := json.Marshal(map[string]string{"email": "admin", "password": "password123"})
	loginResp, err := http.Post(srv.URL+"/api/auth/login", "application/json", bytes.NewReader(loginBody))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status: got %d, want 200", loginResp.StatusCode)
	}
	var loginOut struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&loginOut); err != nil || loginOut.Token == "" {
		t.Fatalf("login response: %v", err)
	}

	postBody, _ := json.Marshal(map[string]interface{}{"title": "Hello World!", "content": "First post", "tags": []string{"go"}})
	req, _ := http.NewRequest("POST", srv.URL+"/api/posts", bytes.NewReader(postBody))
	req.Header.Set("Authorization", "Bearer "+loginOut.Token)
	req.Header.Set("Content-Type", "application/json")
	createResp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/posts status: got %d, want 201", createResp.StatusCode)
	}
	var created struct {
		Message string `json:"message"`
		Post    struct {
			Slug    string `json:"slug"`
			Excerpt string `json:"excerpt"`
			Status  string `json:"status"`
		} `json:"post"`
	}
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if !regexp.MustCompile(`^hello-world-\d+$`).MatchString(created.Post.Slug) {
		t.Errorf("slug: %q", created.Post.Slug)
	}
	if created.Post.Excerpt != "First post..." || created.Post.Status != "published" {
		t.Errorf("unexpected post: %+v", created.Post)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_AdminRoutesRequireAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	srv := httptest.NewServer(newRouter(db, cfg, nil))
	defer srv.Close()

	for _, path := range []string{"/posts/admin/all", "/posts/admin/abc", "/api/posts/admin/7"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: got %d, want 401", path, resp.StatusCode)
		}
	}

	// Registered reader.
	mock.ExpectQuery(`SELECT\s+COALESCE\(bool_or`).
		WillReturnRows(sqlmock.NewRows([]string{"u", "e"}).AddRow(false, false))
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "reader", "reader@example.com", "h", "user", time.Now()))
	regBody, _ := json.Marshal(map[string]string{"username": "reader", "email": "reader@example.com", "password": "secret1"})
	regResp, err := http.Post(srv.URL+"/auth/register", "application/json", bytes.NewReader(regBody))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer regResp.Body.Close()
	if regResp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: got %d, want 201", regResp.StatusCode)
	}
	var regOut struct {
		Token string `json:"token"`
	}
	json.NewDecoder(regResp.Body).Decode(&regOut)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/posts/admin/all"},
		{"GET", "/posts/admin/abc"},
		{"DELETE", "/api/posts/3"},
		{"GET", "/audit"},
	} {
		mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "reader", "reader@example.com", "h", "user", time.Now()))
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+regOut.Token)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		var out map[string]string
		json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s %s: got %d, want 403", tc.method, tc.path, resp.StatusCode)
		}
		if out["message"] == "" {
			t.Errorf("%s %s: missing message", tc.method, tc.path)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_PublicSlugRouteAcceptsNumericSlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`UPDATE posts p SET views`).
		WithArgs("123", "published").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/posts/123")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /posts/123: got %d, want 404", resp.StatusCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_AdminGetByNonNumericIDIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	srv := httptest.NewServer(newRouter(db, cfg, nil))
	defer srv.Close()

	token, err := auth.NewIssuer([]byte(cfg.JWTSecret), time.Hour).Issue(&models.User{ID: 1, Username: "admin", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "admin", "admin@blogapp.com", "h", "admin", time.Now()))

	req, _ := http.NewRequest("GET", srv.URL+"/posts/admin/abc", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusNotFound || out["message"] != "Post not found" {
		t.Errorf("got %d %v, want 404 Post not found", resp.StatusCode, out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_UnknownRoutesAnswerJSON(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{"GET", "/nope", http.StatusNotFound},
		{"GET", "/api/posts/1/comments", http.StatusNotFound},
		{"PATCH", "/health", http.StatusMethodNotAllowed},
	} {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		var out map[string]string
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
		if decodeErr != nil || out["message"] == "" {
			t.Errorf("%s %s: body is not a JSON message (%v)", tc.method, tc.path, decodeErr)
		}
	}
}

// TestAPI_Health is a quick smoke test for the health endpoint.
func TestAPI_Health(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status: got %d, want 200", resp.StatusCode)
	}
}

// TestAPI_Ready checks that /ready pings the DB and returns 200 when DB is reachable.
func TestAPI_Ready(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("ready request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ready status: got %d, want 200", resp.StatusCode)
	}
}

func TestAPI_Metrics(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	srv := httptest.NewServer(newRouter(db, testConfig(), nil))
	defer srv.Close()

	http.Get(srv.URL + "/health")
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.Contains(buf.Bytes(), []byte("http_requests_total")) {
		t.Error("metrics output lacks http_requests_total")
	}
}
