// Package testutil holds shared fixtures and assertions for handler and
// server tests.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/database"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/repository/sqlite"
	"github.com/fjmerc/softvault/internal/utils"
)

// SetupTestDB creates an in-memory SQLite database for testing
// The database is automatically closed when the test completes
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// IMPORTANT: Force single connection for in-memory databases
	// Each connection in the pool gets its own separate :memory: database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestRepos returns SQLite-backed repositories over a fresh in-memory database.
func SetupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	repos, err := sqlite.NewRepositories(nil, SetupTestDB(t))
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}
	return repos
}

// SetupTestConfig returns a configuration whose storage roots live in a
// temporary directory that is removed after the test.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	tmpDir := t.TempDir()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg.Port = "8080"
	cfg.DatabaseType = config.DatabaseTypeSQLite
	cfg.DBPath = ":memory:"
	cfg.PostgreSQL = nil
	cfg.UploadsBasePath = tmpDir
	cfg.PreviewsBasePath = tmpDir
	cfg.MaxSoftwareSize = 1024 * 1024 // 1MB keeps oversize tests cheap
	cfg.CORSAllowedOrigin = "https://shop.example.com"
	cfg.UploadTimeout = 30 * time.Second
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.SessionExpiryHours = 24
	cfg.HTTPSEnabled = false
	cfg.RateLimitLogin = 10

	return cfg
}

// CreateProduct inserts a product into repo and returns it.
func CreateProduct(t *testing.T, repo repository.ProductRepository, id, title string, status models.ProductStatus) *models.Product {
	t.Helper()

	p := &models.Product{ID: id, Title: title, Status: status}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create product %s: %v", id, err)
	}
	return p
}

// CreateUser upserts a user with a bcrypt hash of password.
func CreateUser(t *testing.T, repo repository.UserRepository, email, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user, err := repo.Upsert(context.Background(), &models.User{
		Email:        email,
		Name:         "Test " + string(role),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

// CreateSession opens a session for userID and returns the raw token.
func CreateSession(t *testing.T, repo repository.UserRepository, userID string) string {
	t.Helper()

	token, err := utils.GenerateSessionToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	err = repo.CreateSession(context.Background(), &models.UserSession{
		TokenHash: utils.HashToken(token),
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return token
}

// CreateMultipartForm builds a multipart body with a "file" part carrying
// the given declared content type. An empty contentType omits the header.
// A nil fileContent produces a form without a file part.
func CreateMultipartForm(t *testing.T, fileContent []byte, filename, contentType string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if fileContent != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(fileContent); err != nil {
			t.Fatalf("failed to write file content: %v", err)
		}
	} else if err := writer.WriteField("note", "no file"); err != nil {
		t.Fatalf("failed to write form field: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// AssertHeader checks a response header value
func AssertHeader(t *testing.T, rr *httptest.ResponseRecorder, name, want string) {
	t.Helper()

	if got := rr.Header().Get(name); got != want {
		t.Errorf("%s = %q, want %q", name, got, want)
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertContains fails the test if haystack doesn't contain needle
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Errorf("expected %q to contain %q", haystack, needle)
	}
}

// AssertNotContains fails the test if haystack contains needle
func AssertNotContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Errorf("expected %q to not contain %q", haystack, needle)
	}
}
