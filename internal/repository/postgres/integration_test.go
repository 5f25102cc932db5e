package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// setupTestPool connects to SOFTVAULT_TEST_POSTGRES_URL and resets the schema.
func setupTestPool(t *testing.T) *Pool {
	t.Helper()

	connString := os.Getenv("SOFTVAULT_TEST_POSTGRES_URL")
	if connString == "" {
		t.Skip("SOFTVAULT_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, connString, 4)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS downloads, products, user_sessions, users, migrations CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset schema: %v", err)
	}
	if err := RunMigrations(ctx, pool); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	return pool
}

func TestIntegration_ProductLifecycle(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	repos, err := NewRepositoriesWithPool(pool)
	if err != nil {
		t.Fatalf("NewRepositoriesWithPool failed: %v", err)
	}

	product := &models.Product{Title: "  Skin Pack  "}
	if err := repos.Products.Create(ctx, product); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if product.Title != "Skin Pack" || product.Status != models.ProductStatusDraft {
		t.Errorf("Create stored title %q status %q", product.Title, product.Status)
	}

	ref := models.ArtifactRef{
		Filename:    "product_" + product.ID + "_1700000000000.zip",
		FileSize:    "1.50MB",
		DownloadURL: "/api/download/software/product_" + product.ID + "_1700000000000.zip",
	}
	if err := repos.Products.UpdateArtifact(ctx, product.ID, ref); err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}
	if err := repos.Products.UpdateStatus(ctx, product.ID, models.ProductStatusPublished); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := repos.Products.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Filename != ref.Filename || got.FileSize != ref.FileSize || !got.IsDownloadable() {
		t.Errorf("GetByID = %+v, want artifact %+v and published", got, ref)
	}

	if err := repos.Products.UpdateArtifact(ctx, "missing", ref); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdateArtifact(missing) = %v, want ErrNotFound", err)
	}
	if _, err := repos.Products.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}

	if err := repos.Downloads.Create(ctx, &models.DownloadEvent{
		ProductID:  product.ID,
		DownloadIP: "203.0.113.7",
		UserAgent:  "curl/8.0",
	}); err != nil {
		t.Fatalf("Downloads.Create failed: %v", err)
	}
	count, err := repos.Downloads.CountByProduct(ctx, product.ID)
	if err != nil || count != 1 {
		t.Errorf("CountByProduct = %d, %v, want 1", count, err)
	}
	events, err := repos.Downloads.ListByProduct(ctx, product.ID, repository.DefaultPagination())
	if err != nil || len(events) != 1 || events[0].UserID != nil {
		t.Errorf("ListByProduct = %v, %v, want one anonymous event", events, err)
	}
}

func TestIntegration_UserSessions(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)

	user, err := users.Upsert(ctx, &models.User{
		Email:        "Admin@Example.com",
		Name:         "Admin",
		PasswordHash: "hash-1",
		Role:         models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	again, err := users.Upsert(ctx, &models.User{
		Email:        "admin@example.com",
		Name:         "Admin Two",
		PasswordHash: "hash-2",
		Role:         models.RoleEditor,
	})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if again.ID != user.ID || again.Role != models.RoleEditor || again.PasswordHash != "hash-2" {
		t.Errorf("second Upsert = %+v, want same id with updated fields", again)
	}

	now := time.Now().UTC()
	live := &models.UserSession{TokenHash: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour)}
	expired := &models.UserSession{TokenHash: "expired", UserID: user.ID, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*models.UserSession{live, expired} {
		if err := users.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", s.TokenHash, err)
		}
	}

	if _, err := users.GetSession(ctx, "live"); err != nil {
		t.Errorf("GetSession(live) = %v, want nil", err)
	}
	if _, err := users.GetSession(ctx, "expired"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetSession(expired) = %v, want ErrNotFound", err)
	}

	n, err := users.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpiredSessions = %d, %v, want 1", n, err)
	}
}
