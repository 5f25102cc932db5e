package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

func TestProductRepository_UpdateArtifact(t *testing.T) {
	repo := NewProductRepository()
	ctx := context.Background()

	p := &models.Product{Title: "Pack"}
	repo.AddProduct(p)

	ref := models.ArtifactRef{Filename: "product_x_1.zip", FileSize: "1.00MB", DownloadURL: "/api/download/software/product_x_1.zip"}
	if err := repo.UpdateArtifact(ctx, p.ID, ref); err != nil {
		t.Fatalf("UpdateArtifact failed: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Filename != ref.Filename || got.FileSize != ref.FileSize || got.DownloadURL != ref.DownloadURL {
		t.Errorf("GetByID = %+v, want artifact %+v", got, ref)
	}

	if err := repo.UpdateArtifact(ctx, "missing", ref); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdateArtifact(missing) = %v, want ErrNotFound", err)
	}
	if repo.UpdateArtifactCalls != 2 {
		t.Errorf("UpdateArtifactCalls = %d, want 2", repo.UpdateArtifactCalls)
	}
}

func TestProductRepository_StoredCopyIsIndependent(t *testing.T) {
	repo := NewProductRepository()
	p := &models.Product{Title: "Pack"}
	repo.AddProduct(p)

	p.Title = "modified"
	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Title != "Pack" {
		t.Error("stored product should be independent of original")
	}
}

func TestProductRepository_ErrorInjection(t *testing.T) {
	repo := NewProductRepository()
	injected := errors.New("boom")
	repo.GetByIDError = injected
	repo.UpdateArtifactError = injected

	if _, err := repo.GetByID(context.Background(), "x"); err != injected {
		t.Errorf("GetByID error = %v, want injected", err)
	}
	if err := repo.UpdateArtifact(context.Background(), "x", models.ArtifactRef{}); err != injected {
		t.Errorf("UpdateArtifact error = %v, want injected", err)
	}

	repo.Reset()
	if _, err := repo.GetByID(context.Background(), "x"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("after Reset GetByID = %v, want ErrNotFound", err)
	}
}

func TestDownloadRepository(t *testing.T) {
	repo := NewDownloadRepository()
	ctx := context.Background()

	uid := "user-1"
	for _, e := range []*models.DownloadEvent{
		{ProductID: "a", DownloadIP: "1.1.1.1", UserAgent: "ua"},
		{ProductID: "a", DownloadIP: "2.2.2.2", UserAgent: "ua", UserID: &uid},
		{ProductID: "b", DownloadIP: "3.3.3.3", UserAgent: "ua"},
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	n, _ := repo.CountByProduct(ctx, "a")
	if n != 2 {
		t.Errorf("CountByProduct(a) = %d, want 2", n)
	}

	events, _ := repo.ListByProduct(ctx, "a", repository.DefaultPagination())
	if len(events) != 2 || events[0].DownloadIP != "2.2.2.2" {
		t.Errorf("ListByProduct(a) should return 2 events newest first, got %+v", events)
	}

	if err := repo.Create(ctx, &models.DownloadEvent{}); !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("Create without product = %v, want ErrInvalidInput", err)
	}
}

func TestUserRepository_UpsertAndSessions(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u, err := repo.Upsert(ctx, &models.User{Email: "A@Example.com", PasswordHash: "h1", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	again, err := repo.Upsert(ctx, &models.User{Email: "a@example.com", PasswordHash: "h2", Role: models.RoleEditor})
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if again.ID != u.ID || again.PasswordHash != "h2" {
		t.Errorf("second Upsert = %+v, want same user updated", again)
	}

	if _, err := repo.GetByEmail(ctx, "A@EXAMPLE.COM"); err != nil {
		t.Errorf("GetByEmail should be case-insensitive: %v", err)
	}

	now := time.Now()
	repo.AddSession(&models.UserSession{TokenHash: "live", UserID: u.ID, ExpiresAt: now.Add(time.Hour)})
	repo.AddSession(&models.UserSession{TokenHash: "old", UserID: u.ID, ExpiresAt: now.Add(-time.Hour)})

	if _, err := repo.GetSession(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetSession(old) = %v, want ErrNotFound", err)
	}
	if n, _ := repo.DeleteExpiredSessions(ctx, now); n != 1 {
		t.Errorf("DeleteExpiredSessions = %d, want 1", n)
	}
	if err := repo.DeleteSession(ctx, "live"); err != nil {
		t.Errorf("DeleteSession failed: %v", err)
	}
	if repo.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0", repo.SessionCount())
	}
}
