package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository/mock"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/storage/filesystem"
	storagemock "github.com/fjmerc/softvault/internal/storage/mock"
	tu "github.com/fjmerc/softvault/internal/testutil"
	"github.com/fjmerc/softvault/internal/utils"
)

type uploadFixture struct {
	cfg      *config.Config
	store    *storagemock.ArtifactStore
	products *mock.ProductRepository
	tracker  *utils.UploadTracker
	router   http.Handler
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()

	f := &uploadFixture{
		cfg:      tu.SetupTestConfig(t),
		store:    storagemock.NewArtifactStore(storage.CategorySoftware),
		products: mock.NewProductRepository(),
		tracker:  utils.NewUploadTracker(),
	}
	f.products.AddProduct(&models.Product{ID: "abc", Title: "Tool", Status: models.ProductStatusDraft})

	r := chi.NewRouter()
	r.Post("/api/admin/software/{productId}/file", SoftwareUploadHandler(f.store, f.products, f.tracker, f.cfg))
	f.router = r
	return f
}

func (f *uploadFixture) upload(t *testing.T, productID string, role models.Role, content []byte, filename, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	body, formType := tu.CreateMultipartForm(t, content, filename, contentType)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/software/"+productID+"/file", body)
	req.Header.Set("Content-Type", formType)
	if role != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: "u-1", Role: role}))
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp.Error
}

var storedNamePattern = regexp.MustCompile(`^product_abc_\d+\.zip$`)

func TestSoftwareUpload_Success(t *testing.T) {
	f := newUploadFixture(t)
	content := []byte("PK\x03\x04 installer bytes")

	before := testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("success"))
	rr := f.upload(t, "abc", models.RoleAdmin, content, "Setup.ZIP", "application/zip")

	tu.AssertStatusCode(t, rr, http.StatusOK)
	tu.AssertHeader(t, rr, "Cache-Control", "no-cache, no-store, must-revalidate")
	tu.AssertHeader(t, rr, "CF-Cache-Status", "BYPASS")
	tu.AssertHeader(t, rr, "X-Accel-Buffering", "no")

	var resp models.UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "File uploaded successfully" {
		t.Errorf("message = %q, want %q", resp.Message, "File uploaded successfully")
	}
	if !storedNamePattern.MatchString(resp.Filename) {
		t.Errorf("filename = %q, want product_abc_{millis}.zip", resp.Filename)
	}
	if resp.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", resp.Size, len(content))
	}
	if resp.DownloadURL != "/api/download/software/"+resp.Filename {
		t.Errorf("downloadUrl = %q, want %q", resp.DownloadURL, "/api/download/software/"+resp.Filename)
	}
	if resp.ProcessingTimeMs < 0 {
		t.Errorf("processingTimeMs = %d, want >= 0", resp.ProcessingTimeMs)
	}

	stored, ok := f.store.GetFile(resp.Filename)
	if !ok || !bytes.Equal(stored, content) {
		t.Errorf("stored content = %q, want %q", stored, content)
	}

	p, err := f.products.GetByID(context.Background(), "abc")
	tu.AssertNoError(t, err)
	if p.Filename != resp.Filename || p.FileSize != "0.00MB" || p.DownloadURL != resp.DownloadURL {
		t.Errorf("product = {%q %q %q}, want {%q 0.00MB %q}", p.Filename, p.FileSize, p.DownloadURL, resp.Filename, resp.DownloadURL)
	}

	if got := testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("successful uploads = %v, want %v", got, before+1)
	}
	if f.tracker.GetActiveCount() != 0 {
		t.Errorf("active uploads = %d, want 0 after completion", f.tracker.GetActiveCount())
	}
}

func TestSoftwareUpload_Authorization(t *testing.T) {
	for _, role := range []models.Role{"", models.RoleUser} {
		t.Run("role="+string(role), func(t *testing.T) {
			f := newUploadFixture(t)
			rr := f.upload(t, "abc", role, []byte("PK"), "a.zip", "application/zip")

			tu.AssertStatusCode(t, rr, http.StatusUnauthorized)
			if got := decodeError(t, rr); got != "Unauthorized" {
				t.Errorf("error = %q, want %q", got, "Unauthorized")
			}
			tu.AssertHeader(t, rr, "Cache-Control", "no-cache, no-store, must-revalidate")
			if f.store.WriteCalls != 0 {
				t.Errorf("WriteCalls = %d, want 0", f.store.WriteCalls)
			}
		})
	}

	t.Run("editor allowed", func(t *testing.T) {
		f := newUploadFixture(t)
		rr := f.upload(t, "abc", models.RoleEditor, []byte("PK"), "a.zip", "application/zip")
		tu.AssertStatusCode(t, rr, http.StatusOK)
	})
}

func TestSoftwareUpload_Validation(t *testing.T) {
	tests := []struct {
		name        string
		content     []byte
		filename    string
		contentType string
		wantStatus  int
		wantError   string
	}{
		{"no file", nil, "", "", http.StatusBadRequest, "No file provided"},
		{"text file", []byte("hello"), "notes.txt", "text/plain", http.StatusBadRequest, "Invalid file type"},
		{"script disguised", []byte("#!/bin/sh"), "run.sh", "application/octet-stream", http.StatusBadRequest, "Invalid file type"},
		{"plain gz is not tar.gz", []byte("x"), "data.gz", "application/octet-stream", http.StatusBadRequest, "Invalid file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUploadFixture(t)
			rr := f.upload(t, "abc", models.RoleAdmin, tt.content, tt.filename, tt.contentType)

			tu.AssertStatusCode(t, rr, tt.wantStatus)
			if got := decodeError(t, rr); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
			if f.store.WriteCalls != 0 {
				t.Errorf("WriteCalls = %d, want 0", f.store.WriteCalls)
			}
			if f.products.UpdateArtifactCalls != 0 {
				t.Errorf("UpdateArtifactCalls = %d, want 0", f.products.UpdateArtifactCalls)
			}
		})
	}
}

func TestSoftwareUpload_AcceptanceSignals(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantExt     string
	}{
		{"mime only, no extension", "installer", "application/x-msdownload", ".bin"},
		{"extension only", "tool.TAR.GZ", "application/octet-stream", ".gz"},
		{"both", "pkg.deb", "application/vnd.debian.binary-package", ".deb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUploadFixture(t)
			rr := f.upload(t, "abc", models.RoleAdmin, []byte("data"), tt.filename, tt.contentType)

			tu.AssertStatusCode(t, rr, http.StatusOK)
			var resp models.UploadResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if filepath.Ext(resp.Filename) != tt.wantExt {
				t.Errorf("stored name %q, want extension %q", resp.Filename, tt.wantExt)
			}
		})
	}
}

func TestSoftwareUpload_TooLarge(t *testing.T) {
	t.Run("over limit", func(t *testing.T) {
		f := newUploadFixture(t)
		content := make([]byte, f.cfg.MaxSoftwareSize+1)
		rr := f.upload(t, "abc", models.RoleAdmin, content, "big.zip", "application/zip")

		tu.AssertStatusCode(t, rr, http.StatusRequestEntityTooLarge)
		var resp models.UploadTooLargeResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Error != "File too large (max 1MB)" {
			t.Errorf("error = %q, want %q", resp.Error, "File too large (max 1MB)")
		}
		if resp.Received != f.cfg.MaxSoftwareSize+1 {
			t.Errorf("received = %d, want %d", resp.Received, f.cfg.MaxSoftwareSize+1)
		}
		if f.store.WriteCalls != 0 {
			t.Errorf("WriteCalls = %d, want 0", f.store.WriteCalls)
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		f := newUploadFixture(t)
		content := make([]byte, f.cfg.MaxSoftwareSize)
		rr := f.upload(t, "abc", models.RoleAdmin, content, "big.zip", "application/zip")
		tu.AssertStatusCode(t, rr, http.StatusOK)
	})

	t.Run("body beyond reader cap", func(t *testing.T) {
		f := newUploadFixture(t)
		content := make([]byte, f.cfg.MaxSoftwareSize+2*multipartOverhead)
		rr := f.upload(t, "abc", models.RoleAdmin, content, "big.zip", "application/zip")
		tu.AssertStatusCode(t, rr, http.StatusRequestEntityTooLarge)
	})
}

func TestSoftwareUpload_WriteFailureLeavesRecordUntouched(t *testing.T) {
	f := newUploadFixture(t)
	f.store.WriteError = errors.New("no space left on device")

	rr := f.upload(t, "abc", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

	tu.AssertStatusCode(t, rr, http.StatusInternalServerError)
	var resp models.UploadFailureResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "Failed to upload file" || resp.Details != failureWrite {
		t.Errorf("response = %+v, want generic write failure", resp)
	}
	tu.AssertNotContains(t, rr.Body.String(), f.store.Dir())
	tu.AssertNotContains(t, rr.Body.String(), "no space left")
	if f.products.UpdateArtifactCalls != 0 {
		t.Errorf("UpdateArtifactCalls = %d, want 0", f.products.UpdateArtifactCalls)
	}
}

func TestSoftwareUpload_RecordUpdateFailures(t *testing.T) {
	t.Run("unknown product keeps orphan file", func(t *testing.T) {
		f := newUploadFixture(t)
		rr := f.upload(t, "ghost", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

		tu.AssertStatusCode(t, rr, http.StatusNotFound)
		if got := decodeError(t, rr); got != "Product not found" {
			t.Errorf("error = %q, want %q", got, "Product not found")
		}
		if f.store.FileCount() != 1 {
			t.Errorf("FileCount = %d, want 1", f.store.FileCount())
		}
	})

	t.Run("database error", func(t *testing.T) {
		f := newUploadFixture(t)
		f.products.UpdateArtifactError = errors.New("database is locked")
		rr := f.upload(t, "abc", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

		tu.AssertStatusCode(t, rr, http.StatusInternalServerError)
		var resp models.UploadFailureResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Details != failureRecordUpdate {
			t.Errorf("details = %q, want %q", resp.Details, failureRecordUpdate)
		}
	})
}

func TestSoftwareUpload_EnsureDirFailureIsNotFatal(t *testing.T) {
	f := newUploadFixture(t)
	f.store.EnsureDirError = errors.New("read-only file system")

	rr := f.upload(t, "abc", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

	tu.AssertStatusCode(t, rr, http.StatusOK)
	if f.store.EnsureDirCalls != 1 {
		t.Errorf("EnsureDirCalls = %d, want 1", f.store.EnsureDirCalls)
	}
}

func TestSoftwareUpload_InvalidProductID(t *testing.T) {
	f := newUploadFixture(t)
	rr := f.upload(t, "..", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

	tu.AssertStatusCode(t, rr, http.StatusBadRequest)
	if got := decodeError(t, rr); got != "Invalid filename" {
		t.Errorf("error = %q, want %q", got, "Invalid filename")
	}
}

func TestSoftwareUpload_ShuttingDown(t *testing.T) {
	f := newUploadFixture(t)
	f.tracker.BeginShutdown()

	rr := f.upload(t, "abc", models.RoleAdmin, []byte("PK"), "a.zip", "application/zip")

	tu.AssertStatusCode(t, rr, http.StatusServiceUnavailable)
	if f.store.WriteCalls != 0 {
		t.Errorf("WriteCalls = %d, want 0", f.store.WriteCalls)
	}
}

func TestSoftwareUpload_FilesystemRoundTrip(t *testing.T) {
	f := newUploadFixture(t)
	sandbox, err := filesystem.NewSandbox(f.cfg.UploadsBasePath, storage.CategorySoftware)
	tu.AssertNoError(t, err)

	r := chi.NewRouter()
	r.Post("/api/admin/software/{productId}/file", SoftwareUploadHandler(sandbox, f.products, f.tracker, f.cfg))
	r.Get(downloadPrefix+"*", SoftwareDownloadHandler(sandbox, f.products, nil))

	content := []byte("PK\x03\x04 real file")
	body, formType := tu.CreateMultipartForm(t, content, "release.zip", "application/zip")
	req := httptest.NewRequest(http.MethodPost, "/api/admin/software/abc/file", body)
	req.Header.Set("Content-Type", formType)
	req = req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: "u-1", Role: models.RoleAdmin}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	tu.AssertStatusCode(t, rr, http.StatusOK)

	var resp models.UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	onDisk, err := os.ReadFile(filepath.Join(f.cfg.UploadsBasePath, "software", resp.Filename))
	tu.AssertNoError(t, err)
	if !bytes.Equal(onDisk, content) {
		t.Errorf("file on disk = %q, want %q", onDisk, content)
	}

	// Draft products are stored but not downloadable until published
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	tu.AssertStatusCode(t, rr, http.StatusForbidden)

	tu.AssertNoError(t, f.products.UpdateStatus(context.Background(), "abc", models.ProductStatusPublished))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
	tu.AssertStatusCode(t, rr, http.StatusOK)
	if !bytes.Equal(rr.Body.Bytes(), content) {
		t.Errorf("downloaded = %q, want %q", rr.Body.Bytes(), content)
	}
}
