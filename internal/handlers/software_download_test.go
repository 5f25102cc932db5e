package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository/mock"
	"github.com/fjmerc/softvault/internal/storage"
	storagemock "github.com/fjmerc/softvault/internal/storage/mock"
	tu "github.com/fjmerc/softvault/internal/testutil"
)

const downloadPrefix = "/api/download/software/"

type downloadFixture struct {
	store     *storagemock.ArtifactStore
	products  *mock.ProductRepository
	downloads *mock.DownloadRepository
	handler   http.Handler
}

func newDownloadFixture() *downloadFixture {
	f := &downloadFixture{
		store:     storagemock.NewArtifactStore(storage.CategorySoftware),
		products:  mock.NewProductRepository(),
		downloads: mock.NewDownloadRepository(),
	}
	f.handler = mount(downloadPrefix, SoftwareDownloadHandler(f.store, f.products, NewDownloadAuditor(f.downloads)))
	return f
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp models.MessageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp.Message
}

func TestSoftwareDownload_Published(t *testing.T) {
	f := newDownloadFixture()
	f.products.AddProduct(&models.Product{ID: "abc", Title: "My Tool: Pro!", Status: models.ProductStatusPublished})
	f.store.AddFile("product_abc_1700000000000.zip", []byte("PK installer"))

	req := httptest.NewRequest(http.MethodGet, downloadPrefix+"product_abc_1700000000000.zip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8.0")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	tu.AssertStatusCode(t, rr, http.StatusOK)
	tu.AssertHeader(t, rr, "Content-Type", "application/octet-stream")
	tu.AssertHeader(t, rr, "Content-Disposition", `attachment; filename="My_Tool__Pro__1700000000000.zip"`)
	tu.AssertHeader(t, rr, "Content-Length", "12")
	if rr.Body.String() != "PK installer" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "PK installer")
	}

	events := f.downloads.Events()
	if len(events) != 1 {
		t.Fatalf("download events = %d, want 1", len(events))
	}
	e := events[0]
	if e.ProductID != "abc" {
		t.Errorf("ProductID = %q, want %q", e.ProductID, "abc")
	}
	if e.UserID != nil {
		t.Errorf("UserID = %v, want nil for anonymous download", *e.UserID)
	}
	if e.DownloadIP != "203.0.113.9, 10.0.0.1" {
		t.Errorf("DownloadIP = %q, want the raw X-Forwarded-For value", e.DownloadIP)
	}
	if e.UserAgent != "curl/8.0" {
		t.Errorf("UserAgent = %q, want %q", e.UserAgent, "curl/8.0")
	}
}

func TestSoftwareDownload_AuditCapturesUserAndFallbacks(t *testing.T) {
	f := newDownloadFixture()
	f.products.AddProduct(&models.Product{ID: "abc", Title: "Tool", Status: models.ProductStatusPublished})
	f.store.AddFile("product_abc_1.exe", []byte("MZ"))

	req := httptest.NewRequest(http.MethodGet, downloadPrefix+"product_abc_1.exe", nil)
	req.Header.Del("User-Agent")
	req = req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: "u-1", Role: models.RoleUser}))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	tu.AssertStatusCode(t, rr, http.StatusOK)

	events := f.downloads.Events()
	if len(events) != 1 {
		t.Fatalf("download events = %d, want 1", len(events))
	}
	if events[0].UserID == nil || *events[0].UserID != "u-1" {
		t.Errorf("UserID = %v, want u-1", events[0].UserID)
	}
	if events[0].DownloadIP != "unknown" {
		t.Errorf("DownloadIP = %q, want %q", events[0].DownloadIP, "unknown")
	}
	if events[0].UserAgent != "unknown" {
		t.Errorf("UserAgent = %q, want %q", events[0].UserAgent, "unknown")
	}
}

func TestSoftwareDownload_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		product     *models.Product
		addFile     bool
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "traversal",
			filename:    "..%2F..%2Fetc%2Fpasswd",
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid filename",
		},
		{
			name:        "missing file checked before record",
			filename:    "product_abc_1.zip",
			wantStatus:  http.StatusNotFound,
			wantMessage: "File not found",
		},
		{
			name:        "bad format",
			filename:    "setup.zip",
			addFile:     true,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid file format",
		},
		{
			name:        "unknown product",
			filename:    "product_ghost_1.zip",
			addFile:     true,
			wantStatus:  http.StatusNotFound,
			wantMessage: "Software not found",
		},
		{
			name:        "draft product",
			filename:    "product_abc_1.zip",
			product:     &models.Product{ID: "abc", Title: "T", Status: models.ProductStatusDraft},
			addFile:     true,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Software not available for download",
		},
		{
			name:        "archived product",
			filename:    "product_abc_1.zip",
			product:     &models.Product{ID: "abc", Title: "T", Status: models.ProductStatusArchived},
			addFile:     true,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Software not available for download",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDownloadFixture()
			if tt.product != nil {
				f.products.AddProduct(tt.product)
			}
			if tt.addFile {
				f.store.AddFile(tt.filename, []byte("data"))
			}

			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, downloadPrefix+tt.filename, nil))

			tu.AssertStatusCode(t, rr, tt.wantStatus)
			if got := decodeMessage(t, rr); got != tt.wantMessage {
				t.Errorf("message = %q, want %q", got, tt.wantMessage)
			}
			if n := len(f.downloads.Events()); n != 0 {
				t.Errorf("download events = %d, want 0", n)
			}
			if f.store.ReadCalls != 0 {
				t.Errorf("ReadCalls = %d, want 0", f.store.ReadCalls)
			}
		})
	}
}

func TestSoftwareDownload_LookupFailure(t *testing.T) {
	f := newDownloadFixture()
	f.store.AddFile("product_abc_1.zip", []byte("data"))
	f.products.GetByIDError = errors.New("connection refused")

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, downloadPrefix+"product_abc_1.zip", nil))

	tu.AssertStatusCode(t, rr, http.StatusInternalServerError)
	if got := decodeMessage(t, rr); got != "Failed to download file" {
		t.Errorf("message = %q, want %q", got, "Failed to download file")
	}
	tu.AssertNotContains(t, rr.Body.String(), "connection refused")
}

func TestSoftwareDownload_AuditFailureDoesNotAffectResponse(t *testing.T) {
	f := newDownloadFixture()
	f.products.AddProduct(&models.Product{ID: "abc", Title: "Tool", Status: models.ProductStatusPublished})
	f.store.AddFile("product_abc_1.zip", []byte("data"))
	f.downloads.CreateError = errors.New("database is locked")

	before := testutil.ToFloat64(metrics.AuditFailuresTotal)

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, downloadPrefix+"product_abc_1.zip", nil))

	tu.AssertStatusCode(t, rr, http.StatusOK)
	if rr.Body.String() != "data" {
		t.Errorf("body = %q, want %q", rr.Body.String(), "data")
	}
	if got := testutil.ToFloat64(metrics.AuditFailuresTotal); got != before+1 {
		t.Errorf("audit failures = %v, want %v", got, before+1)
	}
}

func TestSoftwareDownload_NilAuditor(t *testing.T) {
	store := storagemock.NewArtifactStore(storage.CategorySoftware)
	products := mock.NewProductRepository()
	products.AddProduct(&models.Product{ID: "abc", Title: "Tool", Status: models.ProductStatusPublished})
	store.AddFile("product_abc_1.zip", []byte("data"))

	h := mount(downloadPrefix, SoftwareDownloadHandler(store, products, nil))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, downloadPrefix+"product_abc_1.zip", nil))

	tu.AssertStatusCode(t, rr, http.StatusOK)
}

func TestSoftwareDownload_SQLiteRecords(t *testing.T) {
	repos := tu.SetupTestRepos(t)
	tu.CreateProduct(t, repos.Products, "p-42", "Installer", models.ProductStatusPublished)

	store := storagemock.NewArtifactStore(storage.CategorySoftware)
	store.AddFile("product_p-42_1700000000000.msi", []byte("msi"))

	h := mount(downloadPrefix, SoftwareDownloadHandler(store, repos.Products, NewDownloadAuditor(repos.Downloads)))
	responses := make([]*httptest.ResponseRecorder, 2)
	for i := range responses {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, downloadPrefix+"product_p-42_1700000000000.msi", nil))
		tu.AssertStatusCode(t, rr, http.StatusOK)
		responses[i] = rr
	}

	first, second := responses[0], responses[1]
	if first.Body.String() != "msi" || second.Body.String() != first.Body.String() {
		t.Errorf("bodies = %q and %q, want both %q", first.Body.String(), second.Body.String(), "msi")
	}
	for _, header := range []string{"Content-Type", "Content-Disposition", "Content-Length"} {
		if a, b := first.Header().Get(header), second.Header().Get(header); a == "" || a != b {
			t.Errorf("%s = %q then %q, want identical non-empty values", header, a, b)
		}
	}
	tu.AssertHeader(t, second, "Content-Disposition", `attachment; filename="Installer_1700000000000.msi"`)
	tu.AssertHeader(t, second, "Content-Length", "3")

	count, err := repos.Downloads.CountByProduct(context.Background(), "p-42")
	tu.AssertNoError(t, err)
	if count != 2 {
		t.Errorf("CountByProduct = %d, want 2", count)
	}
}
