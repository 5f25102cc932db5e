package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/utils"
)

// SoftwareDownloadGate allows a stored software artifact only when the
// product encoded in its name exists and is published.
func SoftwareDownloadGate(products repository.ProductRepository) ServeGate {
	return func(r *http.Request, filename string) (Grant, error) {
		productID, err := utils.DecodeArtifactOwner(filename)
		if err != nil {
			return Grant{}, &ServeError{Status: http.StatusBadRequest, Message: "Invalid file format"}
		}

		product, err := products.GetByID(r.Context(), productID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Grant{}, &ServeError{Status: http.StatusNotFound, Message: "Software not found"}
			}
			return Grant{}, fmt.Errorf("failed to look up product %s: %w", productID, err)
		}

		if !product.IsDownloadable() {
			slog.Info("download refused for unpublished product",
				"product_id", productID,
				"status", product.Status,
			)
			return Grant{}, &ServeError{Status: http.StatusForbidden, Message: "Software not available for download"}
		}

		downloadName := utils.SanitizeTitle(product.Title) + "_" + utils.ArtifactDisplayName(filename)
		return Grant{
			ProductID:   product.ID,
			Disposition: utils.AttachmentDisposition(downloadName),
		}, nil
	}
}

// SoftwareDownloadHandler serves published software artifacts and records a
// download event for every served file. auditor may be nil.
func SoftwareDownloadHandler(store storage.ArtifactStore, products repository.ProductRepository, auditor *DownloadAuditor) http.HandlerFunc {
	policy := ServePolicy{
		Variant:         metrics.VariantSoftware,
		ContentType:     utils.DefaultContentType,
		Gate:            SoftwareDownloadGate(products),
		ErrorStyle:      ErrorStyleMessage,
		NotFoundMessage: "File not found",
		FailureMessage:  "Failed to download file",
	}
	if auditor != nil {
		policy.Audit = auditor.Record
	}
	return ServeArtifact(store, policy)
}
