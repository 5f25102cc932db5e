package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/config"
	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/middleware"
	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/utils"
)

const (
	// multipartOverhead is slack on top of the file limit for boundaries and
	// the other form fields, so an at-limit file is not cut off.
	multipartOverhead = 1 << 20

	// multipartMemory is how much of the form is kept in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20

	// SoftwareDownloadPath prefixes the downloadUrl stored on products.
	SoftwareDownloadPath = "/api/download/software/"
)

// Failure kinds reported in the details field of a 500 response
const (
	failureWrite        = "write_failed"
	failureRecordUpdate = "record_update_failed"
	failureInternal     = "internal_error"
)

func setUploadHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("CF-Cache-Status", "BYPASS")
	h.Set("X-Accel-Buffering", "no")
}

// SoftwareUploadHandler stores a software artifact for the product named in
// the route and links it to the product record.
func SoftwareUploadHandler(store storage.ArtifactStore, products repository.ProductRepository, tracker *utils.UploadTracker, cfg *config.Config) http.HandlerFunc {
	tooLargeMessage := fmt.Sprintf("File too large (max %dMB)", cfg.MaxSoftwareSize/(1024*1024))

	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		productID := chi.URLParam(r, "productId")
		setUploadHeaders(w)

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("software upload panicked",
					"product_id", productID,
					"kind", fmt.Sprintf("%T", rec),
					"error", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				metrics.UploadsTotal.WithLabelValues("failure").Inc()
				sendJSON(w, http.StatusInternalServerError, models.UploadFailureResponse{
					Error:            "Failed to upload file",
					Details:          failureInternal,
					ProcessingTimeMs: elapsedMs(start),
				})
			}
		}()

		slog.Info("software upload started",
			"product_id", productID,
			"content_length", r.ContentLength,
			"client_ip", utils.GetRemoteIP(r),
		)

		if !middleware.CanManageSoftware(r) {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			sendError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		uploadID := uuid.NewString()
		if tracker != nil {
			if !tracker.StartUpload(uploadID, productID, "") {
				metrics.UploadsTotal.WithLabelValues("rejected").Inc()
				sendError(w, http.StatusServiceUnavailable, "Server is shutting down")
				return
			}
			defer tracker.FinishUpload(uploadID)
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxSoftwareSize+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				metrics.UploadsTotal.WithLabelValues("too_large").Inc()
				sendJSON(w, http.StatusRequestEntityTooLarge, models.UploadTooLargeResponse{
					Error:    tooLargeMessage,
					Received: r.ContentLength,
				})
				return
			}
			slog.Warn("failed to parse upload form",
				"product_id", productID,
				"error", err,
			)
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			sendError(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			sendError(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		declaredType := header.Header.Get("Content-Type")
		if !utils.IsAllowedSoftware(declaredType, header.Filename) {
			slog.Warn("rejected software upload type",
				"product_id", productID,
				"original_name", header.Filename,
				"declared_type", declaredType,
			)
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			sendError(w, http.StatusBadRequest, "Invalid file type")
			return
		}

		if header.Size > cfg.MaxSoftwareSize {
			metrics.UploadsTotal.WithLabelValues("too_large").Inc()
			sendJSON(w, http.StatusRequestEntityTooLarge, models.UploadTooLargeResponse{
				Error:    tooLargeMessage,
				Received: header.Size,
			})
			return
		}

		detectedType, err := utils.DetectReaderContentType(file)
		if err != nil {
			detectedType = utils.DefaultContentType
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			slog.Error("failed to rewind upload", "product_id", productID, "error", err)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendJSON(w, http.StatusInternalServerError, models.UploadFailureResponse{
				Error:            "Failed to upload file",
				Details:          failureInternal,
				ProcessingTimeMs: elapsedMs(start),
			})
			return
		}
		metrics.DetectedContentTypesTotal.WithLabelValues(detectedType).Inc()

		filename := utils.EncodeArtifactName(productID, header.Filename, time.Now())

		slog.Info("software upload file details",
			"product_id", productID,
			"original_name", header.Filename,
			"stored_name", filename,
			"size", header.Size,
			"declared_type", declaredType,
			"detected_type", detectedType,
		)

		path, err := store.Resolve(filename)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidFilename) {
				metrics.UploadsTotal.WithLabelValues("rejected").Inc()
				sendError(w, http.StatusBadRequest, "Invalid filename")
				return
			}
			slog.Error("failed to resolve upload path", "product_id", productID, "error", err)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendJSON(w, http.StatusInternalServerError, models.UploadFailureResponse{
				Error:            "Failed to upload file",
				Details:          failureInternal,
				ProcessingTimeMs: elapsedMs(start),
			})
			return
		}

		if err := store.EnsureDir(); err != nil {
			slog.Warn("failed to ensure software directory", "error", err)
		} else {
			slog.Debug("software directory ensured", "dir", store.Dir())
		}

		writeStart := time.Now()
		written, err := store.WriteFile(path, file)
		if err != nil {
			slog.Error("failed to write software artifact",
				"product_id", productID,
				"stored_name", filename,
				"kind", fmt.Sprintf("%T", errors.Unwrap(err)),
				"error", err,
			)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendJSON(w, http.StatusInternalServerError, models.UploadFailureResponse{
				Error:            "Failed to upload file",
				Details:          failureWrite,
				ProcessingTimeMs: elapsedMs(start),
			})
			return
		}
		slog.Info("software artifact written",
			"stored_name", filename,
			"size", written,
			"write_ms", elapsedMs(writeStart),
		)

		downloadURL := SoftwareDownloadPath + filename
		err = products.UpdateArtifact(r.Context(), productID, models.ArtifactRef{
			Filename:    filename,
			FileSize:    utils.FormatMegabytes(written),
			DownloadURL: downloadURL,
		})
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				slog.Warn("uploaded artifact for unknown product",
					"product_id", productID,
					"stored_name", filename,
				)
				metrics.UploadsTotal.WithLabelValues("rejected").Inc()
				sendError(w, http.StatusNotFound, "Product not found")
				return
			}
			slog.Error("failed to link artifact to product",
				"product_id", productID,
				"stored_name", filename,
				"error", err,
			)
			metrics.UploadsTotal.WithLabelValues("failure").Inc()
			sendJSON(w, http.StatusInternalServerError, models.UploadFailureResponse{
				Error:            "Failed to upload file",
				Details:          failureRecordUpdate,
				ProcessingTimeMs: elapsedMs(start),
			})
			return
		}

		metrics.UploadsTotal.WithLabelValues("success").Inc()
		metrics.UploadSizeBytes.Observe(float64(written))
		metrics.UploadDuration.Observe(time.Since(start).Seconds())

		slog.Info("software upload completed",
			"product_id", productID,
			"stored_name", filename,
			"size", written,
			"processing_ms", elapsedMs(start),
		)

		sendJSON(w, http.StatusOK, models.UploadResponse{
			Message:          "File uploaded successfully",
			Filename:         filename,
			Size:             written,
			DownloadURL:      downloadURL,
			ProcessingTimeMs: elapsedMs(start),
		})
	}
}
