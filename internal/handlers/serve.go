package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/storage"
	"github.com/fjmerc/softvault/internal/utils"
)

// Cache policies for served artifacts
const (
	CacheImmutable  = "public, max-age=31536000, immutable"
	CachePublicHour = "public, max-age=3600"
)

// ErrorStyle selects how a serve handler renders failures.
type ErrorStyle int

const (
	// ErrorStyleText answers with a plain text body.
	ErrorStyleText ErrorStyle = iota
	// ErrorStyleMessage answers with {"message": ...}.
	ErrorStyleMessage
	// ErrorStyleError answers with {"error": ...}.
	ErrorStyleError
)

// ServeError is a gate rejection carrying the status and client message.
type ServeError struct {
	Status  int
	Message string
}

func (e *ServeError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Grant is what a gate hands back for an artifact it allows. ProductID is
// set when the serve should be audited; Disposition overrides the policy's.
type Grant struct {
	ProductID   string
	Disposition string
}

// ServeGate decides whether filename may be served. Rejections should be
// *ServeError; any other error is answered as a server fault.
type ServeGate func(r *http.Request, filename string) (Grant, error)

// ServePolicy configures one serve variant.
type ServePolicy struct {
	Variant string

	ContentTypes utils.ContentTypeTable
	ContentType  string // overrides ContentTypes when set
	CacheControl string

	// Disposition builds Content-Disposition from the filename. Nil means none.
	Disposition func(filename string) string

	Gate  ServeGate
	Audit func(r *http.Request, productID string)

	ErrorStyle      ErrorStyle
	NotFoundMessage string
	FailureMessage  string
}

func (p *ServePolicy) fail(w http.ResponseWriter, code int, message string) {
	switch p.ErrorStyle {
	case ErrorStyleMessage:
		sendMessage(w, code, message)
	case ErrorStyleError:
		sendError(w, code, message)
	default:
		sendText(w, code, message)
	}
}

func (p *ServePolicy) contentType(filename string) string {
	if p.ContentType != "" {
		return p.ContentType
	}
	if p.ContentTypes == nil {
		return utils.DefaultContentType
	}
	return p.ContentTypes.Lookup(filename)
}

// artifactName returns the route wildcard as a filename. chi matches on
// RawPath when the request carried escapes that do not round-trip (such as
// %2F) and on the already decoded Path otherwise, so only the first case is
// unescaped here.
func artifactName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

// ServeArtifact returns a handler that serves the file named by the route
// wildcard from store. Steps run in a fixed order: resolve, existence check,
// gate, audit, read, write.
func ServeArtifact(store storage.ArtifactStore, policy ServePolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, err := artifactName(r)
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues(policy.Variant, "bad_request").Inc()
			policy.fail(w, http.StatusBadRequest, "Invalid filename")
			return
		}

		path, err := store.Resolve(filename)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrPathEscape):
				metrics.PathEscapesTotal.WithLabelValues(policy.Variant).Inc()
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "forbidden").Inc()
				policy.fail(w, http.StatusForbidden, "Access denied")
			case errors.Is(err, storage.ErrInvalidFilename):
				slog.Warn("rejected artifact filename",
					"variant", policy.Variant,
					"filename", filename,
					"client_ip", utils.GetRemoteIP(r),
				)
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "bad_request").Inc()
				policy.fail(w, http.StatusBadRequest, "Invalid filename")
			default:
				slog.Error("failed to resolve artifact path",
					"variant", policy.Variant,
					"error", err,
				)
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "error").Inc()
				policy.fail(w, http.StatusInternalServerError, policy.FailureMessage)
			}
			return
		}

		if _, err := store.Stat(path); err != nil {
			if storage.IsNotExist(err) {
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "not_found").Inc()
				policy.fail(w, http.StatusNotFound, policy.NotFoundMessage)
				return
			}
			slog.Error("failed to stat artifact",
				"variant", policy.Variant,
				"filename", filename,
				"error", err,
			)
			metrics.DownloadsTotal.WithLabelValues(policy.Variant, "error").Inc()
			policy.fail(w, http.StatusInternalServerError, policy.FailureMessage)
			return
		}

		var grant Grant
		if policy.Gate != nil {
			grant, err = policy.Gate(r, filename)
			if err != nil {
				var se *ServeError
				if errors.As(err, &se) {
					metrics.DownloadsTotal.WithLabelValues(policy.Variant, statusLabel(se.Status)).Inc()
					policy.fail(w, se.Status, se.Message)
					return
				}
				slog.Error("artifact gate failed",
					"variant", policy.Variant,
					"filename", filename,
					"error", err,
				)
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "error").Inc()
				policy.fail(w, http.StatusInternalServerError, policy.FailureMessage)
				return
			}
		}

		if policy.Audit != nil && grant.ProductID != "" {
			policy.Audit(r, grant.ProductID)
		}

		data, err := store.ReadFile(path)
		if err != nil {
			if storage.IsNotExist(err) {
				metrics.DownloadsTotal.WithLabelValues(policy.Variant, "not_found").Inc()
				policy.fail(w, http.StatusNotFound, policy.NotFoundMessage)
				return
			}
			slog.Error("failed to read artifact",
				"variant", policy.Variant,
				"filename", filename,
				"error", err,
			)
			metrics.DownloadsTotal.WithLabelValues(policy.Variant, "error").Inc()
			policy.fail(w, http.StatusInternalServerError, policy.FailureMessage)
			return
		}

		h := w.Header()
		h.Set("Content-Type", policy.contentType(filename))
		h.Set("Content-Length", strconv.Itoa(len(data)))
		switch {
		case grant.Disposition != "":
			h.Set("Content-Disposition", grant.Disposition)
		case policy.Disposition != nil:
			h.Set("Content-Disposition", policy.Disposition(filename))
		}
		if policy.CacheControl != "" {
			h.Set("Cache-Control", policy.CacheControl)
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			slog.Debug("client went away during artifact write",
				"variant", policy.Variant,
				"filename", filename,
				"error", err,
			)
		}

		metrics.DownloadsTotal.WithLabelValues(policy.Variant, "success").Inc()
		metrics.DownloadSizeBytes.WithLabelValues(policy.Variant).Observe(float64(len(data)))

		logLevel := slog.LevelDebug
		if policy.Gate != nil {
			logLevel = slog.LevelInfo
		}
		slog.Log(r.Context(), logLevel, "artifact served",
			"variant", policy.Variant,
			"filename", filename,
			"size", len(data),
			"client_ip", utils.GetRemoteIP(r),
		)
	}
}

func statusLabel(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func imagePolicy(variant string) ServePolicy {
	return ServePolicy{
		Variant:         variant,
		ContentTypes:    utils.ImageContentTypes,
		CacheControl:    CacheImmutable,
		ErrorStyle:      ErrorStyleText,
		NotFoundMessage: "Image not found",
		FailureMessage:  "Failed to serve image",
	}
}

// ProductImageHandler serves product images without authorization.
func ProductImageHandler(store storage.ArtifactStore) http.HandlerFunc {
	return ServeArtifact(store, imagePolicy(metrics.VariantImage))
}

// PreviewImageHandler serves preview images without authorization.
func PreviewImageHandler(store storage.ArtifactStore) http.HandlerFunc {
	return ServeArtifact(store, imagePolicy(metrics.VariantPreview))
}

// RawSoftwareHandler serves stored software files by their stored name.
// There is no publication check on this route.
func RawSoftwareHandler(store storage.ArtifactStore) http.HandlerFunc {
	return ServeArtifact(store, ServePolicy{
		Variant:         metrics.VariantSoftwareRaw,
		ContentTypes:    utils.InstallerContentTypes,
		CacheControl:    CachePublicHour,
		Disposition:     utils.AttachmentDisposition,
		ErrorStyle:      ErrorStyleError,
		NotFoundMessage: "File not found",
		FailureMessage:  "Failed to serve file",
	})
}
