package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// UploadCORS answers preflight requests for the software upload route and
// adds CORS headers to its responses. Only allowedOrigin is accepted.
func UploadCORS(allowedOrigin string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       []string{allowedOrigin},
		AllowedMethods:       []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		AllowCredentials:     true,
		OptionsPassthrough:   false,
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler
}
