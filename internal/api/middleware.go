package api

import (
	"io"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
)

// Wrap adds an access log, panic recovery and permissive CORS for
// dashboards served from another origin.
func Wrap(next http.Handler, accessLog io.Writer) http.Handler {
	logged := handlers.LoggingHandler(accessLog, next)
	recovered := handlers.RecoveryHandler(handlers.RecoveryLogger(log.Default()))(logged)
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", OperatorHeader}),
	)(recovered)
}
