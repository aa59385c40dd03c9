// Package function contains the HTTP greeting function that is deployed as
// Google Cloud Function. It is registered with the functions framework under
// the name "Greet".
package function

import (
	"fmt"
	"net/http"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"go.uber.org/zap"
)

// DefaultName is used if the request has no name query parameter.
const DefaultName = "Unbekannter"

func init() {
	functions.HTTP("Greet", NewHandler(newLogger()))
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}

	return logger
}

// NewHandler returns the greeting function. It answers every request with a
// plain text greeting for the name in the query string.
func NewHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := DefaultName
		if values, ok := r.URL.Query()["name"]; ok {
			name = values[0]
		}

		logger.Info("Function was called", zap.String("name", name))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := fmt.Fprintf(w, "Hallo, %s, aus einer Go Cloud Function!", name)
		if err != nil {
			logger.Error("Failed to write response", zap.Error(err))
		}
	}
}
