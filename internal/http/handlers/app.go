package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"promptqueue/internal/providers/session"
	"promptqueue/internal/queue"
	"promptqueue/internal/storage"
)

// App bundles the dependencies the HTTP handlers need: the queue processor
// and its store, the artifact store, and the session validator.
type App struct {
	Processor *queue.Processor
	JobStore  *queue.Store
	Artifacts *storage.FileStore
	Sessions  *session.Validator
	Logger    zerolog.Logger

	// DefaultAspectRatio applies when a submission does not pick one.
	DefaultAspectRatio string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": slug, "message": message},
	})
}
