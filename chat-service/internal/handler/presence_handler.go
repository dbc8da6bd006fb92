package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// PresenceHandler serves the realtime listener's plain HTTP endpoints.
type PresenceHandler struct {
	registry   registry.Registry
	directory  registry.Directory
	instanceID string
}

// NewPresenceHandler creates a presence handler. directory may be nil when
// the Redis session directory is disabled.
func NewPresenceHandler(reg registry.Registry, directory registry.Directory, instanceID string) *PresenceHandler {
	return &PresenceHandler{
		registry:   reg,
		directory:  directory,
		instanceID: instanceID,
	}
}

// PresenceResponse reports where an identity is connected.
type PresenceResponse struct {
	UserID     string `json:"user_id"`
	Online     bool   `json:"online"`
	InstanceID string `json:"instance_id,omitempty"`
}

// GetPresence handles GET /api/v1/presence/{user_id}
func (h *PresenceHandler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id is required")
		return
	}

	if _, ok := h.registry.Lookup(userID); ok {
		writeJSON(w, http.StatusOK, PresenceResponse{UserID: userID, Online: true, InstanceID: h.instanceID})
		return
	}

	if h.directory == nil {
		writeJSON(w, http.StatusOK, PresenceResponse{UserID: userID})
		return
	}

	instanceID, err := h.directory.Lookup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			writeJSON(w, http.StatusOK, PresenceResponse{UserID: userID})
			return
		}
		l := log.Ctx(r.Context())
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("session directory lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to look up presence")
		return
	}
	writeJSON(w, http.StatusOK, PresenceResponse{UserID: userID, Online: true, InstanceID: instanceID})
}

// HealthCheck handles GET /health
func (h *PresenceHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.registry.Len(),
	})
}

func (h *PresenceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/presence/{user_id}", h.GetPresence).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
