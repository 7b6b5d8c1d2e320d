package handler

import (
	"net/http"

	"github.com/bakehouse/api/internal/config"
)

// SettingsHandler serves display settings to clients.
type SettingsHandler struct {
	display config.Display
}

func NewSettingsHandler(display config.Display) *SettingsHandler {
	return &SettingsHandler{display: display}
}

// Get returns {locale, currency, timezone}.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.display)
}
