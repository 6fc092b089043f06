package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"db-premigrate/internal/services"
)

// Handler holds service dependencies
type Handler struct {
	watchService *services.WatchService
}

func NewHandler(watchService *services.WatchService) *Handler {
	return &Handler{
		watchService: watchService,
	}
}

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type ConfigRequest struct {
	CronSchedule string `json:"cronSchedule"`
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.RootHandler)
	mux.HandleFunc("/health", h.HealthHandler)
	mux.HandleFunc("/api/check/status", h.StatusHandler)
	mux.HandleFunc("/api/check/run", h.RunCheckHandler)
	mux.HandleFunc("/api/watch/start", h.StartWatchHandler)
	mux.HandleFunc("/api/watch/stop", h.StopWatchHandler)
	mux.HandleFunc("/api/watch/config", h.ConfigHandler)
}

func (h *Handler) StartWatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.watchService.Start(); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Watch started", nil)
}

func (h *Handler) StopWatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.watchService.Stop(); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Watch stopped", nil)
}

func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var configReq ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&configReq); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if configReq.CronSchedule == "" {
		sendErrorResponse(w, "cronSchedule is required", http.StatusBadRequest)
		return
	}

	if err := h.watchService.UpdateSchedule(configReq.CronSchedule); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Configuration updated", h.watchService.GetStatus())
}

func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sendSuccessResponse(w, "", h.watchService.GetStatus())
}

func (h *Handler) RunCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	diagnosis, err := h.watchService.Trigger(r.Context())
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sendSuccessResponse(w, "Check completed", diagnosis)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "Service is running", nil)
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		sendErrorResponse(w, "Not found", http.StatusNotFound)
		return
	}

	endpoints := map[string]string{
		"health":     "GET /health",
		"status":     "GET /api/check/status",
		"runCheck":   "POST /api/check/run",
		"startWatch": "POST /api/watch/start",
		"stopWatch":  "POST /api/watch/stop",
		"config":     "PUT /api/watch/config",
	}

	response := Response{
		Success: true,
		Message: "OpenUpgrade pre-migration watch",
		Data:    map[string]interface{}{"endpoints": endpoints},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	response := Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := Response{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
