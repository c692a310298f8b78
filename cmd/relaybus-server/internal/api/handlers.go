// Package api provides HTTP handlers for the RelayBus server REST API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coregx/relaybus"
	"github.com/coregx/relaybus/model"
	"github.com/google/uuid"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	registry    *relaybus.SubscriptionRegistry
	provisioner *relaybus.TopicSubscriptionProvisioner
	monitor     *relaybus.DeadLetterMonitor
	logger      relaybus.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	registry *relaybus.SubscriptionRegistry,
	provisioner *relaybus.TopicSubscriptionProvisioner,
	monitor *relaybus.DeadLetterMonitor,
	logger relaybus.Logger,
) *Handler {
	return &Handler{
		registry:    registry,
		provisioner: provisioner,
		monitor:     monitor,
		logger:      logger,
	}
}

// SubscribeRequest represents a subscription creation request.
// AdapterInstanceID is optional; a fresh identifier is generated when omitted.
type SubscribeRequest struct {
	AdapterInstanceID string `json:"adapterInstanceID"`
	InterfaceName     string `json:"interfaceName"`
	AdapterName       string `json:"adapterName"`
	FilterCriteria    string `json:"filterCriteria"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleSubscriptions handles POST and GET /api/v1/subscriptions
func (h *Handler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSubscription(w, r)
	case http.MethodGet:
		h.listSubscriptions(w, r)
	default:
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

// createSubscription registers the subscription and provisions the broker
// entities for it.
func (h *Handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return
	}

	if req.InterfaceName == "" || req.AdapterName == "" {
		h.respondError(w, http.StatusBadRequest, "interfaceName and adapterName are required", "VALIDATION_ERROR")
		return
	}
	if req.AdapterInstanceID == "" {
		req.AdapterInstanceID = uuid.NewString()
	}

	subscription, err := h.registry.Upsert(r.Context(), relaybus.UpsertRequest{
		AdapterInstanceID: req.AdapterInstanceID,
		InterfaceName:     req.InterfaceName,
		AdapterName:       req.AdapterName,
		FilterCriteria:    req.FilterCriteria,
	})
	if err != nil {
		h.logger.Errorf("Failed to register subscription: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to register subscription", "SUBSCRIBE_ERROR")
		return
	}

	if err := h.provisioner.EnsureSubscription(r.Context(), req.InterfaceName, req.AdapterInstanceID, req.FilterCriteria); err != nil {
		h.logger.Errorf("Failed to provision broker subscription: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to provision broker subscription", "PROVISION_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusCreated, subscription, "Subscription created successfully")
}

// listSubscriptions queries by interfaceName or adapterInstanceID.
func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	interfaceName := r.URL.Query().Get("interfaceName")
	adapterInstanceID := r.URL.Query().Get("adapterInstanceID")

	var (
		subscriptions []model.Subscription
		err           error
	)
	switch {
	case interfaceName != "":
		subscriptions, err = h.registry.ListByInterface(r.Context(), interfaceName)
	case adapterInstanceID != "":
		subscriptions, err = h.registry.ListByAdapter(r.Context(), adapterInstanceID)
	default:
		h.respondError(w, http.StatusBadRequest, "interfaceName or adapterInstanceID query parameter is required", "VALIDATION_ERROR")
		return
	}

	if err != nil {
		h.logger.Errorf("Failed to list subscriptions: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list subscriptions", "LIST_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, subscriptions, "")
}

// HandleUnsubscribe handles DELETE /api/v1/subscriptions/:id
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	// Extract subscription ID from path (simple parsing)
	// In production, use a router like gorilla/mux or chi
	pathParts := splitPath(r.URL.Path)
	if len(pathParts) < 4 {
		h.respondError(w, http.StatusBadRequest, "Invalid subscription ID", "INVALID_ID")
		return
	}

	subscriptionID, err := strconv.ParseInt(pathParts[3], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid subscription ID", "INVALID_ID")
		return
	}

	subscription, err := h.registry.Get(r.Context(), subscriptionID)
	if err != nil {
		if relaybus.IsNoData(err) {
			h.respondError(w, http.StatusNotFound, "Subscription not found", "NOT_FOUND")
			return
		}
		h.logger.Errorf("Failed to load subscription: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to load subscription", "UNSUBSCRIBE_ERROR")
		return
	}

	if err := h.provisioner.DeleteSubscription(r.Context(), subscription.InterfaceName, subscription.AdapterInstanceID); err != nil {
		h.logger.Errorf("Failed to remove broker subscription: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to remove broker subscription", "UNSUBSCRIBE_ERROR")
		return
	}

	if err := h.registry.Delete(r.Context(), subscriptionID); err != nil {
		h.logger.Errorf("Failed to delete subscription: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to delete subscription", "UNSUBSCRIBE_ERROR")
		return
	}

	h.respondSuccess(w, http.StatusOK, subscription, "Unsubscribed successfully")
}

// HandleDeadLetterStats handles GET /api/v1/deadletters/stats
func (h *Handler) HandleDeadLetterStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	stats := h.monitor.StatsByInterface(r.Context())
	h.respondSuccess(w, http.StatusOK, stats, "")
}

// HandleDeadLetters handles GET /api/v1/deadletters
func (h *Handler) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	interfaceName := r.URL.Query().Get("interfaceName")
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if count <= 0 {
		count = 50
	}

	messages := h.monitor.Recent(r.Context(), count, interfaceName)
	h.respondSuccess(w, http.StatusOK, messages, "")
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "0.1.0",
	}

	h.respondSuccess(w, http.StatusOK, health, "")
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// splitPath splits URL path by "/", dropping empty segments.
func splitPath(path string) []string {
	parts := []string{}
	var current string
	for _, c := range path {
		if c == '/' {
			if current != "" {
				parts = append(parts, current)
			}
			current = ""
			continue
		}
		current += string(c)
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
