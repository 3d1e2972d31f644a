package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// MaintenanceService is the part of maintenance.Service the HTTP layer uses.
type MaintenanceService interface {
	GenerateForecast(ctx context.Context, tenantID string) ([]models.MaintenancePrediction, error)
	GetSchedule(ctx context.Context, tenantID, id string) (*models.MaintenanceSchedule, error)
	GenerateServiceItems(ctx context.Context, scheduleID string) []models.MaintenanceServiceItem
	CreateSchedule(ctx context.Context, in maintenance.NewSchedule) (*models.MaintenanceSchedule, error)
	CompleteSchedule(ctx context.Context, tenantID, scheduleID string, c maintenance.Completion) (*models.MaintenanceSchedule, error)
}

// ForecastResponse wraps a tenant forecast.
type ForecastResponse struct {
	Count       int                            `json:"count"`
	Predictions []models.MaintenancePrediction `json:"predictions"`
}

// CompleteRequest is the body of a completion request.
type CompleteRequest struct {
	CompletedAt *time.Time `json:"completed_at"`
	Mileage     *int       `json:"mileage"`
	Technician  string     `json:"technician"`
	Notes       string     `json:"notes"`
}

// MaintenanceHandler serves forecasts and schedule operations
type MaintenanceHandler struct {
	service MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(service MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: service}
}

// Register mounts the maintenance routes on mux, each behind the permission
// it needs.
func (h *MaintenanceHandler) Register(mux *http.ServeMux, authMiddleware *middleware.AuthMiddleware) {
	view := authMiddleware.RequirePermission(models.ActionViewMaintenance)
	complete := authMiddleware.RequirePermission(models.ActionCompleteMaintenance)
	manage := authMiddleware.RequirePermission(models.ActionManageSchedules)

	mux.Handle("GET /api/maintenance/forecast", view(http.HandlerFunc(h.GetForecast)))
	mux.Handle("POST /api/maintenance/schedules", manage(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/maintenance/schedules/{id}", view(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("GET /api/maintenance/schedules/{id}/parts", view(http.HandlerFunc(h.GetParts)))
	mux.Handle("POST /api/maintenance/schedules/{id}/complete", complete(http.HandlerFunc(h.CompleteSchedule)))
}

// GetForecast returns predictions for every scheduled item of the caller's shop
func (h *MaintenanceHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	predictions, err := h.service.GenerateForecast(r.Context(), claims.TenantID)
	if err != nil {
		writeServiceError(w, err, log.Fields{"tenant_id": claims.TenantID})
		return
	}

	writeJSON(w, http.StatusOK, ForecastResponse{Count: len(predictions), Predictions: predictions})
}

// GetSchedule returns one schedule
func (h *MaintenanceHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	schedule, err := h.service.GetSchedule(r.Context(), claims.TenantID, id)
	if err != nil {
		writeServiceError(w, err, log.Fields{"tenant_id": claims.TenantID, "schedule_id": id})
		return
	}

	writeJSON(w, http.StatusOK, schedule)
}

// GetParts returns the normalized parts list of a schedule
func (h *MaintenanceHandler) GetParts(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if _, err := h.service.GetSchedule(r.Context(), claims.TenantID, id); err != nil {
		writeServiceError(w, err, log.Fields{"tenant_id": claims.TenantID, "schedule_id": id})
		return
	}

	writeJSON(w, http.StatusOK, h.service.GenerateServiceItems(r.Context(), id))
}

// CreateSchedule stores a new schedule for the caller's shop
func (h *MaintenanceHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var in maintenance.NewSchedule
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	in.TenantID = claims.TenantID

	schedule, err := h.service.CreateSchedule(r.Context(), in)
	if err != nil {
		writeServiceError(w, err, log.Fields{"tenant_id": claims.TenantID, "asset_id": in.AssetID})
		return
	}

	writeJSON(w, http.StatusCreated, schedule)
}

// CompleteSchedule records a finished service and rolls the schedule forward
func (h *MaintenanceHandler) CompleteSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req CompleteRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}
	if req.Mileage != nil && *req.Mileage < 0 {
		http.Error(w, "mileage must not be negative", http.StatusBadRequest)
		return
	}

	completion := maintenance.Completion{
		Mileage:    req.Mileage,
		Technician: req.Technician,
		Notes:      req.Notes,
	}
	if req.CompletedAt != nil {
		completion.CompletedAt = *req.CompletedAt
	}
	if completion.Technician == "" {
		completion.Technician = claims.Username
	}

	id := r.PathValue("id")
	schedule, err := h.service.CompleteSchedule(r.Context(), claims.TenantID, id, completion)
	if err != nil {
		writeServiceError(w, err, log.Fields{"tenant_id": claims.TenantID, "schedule_id": id})
		return
	}

	writeJSON(w, http.StatusOK, schedule)
}

func writeServiceError(w http.ResponseWriter, err error, fields log.Fields) {
	switch {
	case errors.Is(err, maintenance.ErrScheduleNotFound):
		http.Error(w, "Schedule not found", http.StatusNotFound)
	case errors.Is(err, maintenance.ErrInvalidSchedule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.WithError(err).WithFields(fields).Error("Maintenance request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}
