package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"geodirectory/api/middleware"
	"geodirectory/api/services"
	"geodirectory/db"
	"geodirectory/pkg/metrics"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/shared"
)

type Handlers struct {
	buildingService     *services.BuildingService
	activityService     *services.ActivityService
	phoneService        *services.PhoneService
	organizationService *services.OrganizationService
	db                  *db.Service
	log                 *zap.Logger
}

func NewHandlers(database *db.Service, nats *embeddednats.EmbeddedNATS, log *zap.Logger) *Handlers {
	activityService := services.NewActivityService(database, nats, log)
	return &Handlers{
		buildingService:     services.NewBuildingService(database, nats, log),
		activityService:     activityService,
		phoneService:        services.NewPhoneService(database, nats, log),
		organizationService: services.NewOrganizationService(database, nats, activityService, log),
		db:                  database,
		log:                 log,
	}
}

// Health check
func (h *Handlers) HealthCheck(nats *embeddednats.EmbeddedNATS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := shared.HealthStatus{
			Status:    "healthy",
			Service:   "directory-api",
			Timestamp: time.Now(),
			Details:   make(map[string]string),
		}

		if err := h.db.Health(); err != nil {
			health.Status = "unhealthy"
			health.Details["database"] = "unhealthy: " + err.Error()
		} else {
			health.Details["database"] = "healthy"
		}

		if err := nats.HealthCheck(); err != nil {
			health.Status = "unhealthy"
			health.Details["nats"] = "unhealthy: " + err.Error()
		} else {
			health.Details["nats"] = "healthy"
		}

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		sendSuccess(w, statusCode, health)
	}
}

// Helper functions
func sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: true,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

func sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// sendServiceError maps the shared error taxonomy onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		sendError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		sendError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, shared.ErrConflict):
		sendError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, shared.ErrUnavailable):
		sendError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
	default:
		sendError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func parseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	return id, err == nil && id > 0
}

func parseFloat(value string) (float64, bool) {
	f, err := strconv.ParseFloat(value, 64)
	return f, err == nil
}

// sendList wraps an empty-capable collection response and keeps the
// empty-result counter honest.
func sendList(w http.ResponseWriter, data interface{}, count int) {
	if count == 0 {
		metrics.EmptyResultsTotal.Inc()
	}
	sendSuccess(w, http.StatusOK, data)
}

// RegisterRoutes sets up all API routes
func (h *Handlers) RegisterRoutes(mux *http.ServeMux, nats *embeddednats.EmbeddedNATS, apiKey string) {
	auth := middleware.APIKeyAuth(apiKey)

	// Health and metrics (no auth required)
	mux.HandleFunc("/health", h.HealthCheck(nats))
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/api/v1/buildings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			auth(h.CreateBuilding)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("id") != "" {
				auth(h.GetBuilding)(w, r)
			} else {
				auth(h.ListBuildings)(w, r)
			}
		case http.MethodPut:
			auth(h.UpdateBuilding)(w, r)
		case http.MethodDelete:
			auth(h.DeleteBuilding)(w, r)
		default:
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/activities", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			auth(h.CreateActivity)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("id") != "" {
				auth(h.GetActivity)(w, r)
			} else {
				auth(h.ListActivities)(w, r)
			}
		case http.MethodPut:
			auth(h.UpdateActivity)(w, r)
		case http.MethodDelete:
			auth(h.DeleteActivity)(w, r)
		default:
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/phones", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			auth(h.CreatePhone)(w, r)
		case http.MethodGet:
			if r.URL.Query().Get("id") != "" {
				auth(h.GetPhone)(w, r)
			} else {
				auth(h.ListPhones)(w, r)
			}
		case http.MethodPut:
			auth(h.UpdatePhone)(w, r)
		case http.MethodDelete:
			auth(h.DeletePhone)(w, r)
		default:
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/organizations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			auth(h.CreateOrganization)(w, r)
		case http.MethodGet:
			q := r.URL.Query()
			switch {
			case q.Get("id") != "":
				auth(h.GetOrganization)(w, r)
			case q.Get("name") != "":
				auth(h.GetOrganizationByName)(w, r)
			case q.Get("building_id") != "":
				auth(h.ListOrganizationsByBuilding)(w, r)
			case q.Get("activity_id") != "":
				auth(h.ListOrganizationsByActivity)(w, r)
			default:
				auth(h.ListOrganizations)(w, r)
			}
		case http.MethodPut:
			auth(h.UpdateOrganization)(w, r)
		case http.MethodDelete:
			auth(h.DeleteOrganization)(w, r)
		default:
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/organizations/search/radius", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
			return
		}
		auth(h.SearchOrganizationsByRadius)(w, r)
	})

	mux.HandleFunc("/api/v1/organizations/search/rectangle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
			return
		}
		auth(h.SearchOrganizationsByRectangle)(w, r)
	})

	mux.HandleFunc("/api/v1/organizations/search/activity-tree", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
			return
		}
		auth(h.ListOrganizationsByActivityTree)(w, r)
	})
}
