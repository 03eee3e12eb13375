package api

import (
	"encoding/json"
	"net/http"

	"geodirectory/pkg/directory"
)

func (h *Handlers) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req directory.CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	activity, err := h.activityService.Create(r.Context(), &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusCreated, activity)
}

func (h *Handlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.activityService.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, activities, len(activities))
}

func (h *Handlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	activity, err := h.activityService.GetByID(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, activity)
}

func (h *Handlers) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	var req directory.CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	activity, err := h.activityService.Update(r.Context(), id, &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, activity)
}

func (h *Handlers) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	flagged, err := h.activityService.Delete(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]bool{"deleted": flagged})
}
