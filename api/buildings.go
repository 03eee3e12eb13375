package api

import (
	"encoding/json"
	"net/http"

	"geodirectory/pkg/directory"
)

func (h *Handlers) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req directory.CreateBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	building, err := h.buildingService.Create(r.Context(), &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusCreated, building)
}

func (h *Handlers) ListBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.buildingService.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, buildings, len(buildings))
}

func (h *Handlers) GetBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	building, err := h.buildingService.GetByID(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, building)
}

func (h *Handlers) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	var req directory.CreateBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	building, err := h.buildingService.Update(r.Context(), id, &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, building)
}

func (h *Handlers) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	flagged, err := h.buildingService.Delete(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]bool{"deleted": flagged})
}
