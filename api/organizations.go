package api

import (
	"encoding/json"
	"net/http"

	"geodirectory/pkg/directory"
)

func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req directory.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	org, err := h.organizationService.Create(r.Context(), &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusCreated, org)
}

func (h *Handlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.organizationService.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	org, err := h.organizationService.GetByID(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, org)
}

func (h *Handlers) GetOrganizationByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")

	org, err := h.organizationService.GetByName(r.Context(), name)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, org)
}

func (h *Handlers) ListOrganizationsByBuilding(w http.ResponseWriter, r *http.Request) {
	buildingID, ok := parseID(r.URL.Query().Get("building_id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "building_id must be a positive integer")
		return
	}

	orgs, err := h.organizationService.ByBuilding(r.Context(), buildingID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) ListOrganizationsByActivity(w http.ResponseWriter, r *http.Request) {
	activityID, ok := parseID(r.URL.Query().Get("activity_id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "activity_id must be a positive integer")
		return
	}

	orgs, err := h.organizationService.ByActivity(r.Context(), activityID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) ListOrganizationsByActivityTree(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		sendError(w, http.StatusBadRequest, "MISSING_NAME", "name is required")
		return
	}

	orgs, err := h.organizationService.ByActivityTree(r.Context(), name)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) SearchOrganizationsByRadius(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, okLat := parseFloat(q.Get("lat"))
	lon, okLon := parseFloat(q.Get("lon"))
	radius, okRadius := parseFloat(q.Get("radius_km"))
	if !okLat || !okLon || !okRadius {
		sendError(w, http.StatusBadRequest, "INVALID_PARAMS", "lat, lon and radius_km are required numbers")
		return
	}

	orgs, err := h.organizationService.ByRadius(r.Context(), &directory.RadiusQuery{
		Lat:      lat,
		Lon:      lon,
		RadiusKm: radius,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) SearchOrganizationsByRectangle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latMin, okLatMin := parseFloat(q.Get("lat_min"))
	latMax, okLatMax := parseFloat(q.Get("lat_max"))
	lonMin, okLonMin := parseFloat(q.Get("lon_min"))
	lonMax, okLonMax := parseFloat(q.Get("lon_max"))
	if !okLatMin || !okLatMax || !okLonMin || !okLonMax {
		sendError(w, http.StatusBadRequest, "INVALID_PARAMS", "lat_min, lat_max, lon_min and lon_max are required numbers")
		return
	}

	orgs, err := h.organizationService.ByRectangle(r.Context(), &directory.RectangleQuery{
		LatMin: latMin,
		LatMax: latMax,
		LonMin: lonMin,
		LonMax: lonMax,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, orgs, len(orgs))
}

func (h *Handlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	var req directory.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	org, err := h.organizationService.Update(r.Context(), id, &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, org)
}

func (h *Handlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	flagged, err := h.organizationService.Delete(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]bool{"deleted": flagged})
}
