package api

import (
	"encoding/json"
	"net/http"

	"geodirectory/pkg/directory"
)

func (h *Handlers) CreatePhone(w http.ResponseWriter, r *http.Request) {
	var req directory.CreatePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	phone, err := h.phoneService.Create(r.Context(), &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusCreated, phone)
}

func (h *Handlers) ListPhones(w http.ResponseWriter, r *http.Request) {
	phones, err := h.phoneService.List(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendList(w, phones, len(phones))
}

func (h *Handlers) GetPhone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	phone, err := h.phoneService.GetByID(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, phone)
}

func (h *Handlers) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	var req directory.CreatePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	phone, err := h.phoneService.Update(r.Context(), id, &req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, phone)
}

func (h *Handlers) DeletePhone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r.URL.Query().Get("id"))
	if !ok {
		sendError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return
	}

	flagged, err := h.phoneService.Delete(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendSuccess(w, http.StatusOK, map[string]bool{"deleted": flagged})
}
