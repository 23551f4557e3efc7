package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/noteservice"
)

const maxBodyBytes = 30 << 20 // JSON bodies may carry a base64 image

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, pinned first then newest, optionally filtered
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive substring of title or content"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, toListResponse(notes))
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get note", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(note))
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note, err := h.svc.Create(r.Context(), req.Title, req.Content, req.Image)
	if err != nil {
		writeServiceError(w, "create note", "", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(note))
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace the title and content of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Updated fields"
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := noteID(r)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	note, err := h.svc.Update(r.Context(), id, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, "update note", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(note))
}

// TogglePin handles POST /api/notes/{id}/pin.
//
//	@Summary		Toggle the pinned flag of a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/pin [post]
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.TogglePin(r.Context(), id)
	if err != nil {
		writeServiceError(w, "toggle pin", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(note))
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete note", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreferences handles GET /api/preferences.
//
//	@Summary		Read user preferences
//	@Tags			preferences
//	@Produce		json
//	@Success		200	{object}	PreferencesResponse
//	@Security		BearerAuth
//	@Router			/preferences [get]
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PreferencesResponse{IsDarkMode: h.svc.DarkMode(r.Context())})
}

// UpdatePreferences handles PUT /api/preferences.
//
//	@Summary		Update user preferences
//	@Tags			preferences
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PreferencesRequest	true	"New preferences"
//	@Success		200		{object}	PreferencesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preferences [put]
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	var req PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.svc.SetDarkMode(r.Context(), *req.IsDarkMode)
	writeJSON(w, http.StatusOK, PreferencesResponse{IsDarkMode: h.svc.DarkMode(r.Context())})
}

// Reload handles POST /api/reload: re-read notes and preferences from storage.
//
//	@Summary		Reload notes and preferences from storage
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Failure		409	{object}	errResponse	"Stored notes could not be decoded; working set kept"
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Load(r.Context()) {
		writeJSON(w, http.StatusConflict, errorBody("stored notes could not be read; working set kept"))
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(h.svc.List(r.Context())))
}
