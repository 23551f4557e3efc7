package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/checksum"
)

const maxImageBytes = 20 << 20 // 20 MB

// GetImage handles GET /api/notes/{id}/image.
//
//	@Summary		Download the image attached to a note
//	@Tags			images
//	@Produce		octet-stream
//	@Param			id				path	string	true	"Note id"
//	@Param			If-None-Match	header	string	false	"ETag from a previous response"
//	@Success		200				"Image bytes"
//	@Success		304				"Not modified"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [get]
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get image", id, err)
		return
	}
	if !note.HasImage() {
		writeServiceError(w, "get image", id, apperr.ErrNoImage)
		return
	}

	etag := checksum.ETag(note.ImageData)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(note.ImageData))
	w.Header().Set("Content-Length", strconv.Itoa(len(note.ImageData)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(note.ImageData))
}

// PutImage handles PUT /api/notes/{id}/image (multipart/form-data, field "file").
//
//	@Summary		Attach or replace the image of a note
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			file	formData	file	true	"Image file"
//	@Success		200		{object}	NoteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [put]
func (h *Handler) PutImage(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if len(data) > maxImageBytes {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large"))
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("file is empty"))
		return
	}

	note, err := h.svc.SetImage(r.Context(), id, data)
	if err != nil {
		writeServiceError(w, "put image", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(note))
}

// DeleteImage handles DELETE /api/notes/{id}/image.
//
//	@Summary		Remove the image of a note
//	@Tags			images
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Image removed"
//	@Failure		404	{object}	errResponse	"Unknown note, or the note has no image"
//	@Security		BearerAuth
//	@Router			/notes/{id}/image [delete]
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if _, err := h.svc.ClearImage(r.Context(), id); err != nil {
		writeServiceError(w, "delete image", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
