package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/auth"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// userID returns the authenticated caller. Routes under /api always run
// behind the auth middleware.
func userID(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	if id == nil {
		return ""
	}
	return id.UserID
}

// queryLimit parses the optional limit parameter. Zero means the default.
func queryLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (a *API) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := a.svc.GetNote(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *API) handleGetNoteByHumanID(w http.ResponseWriter, r *http.Request) {
	note, err := a.svc.GetNoteByHumanID(r.Context(), userID(r), mux.Vars(r)["hid"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *API) handleChildren(w http.ResponseWriter, r *http.Request) {
	notes, err := a.svc.Children(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	respondJSON(w, http.StatusOK, notes)
}

func (a *API) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	note, err := a.svc.CreateNote(r.Context(), userID(r))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (a *API) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	note, err := a.svc.CreateChild(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var upd models.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	note, err := a.svc.UpdateNote(r.Context(), userID(r), mux.Vars(r)["id"], upd)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteNote(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleMentionedBy(w http.ResponseWriter, r *http.Request) {
	notes, err := a.svc.MentionedBy(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

type collapsedRequest struct {
	Collapsed bool `json:"collapsed"`
}

func (a *API) handleGetCollapsed(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, err := a.svc.Collapsed(r.Context(), userID(r), vars["id"], vars["itemId"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NoteUIState{NoteID: vars["id"], CanvasItemID: vars["itemId"], Collapsed: c})
}

func (a *API) handleSetCollapsed(w http.ResponseWriter, r *http.Request) {
	var req collapsedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	vars := mux.Vars(r)
	c, err := a.svc.SetCollapsed(r.Context(), userID(r), vars["id"], vars["itemId"], req.Collapsed)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.NoteUIState{NoteID: vars["id"], CanvasItemID: vars["itemId"], Collapsed: c})
}
