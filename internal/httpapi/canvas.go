package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/geom"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

// placeRequest places an existing note when NoteID is set and creates a new
// one otherwise.
type placeRequest struct {
	NoteID   string   `json:"note_id,omitempty"`
	Position geom.Vec `json:"position"`
}

func (a *API) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	cv, err := a.svc.Canvas(r.Context(), userID(r))
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cv)
}

func (a *API) handleSetOrigin(w http.ResponseWriter, r *http.Request) {
	var origin geom.Vec
	if err := json.NewDecoder(r.Body).Decode(&origin); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := a.svc.SetOrigin(r.Context(), userID(r), mux.Vars(r)["id"], origin); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handlePlaceNote(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	canvasID := mux.Vars(r)["id"]

	if req.NoteID == "" {
		item, note, err := a.svc.CreateNoteOnCanvas(r.Context(), userID(r), canvasID, req.Position)
		if err != nil {
			a.respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, models.PlacedNote{Item: *item, Note: note})
		return
	}

	item, err := a.svc.AddNoteToCanvas(r.Context(), userID(r), canvasID, req.NoteID, req.Position)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.PlacedNote{Item: *item})
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.svc.Item(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (a *API) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var pos geom.Vec
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := a.svc.SetPosition(r.Context(), userID(r), mux.Vars(r)["id"], pos); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.RemoveItem(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
