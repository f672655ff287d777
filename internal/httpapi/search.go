package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
)

func (a *API) respondNotes(w http.ResponseWriter, r *http.Request, notes []models.Note, err error) {
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	respondJSON(w, http.StatusOK, notes)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	notes, err := a.svc.Search(r.Context(), userID(r), r.URL.Query().Get("q"), limit)
	a.respondNotes(w, r, notes, err)
}

func (a *API) handleSearchOrRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	notes, err := a.svc.SearchOrRecent(r.Context(), userID(r), r.URL.Query().Get("q"), limit)
	a.respondNotes(w, r, notes, err)
}

func (a *API) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	notes, err := a.svc.Recent(r.Context(), userID(r), limit)
	a.respondNotes(w, r, notes, err)
}

func (a *API) handleSimilarNotes(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	notes, err := a.svc.SimilarNotes(r.Context(), userID(r), mux.Vars(r)["id"], limit)
	a.respondNotes(w, r, notes, err)
}

func (a *API) handleSimilarToText(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	notes, err := a.svc.SimilarToText(r.Context(), userID(r), r.URL.Query().Get("q"), limit)
	a.respondNotes(w, r, notes, err)
}

func (a *API) handleEmbedAll(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.EmbedAll(r.Context()); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, a.svc.PipelineStatus())
}

func (a *API) handleEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.svc.PipelineStatus())
}

func (a *API) handleEmbedNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.svc.EmbedNote(r.Context(), userID(r), id); err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	note, err := a.svc.GetNote(r.Context(), userID(r), id)
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (a *API) handleRemoveEmbeddings(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.RemoveAllEmbeddings(r.Context())
	if err != nil {
		a.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}
