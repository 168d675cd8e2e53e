package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/echolog/internal/checksum"
	"github.com/starford/echolog/internal/memoservice"
	"github.com/starford/echolog/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *memoservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memoservice.Service) *Handler {
	return &Handler{svc: svc}
}

// memoID extracts and checks the {id} URL parameter. On failure the 400
// response is already written.
func memoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !memoservice.ValidID(id) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid memo id"))
		return "", false
	}
	return id, true
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func writeMemo(w http.ResponseWriter, status int, m *models.Memo) {
	w.Header().Set("ETag", checksum.ETag(memoservice.Version(m)))
	writeJSON(w, status, m)
}

// ListMemos handles GET /api/memos.
func (h *Handler) ListMemos(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryInt(r, "limit")
	skip, ok2 := queryInt(r, "skip")
	if !ok1 || !ok2 {
		writeJSON(w, http.StatusBadRequest, errorBody("limit and skip must be integers"))
		return
	}
	page, err := h.svc.List(r.Context(), ownerOf(r), limit, skip)
	if err != nil {
		writeError(w, "list memos", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// CreateMemo handles POST /api/memos. Linking runs after the response.
func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.Create(r.Context(), ownerOf(r), req)
	if err != nil {
		writeError(w, "create memo", err)
		return
	}
	writeMemo(w, http.StatusCreated, m)
}

// GetMemo handles GET /api/memos/{id}.
func (h *Handler) GetMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	m, err := h.svc.Get(r.Context(), ownerOf(r), id)
	if err != nil {
		writeError(w, "get memo", err)
		return
	}
	writeMemo(w, http.StatusOK, m)
}

// UpdateMemo handles PATCH /api/memos/{id} with optional If-Match.
func (h *Handler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	var req UpdateMemoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.Update(r.Context(), ownerOf(r), id, req, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "update memo", err)
		return
	}
	writeMemo(w, http.StatusOK, m)
}

// DeleteMemo handles DELETE /api/memos/{id}.
func (h *Handler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), ownerOf(r), id); err != nil {
		writeError(w, "delete memo", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Message: "memo deleted"})
}

// RelatedMemos handles GET /api/memos/{id}/related.
func (h *Handler) RelatedMemos(w http.ResponseWriter, r *http.Request) {
	id, ok := memoID(w, r)
	if !ok {
		return
	}
	memos, err := h.svc.Related(r.Context(), ownerOf(r), id)
	if err != nil {
		writeError(w, "related memos", err)
		return
	}
	writeJSON(w, http.StatusOK, memos)
}

// SearchSimilar handles POST /api/memos/search.
func (h *Handler) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req SimilarSearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := h.svc.SearchSimilar(r.Context(), ownerOf(r), req.Embedding, req.Limit)
	if err != nil {
		writeError(w, "similar search", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := queryInt(r, "limit")
	results, err := h.svc.SearchText(r.Context(), ownerOf(r), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
		return
	}
	g, err := h.svc.Graph(r.Context(), ownerOf(r), r.URL.Query().Get("tag"), limit)
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GenerateTitle handles POST /api/gpt/title.
func (h *Handler) GenerateTitle(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	title, err := h.svc.Title(r.Context(), req.Content)
	if err != nil {
		writeError(w, "generate title", err)
		return
	}
	writeJSON(w, http.StatusOK, TitleResponse{Title: title})
}

// ExtractTags handles POST /api/gpt/tags.
func (h *Handler) ExtractTags(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tags, err := h.svc.Tags(r.Context(), req.Content)
	if err != nil {
		writeError(w, "extract tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// ExtractDateTime handles POST /api/gpt/datetime.
func (h *Handler) ExtractDateTime(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dt, err := h.svc.DateTime(r.Context(), req.Content)
	if err != nil {
		writeError(w, "extract datetime", err)
		return
	}
	writeJSON(w, http.StatusOK, newDateTimeResponse(dt))
}

// Suggestions handles POST /api/gpt/suggestions.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req SuggestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.Suggestions(r.Context(), ownerOf(r), req.MemoIDs)
	if err != nil {
		writeError(w, "suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
