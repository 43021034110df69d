package handlers

import (
	"net/http"
	"strconv"

	"github.com/careloop/careloop/internal/access"
	"github.com/careloop/careloop/internal/api/write"
	"github.com/careloop/careloop/internal/constants"
	"github.com/careloop/careloop/internal/policy"
	"github.com/careloop/careloop/internal/repo"
)

// scopedPtr ties a model type to its pointer form so one handler can serve
// every tenant scoped resource.
type scopedPtr[T any] interface {
	*T
	access.Resource
}

// ResourceHandler serves CRUD over a single tenant scoped resource kind. All
// data access goes through the access engine; the handler never touches the
// repository directly.
type ResourceHandler[T any, PT scopedPtr[T]] struct {
	engine   *access.Engine
	sessions SessionService
	kind     policy.ResourceKind
}

func NewResourceHandler[T any, PT scopedPtr[T]](
	engine *access.Engine,
	sessions SessionService,
	kind policy.ResourceKind,
) *ResourceHandler[T, PT] {
	return &ResourceHandler[T, PT]{
		engine:   engine,
		sessions: sessions,
		kind:     kind,
	}
}

type listResponse[T any] struct {
	Items []*T `json:"items"`
	Total int  `json:"total"`
}

func (h *ResourceHandler[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	query := repo.NewQuery().
		SetLimit(queryInt(r, "top", constants.DefaultTop)).
		SetOffset(queryInt(r, "skip", constants.DefaultSkip))

	var results []*T

	total, err := h.engine.List(ctx, sc, h.kind, PT(new(T)), &results, query)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if results == nil {
		results = []*T{}
	}

	write.JSONResponse(ctx, w, http.StatusOK, listResponse[T]{Items: results, Total: total})
}

func (h *ResourceHandler[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	entity := PT(new(T))

	err = h.engine.Get(ctx, sc, h.kind, id, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusOK, entity)
}

func (h *ResourceHandler[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	entity := PT(new(T))

	err = decodeJSON(r, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = h.engine.Create(ctx, sc, h.kind, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusCreated, entity)
}

func (h *ResourceHandler[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	// Load first so the patch is applied over the persisted row and keeps
	// its identity and tenant stamp.
	entity := PT(new(T))

	err = h.engine.Get(ctx, sc, h.kind, id, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = decodeJSON(r, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = h.engine.Update(ctx, sc, h.kind, id, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	write.JSONResponse(ctx, w, http.StatusOK, entity)
}

func (h *ResourceHandler[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sc, err := sessionFrom(r, h.sessions)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	// Load first: the accessibility check runs against the persisted row, so
	// a cross-tenant guess surfaces the same not-found as a missing id.
	entity := PT(new(T))

	err = h.engine.Get(ctx, sc, h.kind, id, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = h.engine.Delete(ctx, sc, h.kind, id, entity)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}

	return value
}
