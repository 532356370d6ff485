package rh

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
)

const Module = "rh"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

// RegisterRoutes monta /rh. Qualquer servidor abre e acompanha os próprios pedidos;
// a gestão exige permissão no módulo.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rh", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireKind(identity.KindAdmin))
			r.Get("/minhas", h.handleListMine)
			r.Post("/minhas", h.handleCreate)
			r.Post("/minhas/{id}/cancelar", h.handleCancel)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(h.authz, Module))
			r.Get("/", h.handleList)
			r.Get("/{id}", h.handleGet)
			r.Patch("/{id}/status", h.handleStatus)
			r.Get("/{id}/historico", h.handleHistory)
		})
	})
}

type statusRequest struct {
	Status     Status `json:"status"`
	Comentario string `json:"comentario"`
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{
		ServidorID: middleware.GetSubject(r.Context()),
		Status:     Status(r.URL.Query().Get("status")),
		Limit:      respond.QueryLimit(r),
		Offset:     respond.QueryInt(r, "offset", 0),
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.CreateSolicitacao(r.Context(), middleware.GetSubject(r.Context()), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	updated, err := h.service.Cancelar(r.Context(), middleware.GetSubject(r.Context()), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{
		Status: Status(q.Get("status")),
		Tipo:   q.Get("tipo"),
		Limit:  respond.QueryLimit(r),
		Offset: respond.QueryInt(r, "offset", 0),
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.GetSolicitacao(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"solicitacao": item, "acoes": Machine.Actions(item.Status)})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	updated, err := h.service.UpdateStatus(r.Context(), id, req.Status, req.Comentario, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	entries, err := h.service.Historico(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, entries)
}
