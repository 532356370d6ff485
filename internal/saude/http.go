package saude

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
)

const Module = "saude"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/saude/transporte", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}/status", h.handleStatus)
		r.Get("/{id}/historico", h.handleHistory)
		r.Get("/{id}/anexos", h.handleListAnexos)
	})

	r.Route("/cidadao/transporte", func(r chi.Router) {
		r.Use(middleware.RequireKind(identity.KindCitizen))
		r.Get("/", h.handleListMine)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGetMine)
		r.Post("/{id}/cancelar", h.handleCancel)
		r.Post("/{id}/anexos", h.handleUploadMine)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Status:  Status(q.Get("status")),
		Destino: q.Get("destino"),
		Limit:   respond.QueryLimit(r),
		Offset:  respond.QueryInt(r, "offset", 0),
	}
	if raw := q.Get("data"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			respond.Fail(w, r, apperr.Invalid("data inválida: %s", raw))
			return
		}
		f.De, f.Ate = day, day.AddDate(0, 0, 1)
	}
	items, err := h.service.ListSolicitacoes(r.Context(), f)
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
	respond.JSON(w, http.StatusOK, map[string]any{
		"solicitacao": item,
		"acoes":       Machine.Actions(item.Status),
	})
}

type statusRequest struct {
	Status     Status `json:"status"`
	Comentario string `json:"comentario"`
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
	items, err := h.service.Historico(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleListAnexos(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	items, err := h.service.ListAnexos(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{CidadaoID: middleware.GetSubject(r.Context())})
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
	created, err := h.service.Solicitar(r.Context(), middleware.GetSubject(r.Context()), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return uuid.Nil, false
	}
	if _, err := h.service.GetDoCidadao(r.Context(), middleware.GetSubject(r.Context()), id); err != nil {
		respond.Fail(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleGetMine(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.GetDoCidadao(r.Context(), middleware.GetSubject(r.Context()), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.Cancelar(r.Context(), middleware.GetSubject(r.Context()), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUploadMine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.mine(w, r)
	if !ok {
		return
	}
	file, err := attachment.ReadMultipart(r, "arquivo")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	anexo, err := h.service.UploadAnexo(r.Context(), id, file, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, anexo)
}
