package compras

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
)

// Module identificador usado nas permissões.
const Module = "compras"

// Handler rotas do módulo de compras.
type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

// RegisterRoutes monta /compras. Espera middleware.Auth aplicado antes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compras", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Patch("/{id}/status", h.handleStatus)
		r.Get("/{id}/historico", h.handleHistory)
		r.Get("/{id}/anexos", h.handleListAnexos)
		r.Post("/{id}/anexos", h.handleUpload)
		r.Delete("/{id}/anexos/{anexoID}", h.handleDeleteAnexo)
	})
}

type createRequest struct {
	Departamento  string      `json:"departamento"`
	Justificativa string      `json:"justificativa"`
	Prioridade    string      `json:"prioridade"`
	Itens         []ItemInput `json:"itens"`
}

type statusRequest struct {
	Status     Status `json:"status"`
	Comentario string `json:"comentario"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{
		Status:       Status(q.Get("status")),
		Departamento: q.Get("departamento"),
		Prioridade:   q.Get("prioridade"),
		Busca:        q.Get("q"),
		Limit:        respond.QueryLimit(r),
		Offset:       respond.QueryInt(r, "offset", 0),
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.CreateSolicitacao(r.Context(), middleware.GetSubject(r.Context()), req.Departamento, req.Justificativa, req.Prioridade, req.Itens)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
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
		"total":       item.Total(),
		"acoes":       Machine.Actions(item.Status),
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var patch Patch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Fail(w, r, err)
		return
	}
	updated, err := h.service.UpdateSolicitacao(r.Context(), id, patch)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
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

func (h *Handler) handleListAnexos(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	anexos, err := h.service.ListAnexos(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, anexos)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
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

func (h *Handler) handleDeleteAnexo(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	anexoID, err := respond.UUIDParam(r, "anexoID")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := h.service.DeleteAnexo(r.Context(), id, anexoID); err != nil {
		respond.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
