package documentos

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
)

const Module = "documentos"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documentos", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/encaminhar", h.handleForward)
		r.Patch("/{id}/status", h.handleStatus)
		r.Get("/{id}/tramitacoes", h.handleTramitacoes)
		r.Get("/{id}/historico", h.handleHistory)
		r.Get("/{id}/anexos", h.handleListAnexos)
		r.Post("/{id}/anexos", h.handleUpload)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListDocumentos(r.Context(), Filter{
		Status: Status(q.Get("status")),
		Tipo:   q.Get("tipo"),
		Setor:  q.Get("setor"),
		Busca:  q.Get("busca"),
		Limit:  respond.QueryLimit(r),
		Offset: respond.QueryInt(r, "offset", 0),
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
	created, err := h.service.Protocolar(r.Context(), in, middleware.ActorID(r.Context()))
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
	doc, err := h.service.GetDocumento(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"documento": doc,
		"acoes":     Machine.Actions(doc.Status),
	})
}

type forwardRequest struct {
	Destino  string `json:"destino"`
	Despacho string `json:"despacho"`
}

func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var req forwardRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	doc, err := h.service.Encaminhar(r.Context(), id, req.Destino, req.Despacho, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, doc)
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
	doc, err := h.service.UpdateStatus(r.Context(), id, req.Status, req.Comentario, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleTramitacoes(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	items, err := h.service.Tramitacoes(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
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
