package assistencia

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/attachment"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
)

const Module = "assistencia"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

// RegisterRoutes monta /assistencia (gestão) e /cidadao/beneficios (app do cidadão).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/assistencia", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}/status", h.handleStatus)
		r.Get("/{id}/historico", h.handleHistory)
		r.Get("/{id}/anexos", h.handleListAnexos)
		r.Post("/{id}/anexos", h.handleUpload)
		r.Delete("/{id}/anexos/{anexoID}", h.handleDeleteAnexo)
	})

	r.Route("/cidadao/beneficios", func(r chi.Router) {
		r.Use(middleware.RequireKind(identity.KindCitizen))
		r.Get("/", h.handleListMine)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGetMine)
		r.Post("/{id}/anexos", h.handleUploadMine)
	})
}

type statusRequest struct {
	Status     Status `json:"status"`
	Comentario string `json:"comentario"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListBeneficios(r.Context(), Filter{
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
	item, err := h.service.GetBeneficio(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"beneficio":      item,
		"rendaPerCapita": item.RendaPerCapita(),
		"acoes":          Machine.Actions(item.Status),
	})
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
	h.upload(w, r, id)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
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

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListBeneficios(r.Context(), Filter{
		CidadaoID: middleware.GetSubject(r.Context()),
		Status:    Status(r.URL.Query().Get("status")),
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
	created, err := h.service.CreateBeneficio(r.Context(), middleware.GetSubject(r.Context()), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetMine(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.GetBeneficioDoCidadao(r.Context(), middleware.GetSubject(r.Context()), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUploadMine(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if _, err := h.service.GetBeneficioDoCidadao(r.Context(), middleware.GetSubject(r.Context()), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	h.upload(w, r, id)
}
