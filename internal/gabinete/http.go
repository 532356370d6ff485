package gabinete

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
	"github.com/digiurbis/portal/internal/identity"
)

const Module = "gabinete"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/gabinete", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))
		r.Get("/dashboard", h.handleDashboard)

		r.Get("/solicitacoes", h.handleList)
		r.Post("/solicitacoes", h.handleCreate)
		r.Get("/solicitacoes/{id}", h.handleGet)
		r.Patch("/solicitacoes/{id}/status", h.handleStatus)
		r.Get("/solicitacoes/{id}/historico", h.handleHistory)

		r.Get("/agenda", h.handleAgenda)
		r.Post("/agenda", h.handleAgendar)
		r.Patch("/agenda/{id}/status", h.handleAgendaStatus)
	})

	r.Route("/cidadao/gabinete", func(r chi.Router) {
		r.Use(middleware.RequireKind(identity.KindCitizen))
		r.Get("/", h.handleListMine)
		r.Post("/", h.handleCreate)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dash)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{
		Status: Status(q.Get("status")),
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

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSolicitacoes(r.Context(), Filter{CidadaoID: middleware.GetSubject(r.Context())})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

// handleCreate cidadão autenticado fica vinculado; no balcão o pedido é anônimo.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in SolicitacaoInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	cidadao := middleware.ActorID(r.Context())
	if middleware.GetKind(r.Context()) != identity.KindCitizen {
		cidadao = nil
	}
	created, err := h.service.CreateSolicitacao(r.Context(), cidadao, in)
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
		"acoes":       Machine.Actions(item.Status),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var req StatusUpdate
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	updated, err := h.service.UpdateStatus(r.Context(), id, req, middleware.ActorID(r.Context()))
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

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Invalid("data inválida: %s", raw)
	}
	return d, nil
}

func (h *Handler) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	de, err := parseDay(q.Get("de"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	ate, err := parseDay(q.Get("ate"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if !ate.IsZero() {
		ate = ate.AddDate(0, 0, 1)
	}
	items, err := h.service.ListAgenda(r.Context(), AgendaFilter{Status: AgendamentoStatus(q.Get("status")), De: de, Ate: ate})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleAgendar(w http.ResponseWriter, r *http.Request) {
	var in AgendamentoInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.SolicitarAgendamento(r.Context(), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

type agendaStatusRequest struct {
	Status     AgendamentoStatus `json:"status"`
	Comentario string            `json:"comentario"`
}

func (h *Handler) handleAgendaStatus(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var req agendaStatusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	updated, err := h.service.UpdateAgendamentoStatus(r.Context(), id, req.Status, req.Comentario, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}
