package educacao

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digiurbis/portal/internal/http/middleware"
	"github.com/digiurbis/portal/internal/http/respond"
)

const Module = "educacao"

type Handler struct {
	service *Service
	authz   middleware.Authorizer
}

func NewHandler(service *Service, authz middleware.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/educacao", func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.authz, Module))

		r.Get("/escolas", h.handleListEscolas)
		r.Post("/escolas", h.handleSaveEscola)
		r.Get("/escolas/{id}", h.handleGetEscola)
		r.Put("/escolas/{id}", h.handleSaveEscola)
		r.Delete("/escolas/{id}", h.handleDeleteEscola)
		r.Get("/escolas/{id}/turmas", h.handleListTurmas)

		r.Post("/turmas", h.handleCreateTurma)
		r.Delete("/turmas/{id}", h.handleDeleteTurma)

		r.Get("/alunos", h.handleListAlunos)
		r.Post("/alunos", h.handleSaveAluno)
		r.Get("/alunos/{id}", h.handleGetAluno)
		r.Put("/alunos/{id}", h.handleSaveAluno)

		r.Get("/matriculas", h.handleListMatriculas)
		r.Post("/matriculas", h.handleMatricular)
		r.Patch("/matriculas/{id}/status", h.handleMatriculaStatus)

		r.Get("/ocorrencias", h.handleListOcorrencias)
		r.Post("/ocorrencias", h.handleRegistrarOcorrencia)
		r.Patch("/ocorrencias/{id}/status", h.handleOcorrenciaStatus)
	})
}

// optionalID id da rota quando presente; POST sem {id} cria.
func optionalID(r *http.Request) (uuid.UUID, error) {
	if chi.URLParam(r, "id") == "" {
		return uuid.Nil, nil
	}
	return respond.UUIDParam(r, "id")
}

func optionalQueryID(r *http.Request, name string) uuid.UUID {
	id, _ := uuid.Parse(r.URL.Query().Get(name))
	return id
}

func (h *Handler) handleListEscolas(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListEscolas(r.Context(), r.URL.Query().Get("busca"))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetEscola(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.GetEscola(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleSaveEscola(w http.ResponseWriter, r *http.Request) {
	id, err := optionalID(r)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var in EscolaInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	saved, err := h.service.SaveEscola(r.Context(), id, in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	status := http.StatusOK
	if id == uuid.Nil {
		status = http.StatusCreated
	}
	respond.JSON(w, status, saved)
}

func (h *Handler) handleDeleteEscola(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := h.service.DeleteEscola(r.Context(), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListTurmas(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	items, err := h.service.ListTurmas(r.Context(), TurmaFilter{EscolaID: id, AnoLetivo: respond.QueryInt(r, "ano", 0)})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateTurma(w http.ResponseWriter, r *http.Request) {
	var in TurmaInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.CreateTurma(r.Context(), in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleDeleteTurma(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := h.service.DeleteTurma(r.Context(), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAlunos(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAlunos(r.Context(), r.URL.Query().Get("busca"), respond.QueryLimit(r), respond.QueryInt(r, "offset", 0))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetAluno(w http.ResponseWriter, r *http.Request) {
	id, err := respond.UUIDParam(r, "id")
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	item, err := h.service.GetAluno(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleSaveAluno(w http.ResponseWriter, r *http.Request) {
	id, err := optionalID(r)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	var in AlunoInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	saved, err := h.service.SaveAluno(r.Context(), id, in)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	status := http.StatusOK
	if id == uuid.Nil {
		status = http.StatusCreated
	}
	respond.JSON(w, status, saved)
}

func (h *Handler) handleListMatriculas(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListMatriculas(r.Context(), MatriculaFilter{
		Status:  MatriculaStatus(r.URL.Query().Get("status")),
		AlunoID: optionalQueryID(r, "alunoId"),
		TurmaID: optionalQueryID(r, "turmaId"),
		Limit:   respond.QueryLimit(r),
		Offset:  respond.QueryInt(r, "offset", 0),
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

type matriculaRequest struct {
	AlunoID uuid.UUID `json:"alunoId"`
	TurmaID uuid.UUID `json:"turmaId"`
}

func (h *Handler) handleMatricular(w http.ResponseWriter, r *http.Request) {
	var req matriculaRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.Matricular(r.Context(), req.AlunoID, req.TurmaID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

type statusRequest struct {
	Status     string `json:"status"`
	Comentario string `json:"comentario"`
}

func (h *Handler) handleMatriculaStatus(w http.ResponseWriter, r *http.Request) {
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
	updated, err := h.service.UpdateMatriculaStatus(r.Context(), id, MatriculaStatus(req.Status), req.Comentario, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleListOcorrencias(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListOcorrencias(r.Context(), OcorrenciaFilter{
		Status:    OcorrenciaStatus(q.Get("status")),
		EscolaID:  optionalQueryID(r, "escolaId"),
		Gravidade: q.Get("gravidade"),
		Limit:     respond.QueryLimit(r),
		Offset:    respond.QueryInt(r, "offset", 0),
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleRegistrarOcorrencia(w http.ResponseWriter, r *http.Request) {
	var in OcorrenciaInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Fail(w, r, err)
		return
	}
	created, err := h.service.RegistrarOcorrencia(r.Context(), in, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleOcorrenciaStatus(w http.ResponseWriter, r *http.Request) {
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
	updated, err := h.service.UpdateOcorrenciaStatus(r.Context(), id, OcorrenciaStatus(req.Status), req.Comentario, middleware.ActorID(r.Context()))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}
