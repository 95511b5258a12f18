package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	domaincapa "eqms/internal/domain/capa"
	capausecase "eqms/internal/usecase/capa"
)

// CapaService is the operation surface served over HTTP.
type CapaService interface {
	CreateCapa(ctx context.Context, actor domaincapa.Principal, draft domaincapa.CapaDraft) (capausecase.CapaView, error)
	GetCapa(ctx context.Context, capaID string) (capausecase.CapaView, error)
	ListCapas(ctx context.Context, input capausecase.ListCapasInput) ([]capausecase.CapaView, error)
	UpdateCapa(ctx context.Context, actor domaincapa.Principal, capaID string, patch domaincapa.CapaPatch) (capausecase.CapaView, error)
	DeleteCapa(ctx context.Context, actor domaincapa.Principal, capaID string) error

	CreateAction(ctx context.Context, actor domaincapa.Principal, capaID string, draft domaincapa.ActionDraft) (capausecase.ActionView, error)
	ListActions(ctx context.Context, capaID string, phase string) ([]capausecase.ActionView, error)
	VerifyAction(ctx context.Context, input capausecase.VerifyActionInput) (capausecase.ActionVerification, error)

	AttachEvidence(ctx context.Context, actor domaincapa.Principal, actionID string, draft domaincapa.EvidenceDraft) (capausecase.EvidenceView, error)
	ListEvidence(ctx context.Context, actionID string) ([]capausecase.EvidenceView, error)
	VerifyEvidence(ctx context.Context, input capausecase.VerifyEvidenceInput) (capausecase.EvidenceView, error)

	GetWorkflow(ctx context.Context, workflowID string) (capausecase.WorkflowView, error)
	PhaseOf(ctx context.Context, workflowID string) (domaincapa.Phase, error)
	AssignApprover(ctx context.Context, actor domaincapa.Principal, workflowID string, approverID string) (capausecase.WorkflowView, error)
	RequestTransition(ctx context.Context, req capausecase.TransitionRequest) (capausecase.WorkflowView, error)

	ListAuditEntries(ctx context.Context, workflowID string) ([]capausecase.AuditEntryView, error)
	AppendAuditCorrection(ctx context.Context, input capausecase.AuditCorrectionInput) (capausecase.AuditEntryView, error)
	VerifyAuditChain(ctx context.Context, workflowID string) (capausecase.AuditChainReport, error)
}

type Options struct {
	AllowedOrigins []string
}

// NewRouter mounts the CAPA API under /api/v1 and a health probe at /healthz.
func NewRouter(svc CapaService, opts Options) chi.Router {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", headerUser, headerRoles},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(identityMiddleware)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/capas", func(r chi.Router) {
			r.Post("/", h.createCapa)
			r.Get("/", h.listCapas)
			r.Route("/{capaID}", func(r chi.Router) {
				r.Get("/", h.getCapa)
				r.Patch("/", h.updateCapa)
				r.Delete("/", h.deleteCapa)
				r.Post("/actions", h.createAction)
				r.Get("/actions", h.listActions)
			})
		})

		r.Route("/workflows/{workflowID}", func(r chi.Router) {
			r.Get("/", h.getWorkflow)
			r.Get("/phase", h.getPhase)
			r.Put("/approver", h.assignApprover)
			r.Post("/transitions", h.requestTransition)
			r.Get("/audit", h.listAudit)
			r.Get("/audit/verify", h.verifyAudit)
			r.Post("/audit/{seq}/corrections", h.correctAudit)
		})

		r.Route("/actions/{actionID}", func(r chi.Router) {
			r.Post("/evidence", h.attachEvidence)
			r.Get("/evidence", h.listEvidence)
			r.Post("/verification", h.verifyAction)
		})

		r.Post("/evidence/{evidenceID}/review", h.reviewEvidence)
	})

	return r
}

type handler struct {
	svc CapaService
}
