package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	capausecase "eqms/internal/usecase/capa"
)

func (h *handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetWorkflow(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) getPhase(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	phase, err := h.svc.PhaseOf(r.Context(), workflowID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflowId": workflowID,
		"phase":      phase,
		"terminal":   phase.IsTerminal(),
	})
}

type assignApproverRequest struct {
	ApproverID string `json:"approverId"`
}

func (h *handler) assignApprover(w http.ResponseWriter, r *http.Request) {
	var req assignApproverRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.svc.AssignApprover(r.Context(), principalFrom(r), chi.URLParam(r, "workflowID"), req.ApproverID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type transitionRequest struct {
	TargetPhase  string           `json:"targetPhase"`
	EvidenceRefs []string         `json:"evidenceRefs"`
	Comments     string           `json:"comments"`
	Signature    signatureRequest `json:"signature"`
}

func (h *handler) requestTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.svc.RequestTransition(r.Context(), capausecase.TransitionRequest{
		WorkflowID:   chi.URLParam(r, "workflowID"),
		TargetPhase:  req.TargetPhase,
		Approver:     principalFrom(r),
		EvidenceRefs: req.EvidenceRefs,
		Comments:     req.Comments,
		Signature: domaincapa.Signature{
			UserID:   req.Signature.UserID,
			SignedAt: req.Signature.SignedAt,
			Meaning:  req.Signature.Meaning,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAuditEntries(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *handler) verifyAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.VerifyAuditChain(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type correctionRequest struct {
	Reason    string         `json:"reason"`
	Corrected map[string]any `json:"corrected"`
}

func (h *handler) correctAudit(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, r, errs.E(errs.KindValidation, "seq must be a positive integer"))
		return
	}
	var req correctionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.svc.AppendAuditCorrection(r.Context(), capausecase.AuditCorrectionInput{
		WorkflowID:  chi.URLParam(r, "workflowID"),
		CorrectsSeq: seq,
		Reason:      req.Reason,
		Corrected:   req.Corrected,
		Actor:       principalFrom(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
