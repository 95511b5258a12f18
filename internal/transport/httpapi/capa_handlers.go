package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domaincapa "eqms/internal/domain/capa"
	"eqms/internal/errs"
	capausecase "eqms/internal/usecase/capa"
)

type createCapaRequest struct {
	Title                    string `json:"title"`
	Description              string `json:"description"`
	Source                   string `json:"source"`
	RiskPriority             string `json:"riskPriority"`
	PatientSafetyImpact      bool   `json:"patientSafetyImpact"`
	ProductPerformanceImpact bool   `json:"productPerformanceImpact"`
	ComplianceImpact         bool   `json:"complianceImpact"`
	Assignee                 string `json:"assignee"`
	AssignedApprover         string `json:"assignedApprover"`
	DueDate                  string `json:"dueDate"`
}

func (h *handler) createCapa(w http.ResponseWriter, r *http.Request) {
	var req createCapaRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	due, err := parseDate("dueDate", req.DueDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.svc.CreateCapa(r.Context(), principalFrom(r), domaincapa.CapaDraft{
		Title:                    req.Title,
		Description:              req.Description,
		Source:                   domaincapa.Source(req.Source),
		RiskPriority:             domaincapa.RiskPriority(req.RiskPriority),
		PatientSafetyImpact:      req.PatientSafetyImpact,
		ProductPerformanceImpact: req.ProductPerformanceImpact,
		ComplianceImpact:         req.ComplianceImpact,
		Assignee:                 req.Assignee,
		AssignedApprover:         req.AssignedApprover,
		DueDate:                  due,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) listCapas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := capausecase.ListCapasInput{
		Source:       q.Get("source"),
		RiskPriority: q.Get("riskPriority"),
		Assignee:     q.Get("assignee"),
	}
	for _, raw := range q["phase"] {
		input.Phases = append(input.Phases, strings.Split(raw, ",")...)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, errs.E(errs.KindValidation, "limit must be an integer"))
			return
		}
		input.Limit = limit
	}

	items, err := h.svc.ListCapas(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *handler) getCapa(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetCapa(r.Context(), chi.URLParam(r, "capaID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateCapaRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	RiskPriority *string `json:"riskPriority"`
	Assignee     *string `json:"assignee"`
	DueDate      *string `json:"dueDate"`
}

func (h *handler) updateCapa(w http.ResponseWriter, r *http.Request) {
	var req updateCapaRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := domaincapa.CapaPatch{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
	}
	if req.RiskPriority != nil {
		risk := domaincapa.RiskPriority(strings.ToLower(strings.TrimSpace(*req.RiskPriority)))
		patch.RiskPriority = &risk
	}
	if req.DueDate != nil {
		due, err := parseDate("dueDate", *req.DueDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.DueDate = &due
	}

	view, err := h.svc.UpdateCapa(r.Context(), principalFrom(r), chi.URLParam(r, "capaID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) deleteCapa(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCapa(r.Context(), principalFrom(r), chi.URLParam(r, "capaID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createActionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	DueDate     string `json:"dueDate"`
}

func (h *handler) createAction(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	draft := domaincapa.ActionDraft{Title: req.Title, Description: req.Description, Owner: req.Owner}
	if strings.TrimSpace(req.DueDate) != "" {
		due, err := parseDate("dueDate", req.DueDate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		draft.DueDate = &due
	}

	view, err := h.svc.CreateAction(r.Context(), principalFrom(r), chi.URLParam(r, "capaID"), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) listActions(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListActions(r.Context(), chi.URLParam(r, "capaID"), r.URL.Query().Get("phase"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

type outcomeRequest struct {
	Outcome  string `json:"outcome"`
	Comments string `json:"comments"`
}

func (h *handler) verifyAction(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.svc.VerifyAction(r.Context(), capausecase.VerifyActionInput{
		ActionID: chi.URLParam(r, "actionID"),
		Verifier: principalFrom(r),
		Outcome:  req.Outcome,
		Comments: req.Comments,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type evidenceRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	FileRef     string `json:"fileRef"`
}

func (h *handler) attachEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.svc.AttachEvidence(r.Context(), principalFrom(r), chi.URLParam(r, "actionID"), domaincapa.EvidenceDraft{
		Title:       req.Title,
		Description: req.Description,
		Type:        domaincapa.EvidenceType(req.Type),
		URL:         req.URL,
		FileRef:     req.FileRef,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) listEvidence(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListEvidence(r.Context(), chi.URLParam(r, "actionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *handler) reviewEvidence(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.svc.VerifyEvidence(r.Context(), capausecase.VerifyEvidenceInput{
		EvidenceID: chi.URLParam(r, "evidenceID"),
		Reviewer:   principalFrom(r),
		Outcome:    req.Outcome,
		Comments:   req.Comments,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// signatureRequest is the electronic signature captured by the client at the
// moment the approver confirmed.
type signatureRequest struct {
	UserID   string    `json:"userId"`
	SignedAt time.Time `json:"signedAt"`
	Meaning  string    `json:"meaning"`
}
