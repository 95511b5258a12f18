package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"eqms/internal/errs"
	"eqms/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "eqms/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "eqms/internal/infrastructure/persistence/sqlite/uow"
	capausecase "eqms/internal/usecase/capa"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "eqms.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	svc := capausecase.NewService(
		sqliterepo.NewCapaRepository(db),
		sqliteuow.NewUnitOfWork(db),
		nil,
		nil,
		nil,
		capausecase.Settings{IDPrefix: "CAPA"},
	)
	return NewRouter(svc, Options{AllowedOrigins: []string{"http://localhost:5173"}})
}

type caller struct {
	user  string
	roles string
}

var (
	contributor = caller{user: "alice", roles: "contributor"}
	capaOwner   = caller{user: "olga", roles: "capa_owner"}
	engineer    = caller{user: "erin", roles: "quality_engineer"}
)

func do(t *testing.T, h http.Handler, who caller, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.user != "" {
		req.Header.Set(headerUser, who.user)
		req.Header.Set(headerRoles, who.roles)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func TestScenarioOverHTTP(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, contributor, http.MethodPost, "/api/v1/capas", map[string]any{
		"title":        "Pressure sensor drift",
		"description":  "Complaint batch shows pressure sensor drift on line 4",
		"source":       "complaint",
		"riskPriority": "high",
		"dueDate":      "2030-06-01",
	})
	expectStatus(t, rec, http.StatusCreated)
	capa := decode[capausecase.CapaView](t, rec)
	if capa.Phase != "correction" {
		t.Fatalf("phase = %s", capa.Phase)
	}

	rec = do(t, h, contributor, http.MethodPost, "/api/v1/capas/"+capa.CapaID+"/actions", map[string]any{
		"title": "Replace sensor",
		"owner": "olga",
	})
	expectStatus(t, rec, http.StatusCreated)
	action := decode[capausecase.ActionView](t, rec)

	rec = do(t, h, contributor, http.MethodPost, "/api/v1/actions/"+action.ActionID+"/evidence", map[string]any{
		"title":       "Fix applied",
		"description": "Replaced faulty sensor",
		"type":        "document",
		"fileRef":     "dms://QA-114",
	})
	expectStatus(t, rec, http.StatusCreated)
	ev := decode[capausecase.EvidenceView](t, rec)

	transition := map[string]any{
		"targetPhase":  "RootCauseAnalysis",
		"evidenceRefs": []string{ev.EvidenceID},
		"signature": map[string]any{
			"userId":   "olga",
			"signedAt": time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
			"meaning":  "correction complete",
		},
	}
	rec = do(t, h, capaOwner, http.MethodPost, "/api/v1/workflows/"+capa.WorkflowID+"/transitions", transition)
	expectStatus(t, rec, http.StatusPreconditionFailed)
	if body := decode[errorBody](t, rec); body.Kind != errs.KindPrecondition {
		t.Fatalf("error body = %+v", body)
	}

	rec = do(t, h, contributor, http.MethodPost, "/api/v1/evidence/"+ev.EvidenceID+"/review", map[string]any{"outcome": "approved"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = do(t, h, engineer, http.MethodPost, "/api/v1/evidence/"+ev.EvidenceID+"/review", map[string]any{"outcome": "approved"})
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, h, engineer, http.MethodPost, "/api/v1/evidence/"+ev.EvidenceID+"/review", map[string]any{"outcome": "approved"})
	expectStatus(t, rec, http.StatusConflict)
	if body := decode[errorBody](t, rec); body.Kind != errs.KindAlreadyReviewed {
		t.Fatalf("error body = %+v", body)
	}

	rec = do(t, h, capaOwner, http.MethodPost, "/api/v1/workflows/"+capa.WorkflowID+"/transitions", transition)
	expectStatus(t, rec, http.StatusOK)
	wf := decode[capausecase.WorkflowView](t, rec)
	if wf.Phase != "root_cause_analysis" || len(wf.Transitions) != 1 {
		t.Fatalf("workflow = %+v", wf)
	}

	rec = do(t, h, caller{}, http.MethodGet, "/api/v1/workflows/"+capa.WorkflowID+"/phase", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]any](t, rec); got["phase"] != "root_cause_analysis" {
		t.Fatalf("phase body = %v", got)
	}

	rec = do(t, h, caller{}, http.MethodGet, "/api/v1/workflows/"+capa.WorkflowID+"/audit/verify", nil)
	expectStatus(t, rec, http.StatusOK)
	if report := decode[capausecase.AuditChainReport](t, rec); !report.Valid {
		t.Fatalf("chain report = %+v", report)
	}

	rec = do(t, h, caller{}, http.MethodGet, "/api/v1/capas?phase=root_cause_analysis", nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[listBody[capausecase.CapaView]](t, rec); len(list.Items) != 1 {
		t.Fatalf("list = %+v", list)
	}
}

func TestErrorMapping(t *testing.T) {
	h := setupRouter(t)

	tests := []struct {
		name   string
		who    caller
		method string
		path   string
		body   any
		status int
	}{
		{"unknown capa", contributor, http.MethodGet, "/api/v1/capas/CAPA-2025-404", nil, http.StatusNotFound},
		{"unknown workflow", capaOwner, http.MethodPost, "/api/v1/workflows/nope/transitions", map[string]any{"targetPhase": "closed"}, http.StatusNotFound},
		{"bad phase", capaOwner, http.MethodPost, "/api/v1/workflows/nope/transitions", map[string]any{"targetPhase": "draft"}, http.StatusBadRequest},
		{"unknown field", contributor, http.MethodPost, "/api/v1/capas", map[string]any{"bogus": true}, http.StatusBadRequest},
		{"bad due date", contributor, http.MethodPost, "/api/v1/capas", map[string]any{"dueDate": "June"}, http.StatusBadRequest},
		{"anonymous create", caller{}, http.MethodPost, "/api/v1/capas", map[string]any{
			"title": "Sensor drift", "description": "Pressure sensor drift on line 4",
			"source": "audit", "riskPriority": "low", "dueDate": "2030-01-01",
		}, http.StatusForbidden},
		{"bad seq", contributor, http.MethodPost, "/api/v1/workflows/x/audit/zero/corrections", map[string]any{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.who, tt.method, tt.path, tt.body)
			expectStatus(t, rec, tt.status)
			if body := decode[errorBody](t, rec); body.Kind == "" || body.Message == "" {
				t.Fatalf("error body = %s", rec.Body.String())
			}
		})
	}
}

func TestStatusForCoversEveryKind(t *testing.T) {
	want := map[errs.Kind]int{
		errs.KindNotFound:          http.StatusNotFound,
		errs.KindInvalidState:      http.StatusConflict,
		errs.KindIllegalTransition: http.StatusUnprocessableEntity,
		errs.KindAuthorization:     http.StatusForbidden,
		errs.KindPrecondition:      http.StatusPreconditionFailed,
		errs.KindValidation:        http.StatusBadRequest,
		errs.KindAlreadyReviewed:   http.StatusConflict,
		errs.KindConflict:          http.StatusConflict,
		errs.KindInternal:          http.StatusInternalServerError,
	}
	for kind, status := range want {
		if got := statusFor(kind); got != status {
			t.Fatalf("statusFor(%s) = %d, want %d", kind, got, status)
		}
	}
}

func TestHealthzAndCORS(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, caller{}, http.MethodGet, "/healthz", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/capas", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	if got := pre.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}
