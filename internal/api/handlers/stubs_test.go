package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/auth"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/service"
)

var errNotStubbed = errors.New("не настроено в тесте")

// stubRegs — заглушка RegistrationService: каждая операция задаётся функцией.
type stubRegs struct {
	register  func(service.RegisterInput) (*service.Outcome, error)
	get       func(int64) (*model.Registration, error)
	exists    func(string) (bool, error)
	list      func(model.RegistrationFilter) ([]*model.Registration, int, error)
	detail    func(int64) (*service.RegistrationDetail, error)
	stats     func() (*model.RegistrationStats, error)
	reminders func(*model.Actor, service.ReminderInput) (*service.ReminderResult, error)
}

func (s *stubRegs) Register(_ context.Context, in service.RegisterInput) (*service.Outcome, error) {
	if s.register == nil {
		return nil, errNotStubbed
	}
	return s.register(in)
}

func (s *stubRegs) Get(_ context.Context, id int64) (*model.Registration, error) {
	if s.get == nil {
		return nil, errNotStubbed
	}
	return s.get(id)
}

func (s *stubRegs) EmailExists(_ context.Context, email string) (bool, error) {
	if s.exists == nil {
		return false, errNotStubbed
	}
	return s.exists(email)
}

func (s *stubRegs) PhoneExists(_ context.Context, phone string) (bool, error) {
	if s.exists == nil {
		return false, errNotStubbed
	}
	return s.exists(phone)
}

func (s *stubRegs) List(_ context.Context, f model.RegistrationFilter) ([]*model.Registration, int, error) {
	if s.list == nil {
		return nil, 0, errNotStubbed
	}
	return s.list(f)
}

func (s *stubRegs) Detail(_ context.Context, id int64) (*service.RegistrationDetail, error) {
	if s.detail == nil {
		return nil, errNotStubbed
	}
	return s.detail(id)
}

func (s *stubRegs) Stats(context.Context) (*model.RegistrationStats, error) {
	if s.stats == nil {
		return nil, errNotStubbed
	}
	return s.stats()
}

func (s *stubRegs) SendReminders(_ context.Context, actor *model.Actor, in service.ReminderInput) (*service.ReminderResult, error) {
	if s.reminders == nil {
		return nil, errNotStubbed
	}
	return s.reminders(actor, in)
}

// stubWorkflow — заглушка WorkflowService. Операции над одной заявкой
// сводятся к single(op, id), пакетные — к bulk.
type stubWorkflow struct {
	upload   func(id int64, filename string, data []byte) (*service.Outcome, error)
	single   func(op string, actor *model.Actor, id int64) (*service.Outcome, error)
	scan     func(token string, checkIn bool) (*service.ScanResult, error)
	bulk     func(op string, ids []int64, reason string) ([]service.BulkItem, error)
	openFile func(id int64, kind string) (io.ReadCloser, string, error)
	reason   string
}

func (s *stubWorkflow) UploadReceipt(_ context.Context, id int64, filename string, r io.Reader) (*service.Outcome, error) {
	if s.upload == nil {
		return nil, errNotStubbed
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return s.upload(id, filename, data)
}

func (s *stubWorkflow) call(op string, actor *model.Actor, id int64) (*service.Outcome, error) {
	if s.single == nil {
		return nil, errNotStubbed
	}
	return s.single(op, actor, id)
}

func (s *stubWorkflow) Approve(_ context.Context, actor *model.Actor, id int64) (*service.Outcome, error) {
	return s.call("approve", actor, id)
}

func (s *stubWorkflow) Reject(_ context.Context, actor *model.Actor, id int64, reason string) (*service.Outcome, error) {
	s.reason = reason
	return s.call("reject", actor, id)
}

func (s *stubWorkflow) CheckIn(_ context.Context, actor *model.Actor, id int64) (*service.Outcome, error) {
	return s.call("check_in", actor, id)
}

func (s *stubWorkflow) SetArchived(_ context.Context, actor *model.Actor, id int64, archived bool) (*service.Outcome, error) {
	if archived {
		return s.call("archive", actor, id)
	}
	return s.call("unarchive", actor, id)
}

func (s *stubWorkflow) Delete(_ context.Context, actor *model.Actor, id int64) (*service.Outcome, error) {
	return s.call("delete", actor, id)
}

func (s *stubWorkflow) Scan(_ context.Context, _ *model.Actor, token string, checkIn bool) (*service.ScanResult, error) {
	if s.scan == nil {
		return nil, errNotStubbed
	}
	return s.scan(token, checkIn)
}

func (s *stubWorkflow) BulkApprove(_ context.Context, _ *model.Actor, ids []int64) ([]service.BulkItem, error) {
	if s.bulk == nil {
		return nil, errNotStubbed
	}
	return s.bulk("approve", ids, "")
}

func (s *stubWorkflow) BulkReject(_ context.Context, _ *model.Actor, ids []int64, reason string) ([]service.BulkItem, error) {
	if s.bulk == nil {
		return nil, errNotStubbed
	}
	return s.bulk("reject", ids, reason)
}

func (s *stubWorkflow) OpenFile(_ context.Context, id int64, kind string) (io.ReadCloser, string, error) {
	if s.openFile == nil {
		return nil, "", errNotStubbed
	}
	return s.openFile(id, kind)
}

// stubActors — заглушка ActorService.
type stubActors struct {
	login   func(email, password string) (*service.LoginResult, error)
	logout  func(*model.Actor, *auth.Claims) error
	list    func(limit, offset int) ([]*model.Actor, int, error)
	get     func(id string) (*model.Actor, error)
	create  func(*model.Actor, service.CreateActorInput) (*model.Actor, error)
	update  func(*model.Actor, string, service.UpdateActorInput) (*model.Actor, error)
	deleted []string
}

func (s *stubActors) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	if s.login == nil {
		return nil, errNotStubbed
	}
	return s.login(email, password)
}

func (s *stubActors) Logout(_ context.Context, actor *model.Actor, claims *auth.Claims) error {
	if s.logout == nil {
		return errNotStubbed
	}
	return s.logout(actor, claims)
}

func (s *stubActors) List(_ context.Context, limit, offset int) ([]*model.Actor, int, error) {
	if s.list == nil {
		return nil, 0, errNotStubbed
	}
	return s.list(limit, offset)
}

func (s *stubActors) Get(_ context.Context, id string) (*model.Actor, error) {
	if s.get == nil {
		return nil, errNotStubbed
	}
	return s.get(id)
}

func (s *stubActors) Create(_ context.Context, actor *model.Actor, in service.CreateActorInput) (*model.Actor, error) {
	if s.create == nil {
		return nil, errNotStubbed
	}
	return s.create(actor, in)
}

func (s *stubActors) Update(_ context.Context, actor *model.Actor, id string, in service.UpdateActorInput) (*model.Actor, error) {
	if s.update == nil {
		return nil, errNotStubbed
	}
	return s.update(actor, id, in)
}

func (s *stubActors) Delete(_ context.Context, actor *model.Actor, id string) error {
	if id == actor.ID {
		return service.ErrPrecondition
	}
	s.deleted = append(s.deleted, id)
	return nil
}

// stubAudit запоминает последний фильтр.
type stubAudit struct {
	filter  model.AuditFilter
	entries []*model.AuditEntry
}

func (s *stubAudit) List(_ context.Context, f model.AuditFilter) ([]*model.AuditEntry, int, error) {
	s.filter = f
	return s.entries, len(s.entries), nil
}

type stubKeys struct{}

func (stubKeys) JWKS(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"keys":[{"kty":"RSA","kid":"test"}]}`), nil
}

// testDeps — набор заглушек одного теста.
type testDeps struct {
	regs     *stubRegs
	workflow *stubWorkflow
	actors   *stubActors
	audit    *stubAudit
	sessions *auth.SessionManager
}

func newTestHandler(t *testing.T) (*APIHandler, *testDeps) {
	t.Helper()
	sessions, err := auth.NewSessionManager("handler-test-secret", false)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	d := &testDeps{
		regs:     &stubRegs{},
		workflow: &stubWorkflow{},
		actors:   &stubActors{},
		audit:    &stubAudit{},
		sessions: sessions,
	}
	h := NewAPIHandler(
		NewHealthHandler(nil, nil),
		d.regs, d.workflow, d.actors, d.audit, stubKeys{},
		sessions, 1024,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return h, d
}

// withID добавляет {id} в контекст маршрута chi.
func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// asStaff кладёт сотрудника в контекст, как это делает StaffAuth.
func asStaff(req *http.Request, actor *model.Actor) *http.Request {
	claims := &auth.Claims{Email: actor.Email}
	claims.Subject = actor.ID
	claims.ID = "jti-" + actor.ID
	ctx := middleware.WithPrincipal(req.Context(), &middleware.Principal{Actor: actor, Claims: claims, Token: "token"})
	return req.WithContext(ctx)
}

func adminActor() *model.Actor {
	return &model.Actor{ID: "admin-1", Email: "admin@x.com", Role: rbac.RoleAdmin, IsActive: true}
}

// decodeBody разбирает JSON-ответ в v.
func decodeBody(t *testing.T, body io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
}

// errorCode достаёт error.code из тела ответа.
func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, body, &resp)
	return resp.Error.Code
}
