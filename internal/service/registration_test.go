package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
)

func TestRegister_Normalizes(t *testing.T) {
	f := newFixture(t)

	out, err := f.regs.Register(context.Background(), RegisterInput{
		Name:  "  Ann Lee ",
		Email: " Ann@X.com ",
		Phone: " 555-1 ",
	})
	require.NoError(t, err)

	reg := out.Registration
	assert.NotZero(t, reg.ID)
	assert.Equal(t, "Ann Lee", reg.Name)
	assert.Equal(t, "ann@x.com", reg.Email)
	assert.Equal(t, "555-1", reg.Phone)
	assert.Equal(t, lifecycle.StatusPendingPayment, reg.Status)

	entries := f.repos.auditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionCreate, entries[0].Action)
	assert.Nil(t, entries[0].ActorID, "регистрация — публичное действие")

	assert.Equal(t, []string{"ann@x.com"}, f.sink.last().To)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.regs.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@x.com", Phone: "555-1"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"тот же email в другом регистре", RegisterInput{Name: "Bob", Email: "ANN@x.com", Phone: "555-2"}},
		{"тот же телефон", RegisterInput{Name: "Bob", Email: "bob@x.com", Phone: "555-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.regs.Register(ctx, tt.in)
			assert.ErrorIs(t, err, ErrConflict)
		})
	}
	assert.Len(t, f.repos.st.regs, 1)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"пустое имя", RegisterInput{Name: " ", Email: "a@x.com", Phone: "1"}},
		{"некорректный email", RegisterInput{Name: "A", Email: "not-an-email", Phone: "1"}},
		{"пустой телефон", RegisterInput{Name: "A", Email: "a@x.com", Phone: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.regs.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.repos.st.regs)
	assert.Empty(t, f.sink.sent)
}

func TestRegister_MailFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.sink.ok = false

	out, err := f.regs.Register(context.Background(), RegisterInput{Name: "Ann", Email: "ann@x.com", Phone: "555-1"})
	require.NoError(t, err)
	assert.True(t, out.Degraded)

	_, ok := f.repos.registration(out.Registration.ID)
	assert.True(t, ok, "заявка сохранена несмотря на ошибку почты")
}

func TestExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repos.addRegistration(model.Registration{Name: "Ann", Email: "ann@x.com", Phone: "555-1", Status: lifecycle.StatusPendingPayment})

	ok, err := f.regs.EmailExists(ctx, " ANN@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.regs.PhoneExists(ctx, "555-2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.regs.EmailExists(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.regs.PhoneExists(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withStatus(t, lifecycle.StatusPendingPayment)
	f.withStatus(t, lifecycle.StatusPendingVerification)
	f.withStatus(t, lifecycle.StatusPendingVerification)
	archived := f.withStatus(t, lifecycle.StatusPendingVerification)
	_, err := f.wf.SetArchived(ctx, staff(rbac.RoleAdmin), archived.ID, true)
	require.NoError(t, err)

	regs, total, err := f.regs.List(ctx, model.RegistrationFilter{Status: lifecycle.StatusPendingVerification, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "архивные заявки не входят в рабочий список")
	assert.Len(t, regs, 1)

	_, total, err = f.regs.List(ctx, model.RegistrationFilter{Archived: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = f.regs.List(ctx, model.RegistrationFilter{Status: "PAID"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.confirmed(t)
	d, err := f.regs.Detail(ctx, reg.ID)
	require.NoError(t, err)
	assert.Nil(t, d.CheckIn)
	require.Len(t, d.Audit, 1)

	_, err = f.wf.CheckIn(ctx, staff(rbac.RoleChecker), reg.ID)
	require.NoError(t, err)

	d, err = f.regs.Detail(ctx, reg.ID)
	require.NoError(t, err)
	require.NotNil(t, d.CheckIn)
	assert.Equal(t, reg.ID, d.CheckIn.RegistrationID)
	// Аудит включает и подтверждение, и проход (оба по ID заявки).
	require.Len(t, d.Audit, 2)
	assert.Equal(t, model.ActionCheckIn, d.Audit[0].Action)

	_, err = f.regs.Detail(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withStatus(t, lifecycle.StatusPendingPayment)
	reg := f.confirmed(t)
	_, err := f.wf.CheckIn(ctx, staff(rbac.RoleChecker), reg.ID)
	require.NoError(t, err)

	stats, err := f.regs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.PendingPayment)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.CheckedIn)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withStatus(t, lifecycle.StatusPendingPayment)
	f.confirmed(t)
	f.confirmed(t)
	sentBefore := len(f.sink.sent)

	res, err := f.regs.SendReminders(ctx, staff(rbac.RoleRegistrar), ReminderInput{
		Body:   "Ждём вас в 10:00",
		Status: lifecycle.StatusConfirmed,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipients)
	assert.Equal(t, 2, res.Sent)
	assert.Zero(t, res.Failed)
	assert.False(t, res.Degraded)

	assert.Len(t, f.sink.sent, sentBefore+2)
	assert.Equal(t, "SOD 2025 - Event Reminder", f.sink.last().Subject)

	last := f.repos.auditEntries()[len(f.repos.auditEntries())-1]
	assert.Equal(t, model.ResourceSystem, last.ResourceType)
}

func TestSendReminders_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withStatus(t, lifecycle.StatusPendingPayment)
	f.withStatus(t, lifecycle.StatusRejected)
	f.sink.ok = false

	res, err := f.regs.SendReminders(ctx, staff(rbac.RoleManager), ReminderInput{Subject: "Важно", Body: "текст"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipients)
	assert.Equal(t, 2, res.Failed)
	assert.True(t, res.Degraded)

	_, err = f.regs.SendReminders(ctx, staff(rbac.RoleChecker), ReminderInput{Body: "текст"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.regs.SendReminders(ctx, staff(rbac.RoleManager), ReminderInput{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.regs.SendReminders(ctx, staff(rbac.RoleManager), ReminderInput{Body: "x", Status: "PAID"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuditService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.withStatus(t, lifecycle.StatusPendingPayment)
	_, err := f.wf.UploadReceipt(ctx, reg.ID, "r.pdf", bytes.NewReader(pdfReceipt))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, staff(rbac.RoleRegistrar), reg.ID, "размыто")
	require.NoError(t, err)

	svc := NewAuditService(f.repos)
	entries, total, err := svc.List(ctx, model.AuditFilter{Action: model.ActionReject})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionReject, entries[0].Action)

	_, _, err = svc.List(ctx, model.AuditFilter{Action: "HACK"})
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = svc.List(ctx, model.AuditFilter{ResourceType: "FILE"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuditRecorder_FillsIP(t *testing.T) {
	repos := newMemRepos()
	rec := NewAuditRecorder(discardLogger())
	ctx := WithClientIP(context.Background(), "192.0.2.1")

	require.NoError(t, rec.Record(ctx, repos, auditEntry(nil, model.ActionExport, model.ResourceSystem, "", "выгрузка")))
	require.NoError(t, rec.Record(ctx, repos, &model.AuditEntry{
		Action: model.ActionExport, ResourceType: model.ResourceSystem, IPAddress: "203.0.113.9",
	}))

	entries := repos.auditEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "192.0.2.1", entries[0].IPAddress)
	assert.Equal(t, "203.0.113.9", entries[1].IPAddress)

	repos.setAuditErr(errors.New("нет связи"))
	assert.Error(t, rec.Record(ctx, repos, auditEntry(nil, model.ActionExport, model.ResourceSystem, "", "")))
}
