package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/eventdesk/internal/blobstore"
	"github.com/bigkaa/eventdesk/internal/database/dbtest"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/qrcode"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// TestWorkflowIntegration — полный сценарий на PostgreSQL и локальном хранилище.
func TestWorkflowIntegration(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	logger := discardLogger()

	repos := repository.NewRepositories(pool)
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	codec, err := qrcode.NewCodec("integration-secret")
	require.NoError(t, err)
	sink := newRecordingSink()
	audit := NewAuditRecorder(logger)

	wf := NewWorkflowService(repos, blobs, nil, codec, sink, audit, WorkflowConfig{
		EventName:      "SOD 2025",
		MaxUploadBytes: 1 << 20,
	}, logger)
	regs := NewRegistrationService(repos, sink, audit, "SOD 2025", time.Second, logger)
	actors := NewActorService(repos, nil, nil, nil, audit, logger)

	registrar, err := actors.CreateAdmin(ctx, "registrar@x.com", "registrar-pass", string(rbac.RoleRegistrar))
	require.NoError(t, err)
	checker, err := actors.CreateAdmin(ctx, "checker@x.com", "checker-pass", string(rbac.RoleChecker))
	require.NoError(t, err)

	out, err := regs.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@x.com", Phone: "555-1"})
	require.NoError(t, err)
	id := out.Registration.ID

	_, err = regs.Register(ctx, RegisterInput{Name: "Ann 2", Email: "ANN@x.com", Phone: "555-2"})
	require.ErrorIs(t, err, ErrConflict)

	_, err = wf.UploadReceipt(ctx, id, "receipt.pdf", bytes.NewReader(pdfReceipt))
	require.NoError(t, err)

	_, err = wf.CheckIn(ctx, checker, id)
	require.ErrorIs(t, err, ErrPrecondition, "проход до подтверждения запрещён")

	approved, err := wf.Approve(ctx, registrar, id)
	require.NoError(t, err)
	require.True(t, approved.Registration.HasQR())

	// Параллельные проходы по одному QR: успешен ровно один.
	const workers = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wf.CheckIn(ctx, checker, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyCheckedIn):
				already++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, already)

	n, err := repos.CheckIns().CountByRegistration(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	detail, err := regs.Detail(ctx, id)
	require.NoError(t, err)
	assert.True(t, detail.Registration.CheckedIn)
	require.NotNil(t, detail.CheckIn)
	assert.Equal(t, checker.ID, detail.CheckIn.CheckedInBy)

	var actions []model.AuditAction
	for _, e := range detail.Audit {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []model.AuditAction{
		model.ActionCreate, model.ActionUpdate, model.ActionApprove, model.ActionCheckIn,
	}, actions)

	stats, err := regs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.CheckedIn)

	res, err := wf.Scan(ctx, checker, *approved.Registration.QRToken, true)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCheckedIn)

	_, err = wf.Delete(ctx, registrar, id)
	require.NoError(t, err)
	_, err = regs.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Аудит удалённой заявки сохраняется.
	entries, _, err := NewAuditService(repos).List(ctx, model.AuditFilter{ResourceID: registrationResource(id)})
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	res, err = wf.Scan(ctx, checker, *approved.Registration.QRToken, false)
	require.NoError(t, err)
	assert.Equal(t, qrcode.KindNotFound, res.Reason)
}
