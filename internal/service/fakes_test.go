package service

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/eventdesk/internal/blobstore"
	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/notify"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// --- In-memory реализация repository.Repositories ---

// memState — данные всех таблиц. RunInTx делает снимок и
// восстанавливает его при ошибке, как откат транзакции или SAVEPOINT.
type memState struct {
	regs       map[int64]model.Registration
	nextRegID  int64
	checkIns   map[int64]model.CheckIn
	nextCIID   int64
	audit      []model.AuditEntry
	actors     map[string]model.Actor
	auditErr   error
	checkInErr error
}

type snapshot struct {
	regs      map[int64]model.Registration
	nextRegID int64
	checkIns  map[int64]model.CheckIn
	nextCIID  int64
	audit     []model.AuditEntry
	actors    map[string]model.Actor
}

type memRepos struct {
	mu *sync.Mutex
	st *memState
}

func newMemRepos() *memRepos {
	return &memRepos{
		mu: &sync.Mutex{},
		st: &memState{
			regs:     make(map[int64]model.Registration),
			checkIns: make(map[int64]model.CheckIn),
			actors:   make(map[string]model.Actor),
		},
	}
}

func (m *memRepos) Registrations() repository.RegistrationRepository { return (*memRegs)(m) }
func (m *memRepos) CheckIns() repository.CheckInRepository           { return (*memCheckIns)(m) }
func (m *memRepos) Audit() repository.AuditRepository                { return (*memAudit)(m) }
func (m *memRepos) Actors() repository.ActorRepository               { return (*memActors)(m) }

func (m *memRepos) RunInTx(_ context.Context, fn func(repository.Repositories) error) error {
	m.mu.Lock()
	snap := snapshot{
		regs:      maps.Clone(m.st.regs),
		nextRegID: m.st.nextRegID,
		checkIns:  maps.Clone(m.st.checkIns),
		nextCIID:  m.st.nextCIID,
		audit:     append([]model.AuditEntry(nil), m.st.audit...),
		actors:    maps.Clone(m.st.actors),
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.st.regs, m.st.nextRegID = snap.regs, snap.nextRegID
		m.st.checkIns, m.st.nextCIID = snap.checkIns, snap.nextCIID
		m.st.audit, m.st.actors = snap.audit, snap.actors
		m.mu.Unlock()
		return err
	}
	return nil
}

// addRegistration добавляет заявку напрямую (подготовка теста).
func (m *memRepos) addRegistration(r model.Registration) *model.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.nextRegID++
	r.ID = m.st.nextRegID
	m.st.regs[r.ID] = r
	return &r
}

func (m *memRepos) registration(id int64) (model.Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.st.regs[id]
	return r, ok
}

func (m *memRepos) checkInCount(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.checkIns[id]; ok {
		return 1
	}
	return 0
}

func (m *memRepos) auditEntries() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.st.audit...)
}

func (m *memRepos) auditActions() []model.AuditAction {
	var result []model.AuditAction
	for _, e := range m.auditEntries() {
		result = append(result, e.Action)
	}
	return result
}

func (m *memRepos) setAuditErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.auditErr = err
}

func (m *memRepos) setCheckInErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.checkInErr = err
}

// --- Заявки ---

type memRegs memRepos

func (r *memRegs) Create(_ context.Context, reg *model.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.st.regs {
		if existing.Email == reg.Email {
			return &repository.ConflictError{Field: repository.ConflictEmail}
		}
		if existing.Phone == reg.Phone {
			return &repository.ConflictError{Field: repository.ConflictPhone}
		}
	}
	r.st.nextRegID++
	reg.ID = r.st.nextRegID
	reg.CreatedAt = time.Now()
	reg.UpdatedAt = reg.CreatedAt
	r.st.regs[reg.ID] = *reg
	return nil
}

func (r *memRegs) GetByID(_ context.Context, id int64) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.st.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &reg, nil
}

func (r *memRegs) GetByIDForUpdate(ctx context.Context, id int64) (*model.Registration, error) {
	return r.GetByID(ctx, id)
}

func (r *memRegs) GetByEmail(_ context.Context, email string) (*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.st.regs {
		if reg.Email == email {
			return &reg, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRegs) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *memRegs) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.st.regs {
		if reg.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegs) Update(_ context.Context, reg *model.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.st.regs[reg.ID]; !ok {
		return repository.ErrNotFound
	}
	reg.UpdatedAt = time.Now()
	r.st.regs[reg.ID] = *reg
	return nil
}

func (r *memRegs) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.st.regs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.st.regs, id)
	delete(r.st.checkIns, id)
	return nil
}

func (r *memRegs) filtered(f model.RegistrationFilter) []*model.Registration {
	var result []*model.Registration
	q := strings.ToLower(f.Search)
	for _, reg := range r.st.regs {
		if reg.IsArchived != f.Archived {
			continue
		}
		if f.Status != "" && reg.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(reg.Name+" "+reg.Email+" "+reg.Phone), q) {
			continue
		}
		reg := reg
		result = append(result, &reg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}

func (r *memRegs) List(_ context.Context, f model.RegistrationFilter) ([]*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filtered(f)
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *memRegs) Count(_ context.Context, f model.RegistrationFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filtered(f)), nil
}

func (r *memRegs) ListRecipients(_ context.Context, status lifecycle.Status) ([]*model.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filtered(model.RegistrationFilter{Status: status}), nil
}

func (r *memRegs) Stats(_ context.Context) (*model.RegistrationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &model.RegistrationStats{}
	for _, reg := range r.st.regs {
		s.Total++
		switch reg.Status {
		case lifecycle.StatusPendingPayment:
			s.PendingPayment++
		case lifecycle.StatusPendingVerification:
			s.PendingVerification++
		case lifecycle.StatusConfirmed:
			s.Confirmed++
		case lifecycle.StatusRejected:
			s.Rejected++
		}
		if reg.CheckedIn {
			s.CheckedIn++
		}
		if reg.IsArchived {
			s.Archived++
		}
	}
	return s, nil
}

// --- Журнал проходов ---

type memCheckIns memRepos

func (c *memCheckIns) Create(_ context.Context, ci *model.CheckIn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.checkInErr != nil {
		return c.st.checkInErr
	}
	if _, ok := c.st.checkIns[ci.RegistrationID]; ok {
		return repository.ErrConflict
	}
	c.st.nextCIID++
	ci.ID = c.st.nextCIID
	ci.CheckedInAt = time.Now()
	c.st.checkIns[ci.RegistrationID] = *ci
	return nil
}

func (c *memCheckIns) GetByRegistration(_ context.Context, id int64) (*model.CheckIn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ci, ok := c.st.checkIns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ci, nil
}

func (c *memCheckIns) CountByRegistration(_ context.Context, id int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.st.checkIns[id]; ok {
		return 1, nil
	}
	return 0, nil
}

func (c *memCheckIns) Count(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.st.checkIns), nil
}

// --- Аудит ---

type memAudit memRepos

func (a *memAudit) Insert(_ context.Context, e *model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st.auditErr != nil {
		return a.st.auditErr
	}
	e.ID = int64(len(a.st.audit) + 1)
	e.CreatedAt = time.Now()
	a.st.audit = append(a.st.audit, *e)
	return nil
}

func (a *memAudit) match(e model.AuditEntry, f model.AuditFilter) bool {
	switch {
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.ResourceType != "" && e.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && (e.ResourceID == nil || *e.ResourceID != f.ResourceID):
		return false
	case f.ActorID != "" && (e.ActorID == nil || *e.ActorID != f.ActorID):
		return false
	}
	return true
}

func (a *memAudit) List(_ context.Context, f model.AuditFilter) ([]*model.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var result []*model.AuditEntry
	for i := len(a.st.audit) - 1; i >= 0; i-- {
		if e := a.st.audit[i]; a.match(e, f) {
			result = append(result, &e)
		}
	}
	return result, nil
}

func (a *memAudit) Count(ctx context.Context, f model.AuditFilter) (int, error) {
	entries, _ := a.List(ctx, f)
	return len(entries), nil
}

// --- Сотрудники ---

type memActors memRepos

func (r *memActors) Create(_ context.Context, a *model.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.st.actors {
		if existing.Email == a.Email {
			return repository.ErrConflict
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.st.actors[a.ID] = *a
	return nil
}

func (r *memActors) GetByID(_ context.Context, id string) (*model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.st.actors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *memActors) GetByEmail(_ context.Context, email string) (*model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.st.actors {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memActors) Update(_ context.Context, a *model.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.st.actors[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	copied := *a
	copied.Permissions = existing.Permissions
	copied.UpdatedAt = time.Now()
	r.st.actors[a.ID] = copied
	return nil
}

func (r *memActors) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.st.actors[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LastLoginAt = &at
	r.st.actors[id] = a
	return nil
}

func (r *memActors) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.st.actors[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.st.actors, id)
	return nil
}

func (r *memActors) List(_ context.Context, limit, offset int) ([]*model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Actor
	for _, a := range r.st.actors {
		a := a
		result = append(result, &a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *memActors) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.st.actors), nil
}

func (r *memActors) CountActiveByRole(_ context.Context, role rbac.Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.st.actors {
		if a.IsActive && a.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *memActors) SetPermissions(_ context.Context, id string, perms []rbac.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.st.actors[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Permissions = append([]rbac.Permission(nil), perms...)
	r.st.actors[id] = a
	return nil
}

// --- Уведомления и хранилище ---

// recordingSink запоминает письма; ok=false имитирует недоступный SMTP.
type recordingSink struct {
	mu   sync.Mutex
	ok   bool
	sent []notify.Message
}

func newRecordingSink() *recordingSink { return &recordingSink{ok: true} }

func (s *recordingSink) Send(_ context.Context, msg notify.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.ok
}

func (s *recordingSink) subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, m := range s.sent {
		result = append(result, m.Subject)
	}
	return result
}

func (s *recordingSink) last() notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

// memBlobs — хранилище файлов в памяти.
type memBlobs struct {
	mu        sync.Mutex
	files     map[string][]byte
	putErr    error
	deleteErr error
}

func newMemBlobs() *memBlobs { return &memBlobs{files: make(map[string][]byte)} }

func (b *memBlobs) Put(_ context.Context, dir, name string, r io.Reader) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := dir + "/" + name
	b.files[p] = data
	return p, nil
}

func (b *memBlobs) Get(_ context.Context, p string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[p]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (b *memBlobs) Delete(_ context.Context, p string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, p)
	return nil
}

func (b *memBlobs) has(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[p]
	return ok
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
