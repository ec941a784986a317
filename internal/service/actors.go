// actors.go — сотрудники: вход и выход, управление учётными записями,
// операции CLI-утилиты.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/eventdesk/internal/auth"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// CreateActorInput — данные нового сотрудника.
type CreateActorInput struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,min=8,max=72"`
	Role        string `validate:"required"`
	Permissions []string
	// IsActive — nil означает активную учётную запись
	IsActive *bool
}

// UpdateActorInput — частичное изменение сотрудника (nil — без изменений).
type UpdateActorInput struct {
	Role        *string
	IsActive    *bool
	Password    *string
	Permissions *[]string
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	Token  string
	Claims *auth.Claims
	Actor  *model.Actor
}

// ActorService — управление сотрудниками.
type ActorService struct {
	repos   repository.Repositories
	issuer  *auth.TokenIssuer
	revoker auth.Revoker
	cache   *ActorCache
	audit   *AuditRecorder
	now     func() time.Time
	logger  *slog.Logger
}

// NewActorService создаёт сервис сотрудников.
// issuer, revoker и cache могут быть nil в CLI-утилите.
func NewActorService(
	repos repository.Repositories,
	issuer *auth.TokenIssuer,
	revoker auth.Revoker,
	cache *ActorCache,
	audit *AuditRecorder,
	logger *slog.Logger,
) *ActorService {
	return &ActorService{
		repos:   repos,
		issuer:  issuer,
		revoker: revoker,
		cache:   cache,
		audit:   audit,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "actor_service")),
	}
}

// --- Аутентификация ---

// Login проверяет пароль и выпускает токен сотрудника.
// Неизвестный email, неверный пароль и отключённая учётная запись
// дают одну и ту же ErrUnauthorized.
func (s *ActorService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.repos.Actors().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !a.IsActive || !auth.CheckPassword(a.PasswordHash, password) {
		s.logger.Warn("Неудачная попытка входа", slog.String("email", a.Email))
		return nil, ErrUnauthorized
	}

	now := s.now()
	token, claims, err := s.issuer.Issue(a.ID, a.Email, now)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Actors().UpdateLastLogin(ctx, a.ID, now); err != nil {
		s.logger.Warn("Не удалось обновить время входа",
			slog.String("actor_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
	a.LastLoginAt = &now

	s.record(ctx, a, model.ActionLogin, a.ID, "вход в систему")
	s.logger.Info("Вход сотрудника", slog.String("email", a.Email))
	return &LoginResult{Token: token, Claims: claims, Actor: a}, nil
}

// Authenticate проверяет токен и возвращает активного сотрудника.
func (s *ActorService) Authenticate(ctx context.Context, token string) (*model.Actor, *auth.Claims, error) {
	claims, err := s.issuer.Parse(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("проверка отзыва токена: %w", err)
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: токен отозван", ErrUnauthorized)
	}

	a, err := s.cache.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: сотрудник не найден", ErrUnauthorized)
		}
		return nil, nil, err
	}
	if !a.IsActive {
		return nil, nil, fmt.Errorf("%w: учётная запись отключена", ErrUnauthorized)
	}
	return a, claims, nil
}

// Logout отзывает токен до его истечения.
func (s *ActorService) Logout(ctx context.Context, actor *model.Actor, claims *auth.Claims) error {
	ttl := s.issuer.TTL()
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("отзыв токена: %w", err)
	}

	s.record(ctx, actor, model.ActionLogout, actor.ID, "выход из системы")
	s.logger.Info("Выход сотрудника", slog.String("email", actor.Email))
	return nil
}

// --- Управление сотрудниками ---

// List возвращает страницу сотрудников и их общее количество.
func (s *ActorService) List(ctx context.Context, limit, offset int) ([]*model.Actor, int, error) {
	actors, err := s.repos.Actors().List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка сотрудников: %w", err)
	}
	total, err := s.repos.Actors().Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт сотрудников: %w", err)
	}
	return actors, total, nil
}

// Get возвращает сотрудника по ID.
func (s *ActorService) Get(ctx context.Context, id string) (*model.Actor, error) {
	a, err := s.repos.Actors().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "сотрудник "+id)
	}
	return a, nil
}

// Create создаёт сотрудника. Требует manage_admins.
func (s *ActorService) Create(ctx context.Context, actor *model.Actor, in CreateActorInput) (*model.Actor, error) {
	if err := authorize(actor, rbac.PermManageAdmins); err != nil {
		return nil, err
	}

	a, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, model.ActionCreate, a.ID, fmt.Sprintf("создан сотрудник %s (%s)", a.Email, a.Role))
	s.logger.Info("Сотрудник создан",
		slog.String("email", a.Email),
		slog.String("role", string(a.Role)),
		slog.String("by", actor.Email),
	)
	return a, nil
}

func (s *ActorService) create(ctx context.Context, in CreateActorInput) (*model.Actor, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	perms, err := parsePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	a := &model.Actor{
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     in.IsActive == nil || *in.IsActive,
		Role:         role,
		Permissions:  perms,
	}
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		return tx.Actors().Create(ctx, a)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: сотрудник %s уже существует", ErrConflict, a.Email)
		}
		return nil, err
	}
	return a, nil
}

// Update изменяет роль, активность, пароль или прямые права сотрудника.
// Сотрудник не может отключить или понизить себя; последний активный
// администратор не может быть отключён или понижен.
func (s *ActorService) Update(ctx context.Context, actor *model.Actor, id string, in UpdateActorInput) (*model.Actor, error) {
	if err := authorize(actor, rbac.PermManageAdmins); err != nil {
		return nil, err
	}

	var updated *model.Actor
	err := s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		a, err := tx.Actors().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "сотрудник "+id)
		}
		wasAdmin := a.IsActive && a.Role == rbac.RoleAdmin

		if in.Role != nil {
			role, err := rbac.ParseRole(*in.Role)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if a.ID == actor.ID && role != a.Role {
				return fmt.Errorf("%w: нельзя изменить собственную роль", ErrPrecondition)
			}
			a.Role = role
		}
		if in.IsActive != nil {
			if a.ID == actor.ID && !*in.IsActive {
				return fmt.Errorf("%w: нельзя отключить собственную учётную запись", ErrPrecondition)
			}
			a.IsActive = *in.IsActive
		}
		if in.Password != nil {
			hash, err := hashPassword(*in.Password)
			if err != nil {
				return err
			}
			a.PasswordHash = hash
		}

		if wasAdmin && !(a.IsActive && a.Role == rbac.RoleAdmin) {
			if err := ensureAnotherAdmin(ctx, tx); err != nil {
				return err
			}
		}

		if err := tx.Actors().Update(ctx, a); err != nil {
			return mapRepoError(err, "сотрудник "+id)
		}
		if in.Permissions != nil {
			perms, err := parsePermissions(*in.Permissions)
			if err != nil {
				return err
			}
			if err := tx.Actors().SetPermissions(ctx, a.ID, perms); err != nil {
				return err
			}
			a.Permissions = perms
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(id)

	s.record(ctx, actor, model.ActionUpdate, id, fmt.Sprintf("изменён сотрудник %s: роль %s, активен %t",
		updated.Email, updated.Role, updated.IsActive))
	s.logger.Info("Сотрудник изменён",
		slog.String("email", updated.Email),
		slog.String("by", actor.Email),
	)
	return updated, nil
}

// Delete удаляет сотрудника. Удалить себя или последнего администратора нельзя.
func (s *ActorService) Delete(ctx context.Context, actor *model.Actor, id string) error {
	if err := authorize(actor, rbac.PermManageAdmins); err != nil {
		return err
	}
	if id == actor.ID {
		return fmt.Errorf("%w: нельзя удалить собственную учётную запись", ErrPrecondition)
	}

	var email string
	err := s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		a, err := tx.Actors().GetByID(ctx, id)
		if err != nil {
			return mapRepoError(err, "сотрудник "+id)
		}
		if a.IsActive && a.Role == rbac.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, tx); err != nil {
				return err
			}
		}
		email = a.Email
		return mapRepoError(tx.Actors().Delete(ctx, id), "сотрудник "+id)
	})
	if err != nil {
		return err
	}
	s.invalidate(id)

	s.record(ctx, actor, model.ActionDelete, id, "удалён сотрудник "+email)
	s.logger.Info("Сотрудник удалён",
		slog.String("email", email),
		slog.String("by", actor.Email),
	)
	return nil
}

// --- Операции CLI-утилиты (доступ оператора к БД, без проверки прав) ---

// CreateAdmin создаёт сотрудника из CLI. Пустая роль: ADMIN для первого
// сотрудника в системе, иначе VIEWER.
func (s *ActorService) CreateAdmin(ctx context.Context, email, password, role string) (*model.Actor, error) {
	if role == "" {
		total, err := s.repos.Actors().Count(ctx)
		if err != nil {
			return nil, err
		}
		role = string(rbac.RoleViewer)
		if total == 0 {
			role = string(rbac.RoleAdmin)
		}
	}

	a, err := s.create(ctx, CreateActorInput{Email: email, Password: password, Role: role})
	if err != nil {
		return nil, err
	}
	s.record(ctx, nil, model.ActionCreate, a.ID, fmt.Sprintf("создан сотрудник %s (%s) через CLI", a.Email, a.Role))
	return a, nil
}

// ResetPassword задаёт новый пароль сотрудника из CLI.
func (s *ActorService) ResetPassword(ctx context.Context, email, password string) error {
	a, err := s.repos.Actors().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return mapRepoError(err, "сотрудник "+email)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	if err := s.repos.Actors().Update(ctx, a); err != nil {
		return mapRepoError(err, "сотрудник "+email)
	}
	s.record(ctx, nil, model.ActionUpdate, a.ID, "пароль сброшен через CLI")
	return nil
}

// GrantPermission выдаёт сотруднику право напрямую.
func (s *ActorService) GrantPermission(ctx context.Context, email, permission string) (*model.Actor, error) {
	return s.changePermission(ctx, email, permission, true)
}

// RevokePermission отзывает прямо выданное право. Права роли не меняются.
func (s *ActorService) RevokePermission(ctx context.Context, email, permission string) (*model.Actor, error) {
	return s.changePermission(ctx, email, permission, false)
}

func (s *ActorService) changePermission(ctx context.Context, email, permission string, grant bool) (*model.Actor, error) {
	p, err := rbac.ParsePermission(permission)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var updated *model.Actor
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		a, err := tx.Actors().GetByEmail(ctx, normalizeEmail(email))
		if err != nil {
			return mapRepoError(err, "сотрудник "+email)
		}

		perms := make([]rbac.Permission, 0, len(a.Permissions)+1)
		for _, existing := range a.Permissions {
			if existing != p {
				perms = append(perms, existing)
			}
		}
		if grant {
			perms = append(perms, p)
		}
		if err := tx.Actors().SetPermissions(ctx, a.ID, perms); err != nil {
			return err
		}
		a.Permissions = perms
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(updated.ID)

	verb := "отозвано"
	if grant {
		verb = "выдано"
	}
	s.record(ctx, nil, model.ActionUpdate, updated.ID, fmt.Sprintf("право %s %s через CLI", p, verb))
	return updated, nil
}

// --- Вспомогательные функции ---

// record пишет аудит по сотруднику вне транзакции (best effort).
func (s *ActorService) record(ctx context.Context, actor *model.Actor, action model.AuditAction, id, details string) {
	_ = s.audit.Record(ctx, s.repos, auditEntry(actor, action, model.ResourceAdmin, id, details))
}

func (s *ActorService) invalidate(id string) {
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
}

// ensureAnotherAdmin проверяет, что после изменения останется активный администратор.
func ensureAnotherAdmin(ctx context.Context, tx repository.Repositories) error {
	n, err := tx.Actors().CountActiveByRole(ctx, rbac.RoleAdmin)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: нельзя отключить или понизить последнего администратора", ErrPrecondition)
	}
	return nil
}

func parsePermissions(raw []string) ([]rbac.Permission, error) {
	perms := make([]rbac.Permission, 0, len(raw))
	seen := make(map[rbac.Permission]bool, len(raw))
	for _, r := range raw {
		p, err := rbac.ParsePermission(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return hash, nil
}
