package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
)

// ActorRepository — сотрудники (actors) и их прямые права (actor_permissions).
type ActorRepository interface {
	// Create создаёт сотрудника и его прямые права.
	// Заполняет ID, CreatedAt, UpdatedAt. Дубликат email — ErrConflict.
	Create(ctx context.Context, a *model.Actor) error
	// GetByID возвращает сотрудника с прямыми правами.
	GetByID(ctx context.Context, id string) (*model.Actor, error)
	// GetByEmail возвращает сотрудника с прямыми правами.
	GetByEmail(ctx context.Context, email string) (*model.Actor, error)
	// Update сохраняет email, хэш пароля, роль и активность.
	Update(ctx context.Context, a *model.Actor) error
	// UpdateLastLogin фиксирует время входа.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// Delete удаляет сотрудника.
	Delete(ctx context.Context, id string) error
	// List возвращает сотрудников (по email).
	List(ctx context.Context, limit, offset int) ([]*model.Actor, error)
	// Count возвращает количество сотрудников.
	Count(ctx context.Context) (int, error)
	// CountActiveByRole возвращает количество активных сотрудников с ролью.
	CountActiveByRole(ctx context.Context, role rbac.Role) (int, error)
	// SetPermissions заменяет набор прямых прав сотрудника.
	SetPermissions(ctx context.Context, id string, perms []rbac.Permission) error
}

type actorRepo struct {
	db DBTX
}

// NewActorRepository создаёт репозиторий сотрудников.
func NewActorRepository(db DBTX) ActorRepository {
	return &actorRepo{db: db}
}

const actorColumns = `id::text, email, password_hash, is_active, role, last_login_at, created_at, updated_at`

func scanActor(row pgx.Row) (*model.Actor, error) {
	a := &model.Actor{}
	var role string
	if err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.IsActive, &role,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Role = rbac.Role(role)
	return a, nil
}

func (r *actorRepo) Create(ctx context.Context, a *model.Actor) error {
	query := `
		INSERT INTO actors (email, password_hash, is_active, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.Email, a.PasswordHash, a.IsActive, string(a.Role),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания сотрудника: %w", err)
	}

	if len(a.Permissions) > 0 {
		return r.SetPermissions(ctx, a.ID, a.Permissions)
	}
	return nil
}

func (r *actorRepo) GetByID(ctx context.Context, id string) (*model.Actor, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM actors WHERE id::text = $1`, actorColumns), id)
}

func (r *actorRepo) GetByEmail(ctx context.Context, email string) (*model.Actor, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM actors WHERE email = $1`, actorColumns), email)
}

func (r *actorRepo) getOne(ctx context.Context, query string, arg any) (*model.Actor, error) {
	a, err := scanActor(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сотрудника: %w", err)
	}

	perms, err := r.permissions(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Permissions = perms
	return a, nil
}

// permissions загружает прямые права сотрудника.
func (r *actorRepo) permissions(ctx context.Context, id string) ([]rbac.Permission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT permission FROM actor_permissions WHERE actor_id::text = $1 ORDER BY permission`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прав сотрудника: %w", err)
	}
	defer rows.Close()

	var result []rbac.Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("ошибка сканирования права: %w", err)
		}
		result = append(result, rbac.Permission(p))
	}
	return result, rows.Err()
}

func (r *actorRepo) Update(ctx context.Context, a *model.Actor) error {
	query := `
		UPDATE actors SET
			email = $2,
			password_hash = $3,
			is_active = $4,
			role = $5,
			updated_at = NOW()
		WHERE id::text = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.IsActive, string(a.Role),
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка обновления сотрудника: %w", err)
	}
	return nil
}

func (r *actorRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE actors SET last_login_at = $2 WHERE id::text = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени входа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *actorRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM actors WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления сотрудника: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *actorRepo) List(ctx context.Context, limit, offset int) ([]*model.Actor, error) {
	limit, offset = clampLimit(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM actors ORDER BY email LIMIT $1 OFFSET $2`, actorColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сотрудников: %w", err)
	}

	var result []*model.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка сканирования сотрудника: %w", err)
		}
		result = append(result, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка сотрудников: %w", err)
	}

	// Права подгружаются после закрытия курсора: соединение транзакции одно.
	for _, a := range result {
		perms, err := r.permissions(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Permissions = perms
	}
	return result, nil
}

func (r *actorRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM actors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта сотрудников: %w", err)
	}
	return count, nil
}

func (r *actorRepo) CountActiveByRole(ctx context.Context, role rbac.Role) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM actors WHERE role = $1 AND is_active`, string(role),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта сотрудников по роли: %w", err)
	}
	return count, nil
}

func (r *actorRepo) SetPermissions(ctx context.Context, id string, perms []rbac.Permission) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM actor_permissions WHERE actor_id::text = $1`, id); err != nil {
		return fmt.Errorf("ошибка сброса прав сотрудника: %w", err)
	}
	for _, p := range perms {
		_, err := r.db.Exec(ctx,
			`INSERT INTO actor_permissions (actor_id, permission) VALUES ($1::uuid, $2)
			 ON CONFLICT DO NOTHING`, id, string(p))
		if err != nil {
			return fmt.Errorf("ошибка выдачи права %s: %w", p, err)
		}
	}
	return nil
}
