package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/eventdesk/internal/domain/model"
)

// AuditRepository — журнал аудита (таблица audit_entries).
// Записи только добавляются, изменение и удаление не предусмотрены.
type AuditRepository interface {
	// Insert добавляет запись. Заполняет ID и CreatedAt.
	Insert(ctx context.Context, e *model.AuditEntry) error
	// List возвращает записи по фильтру (новые первыми).
	List(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, error)
	// Count возвращает количество записей по фильтру.
	Count(ctx context.Context, f model.AuditFilter) (int, error)
}

type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Insert(ctx context.Context, e *model.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (actor_id, action, resource_type, resource_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		e.ActorID, string(e.Action), string(e.ResourceType), e.ResourceID, e.Details, e.IPAddress,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

func buildAuditWhere(f model.AuditFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.ActorID != "" {
		add("actor_id::text = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", string(f.ResourceType))
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *auditRepo) List(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, error) {
	where, args := buildAuditWhere(f)
	limit, offset := clampLimit(f.Limit, f.Offset)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT id, created_at, actor_id::text, action, resource_type, resource_id, details, ip_address
		FROM audit_entries%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		var action, resource string
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.ActorID, &action, &resource,
			&e.ResourceID, &e.Details, &e.IPAddress,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		e.Action = model.AuditAction(action)
		e.ResourceType = model.AuditResource(resource)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditRepo) Count(ctx context.Context, f model.AuditFilter) (int, error) {
	where, args := buildAuditWhere(f)

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей аудита: %w", err)
	}
	return count, nil
}
