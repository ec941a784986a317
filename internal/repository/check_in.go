package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/eventdesk/internal/domain/model"
)

// CheckInRepository — журнал прохода (таблица check_ins).
type CheckInRepository interface {
	// Create добавляет запись прохода. Заполняет ID и CheckedInAt.
	// Повторный проход по той же заявке — ErrConflict.
	Create(ctx context.Context, c *model.CheckIn) error
	// GetByRegistration возвращает запись прохода по ID заявки.
	GetByRegistration(ctx context.Context, registrationID int64) (*model.CheckIn, error)
	// CountByRegistration возвращает количество записей прохода по заявке (0 или 1).
	CountByRegistration(ctx context.Context, registrationID int64) (int, error)
	// Count возвращает общее количество проходов.
	Count(ctx context.Context) (int, error)
}

type checkInRepo struct {
	db DBTX
}

// NewCheckInRepository создаёт репозиторий журнала прохода.
func NewCheckInRepository(db DBTX) CheckInRepository {
	return &checkInRepo{db: db}
}

func (r *checkInRepo) Create(ctx context.Context, c *model.CheckIn) error {
	query := `
		INSERT INTO check_ins (registration_id, checked_in_by)
		VALUES ($1, $2)
		RETURNING id, checked_in_at`

	var by *string
	if c.CheckedInBy != "" {
		by = &c.CheckedInBy
	}

	err := r.db.QueryRow(ctx, query, c.RegistrationID, by).Scan(&c.ID, &c.CheckedInAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка записи прохода: %w", err)
	}
	return nil
}

func (r *checkInRepo) GetByRegistration(ctx context.Context, registrationID int64) (*model.CheckIn, error) {
	query := `
		SELECT id, registration_id, checked_in_at, COALESCE(checked_in_by::text, '')
		FROM check_ins WHERE registration_id = $1`

	c := &model.CheckIn{}
	err := r.db.QueryRow(ctx, query, registrationID).Scan(
		&c.ID, &c.RegistrationID, &c.CheckedInAt, &c.CheckedInBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения прохода: %w", err)
	}
	return c, nil
}

func (r *checkInRepo) CountByRegistration(ctx context.Context, registrationID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM check_ins WHERE registration_id = $1`, registrationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта проходов: %w", err)
	}
	return count, nil
}

func (r *checkInRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM check_ins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта проходов: %w", err)
	}
	return count, nil
}
