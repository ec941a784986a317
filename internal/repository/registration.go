package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
)

// Поля, нарушившие уникальность при вставке заявки.
const (
	ConflictEmail = "email"
	ConflictPhone = "phone"
	ConflictQR    = "qr_token"
)

// ConflictError — конфликт уникальности с указанием поля.
// errors.Is(err, ErrConflict) == true.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.Field)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// RegistrationRepository — CRUD для таблицы registrations.
type RegistrationRepository interface {
	// Create создаёт заявку. Заполняет ID, CreatedAt, UpdatedAt.
	// При дубликате email/телефона возвращает *ConflictError.
	Create(ctx context.Context, r *model.Registration) error
	// GetByID возвращает заявку по ID.
	GetByID(ctx context.Context, id int64) (*model.Registration, error)
	// GetByIDForUpdate возвращает заявку с блокировкой строки (только в транзакции).
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Registration, error)
	// GetByEmail возвращает заявку по email.
	GetByEmail(ctx context.Context, email string) (*model.Registration, error)
	// ExistsByEmail проверяет наличие заявки с email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// ExistsByPhone проверяет наличие заявки с телефоном.
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	// Update сохраняет изменяемые поля заявки. Обновляет UpdatedAt.
	Update(ctx context.Context, r *model.Registration) error
	// Delete удаляет заявку (записи check_ins удаляются каскадно).
	Delete(ctx context.Context, id int64) error
	// List возвращает заявки по фильтру (новые первыми).
	List(ctx context.Context, filter model.RegistrationFilter) ([]*model.Registration, error)
	// Count возвращает количество заявок по фильтру (без учёта пагинации).
	Count(ctx context.Context, filter model.RegistrationFilter) (int, error)
	// ListRecipients возвращает неархивные заявки для рассылки.
	// Пустой status — все статусы.
	ListRecipients(ctx context.Context, status lifecycle.Status) ([]*model.Registration, error)
	// Stats возвращает сводную статистику.
	Stats(ctx context.Context) (*model.RegistrationStats, error)
}

// registrationRepo — реализация RegistrationRepository.
type registrationRepo struct {
	db DBTX
}

// NewRegistrationRepository создаёт репозиторий заявок.
func NewRegistrationRepository(db DBTX) RegistrationRepository {
	return &registrationRepo{db: db}
}

const regColumns = `id, name, email, phone, status, receipt_path, qr_token, qr_path,
	rejection_reason, is_archived, checked_in, created_at, updated_at`

// scanRegistration сканирует строку в model.Registration.
func scanRegistration(row pgx.Row) (*model.Registration, error) {
	r := &model.Registration{}
	var status string
	err := row.Scan(
		&r.ID, &r.Name, &r.Email, &r.Phone, &status,
		&r.ReceiptPath, &r.QRToken, &r.QRPath, &r.RejectionReason,
		&r.IsArchived, &r.CheckedIn, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = lifecycle.Status(status)
	return r, nil
}

func (r *registrationRepo) Create(ctx context.Context, reg *model.Registration) error {
	query := `
		INSERT INTO registrations (name, email, phone, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_archived, checked_in, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		reg.Name, reg.Email, reg.Phone, string(reg.Status),
	).Scan(&reg.ID, &reg.IsArchived, &reg.CheckedIn, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Field: registrationConflictField(err)}
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

// registrationConflictField определяет поле по имени нарушенного ограничения.
func registrationConflictField(err error) string {
	switch uniqueConstraint(err) {
	case "registrations_email_key":
		return ConflictEmail
	case "registrations_phone_key":
		return ConflictPhone
	case "registrations_qr_token_key":
		return ConflictQR
	default:
		return "unknown"
	}
}

func (r *registrationRepo) GetByID(ctx context.Context, id int64) (*model.Registration, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1`, regColumns), id)
}

func (r *registrationRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Registration, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM registrations WHERE id = $1 FOR UPDATE`, regColumns), id)
}

func (r *registrationRepo) GetByEmail(ctx context.Context, email string) (*model.Registration, error) {
	return r.getOne(ctx, fmt.Sprintf(`SELECT %s FROM registrations WHERE email = $1`, regColumns), email)
}

func (r *registrationRepo) getOne(ctx context.Context, query string, arg any) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return reg, nil
}

func (r *registrationRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки email: %w", err)
	}
	return exists, nil
}

func (r *registrationRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE phone = $1)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки телефона: %w", err)
	}
	return exists, nil
}

func (r *registrationRepo) Update(ctx context.Context, reg *model.Registration) error {
	query := `
		UPDATE registrations SET
			status = $2,
			receipt_path = $3,
			qr_token = $4,
			qr_path = $5,
			rejection_reason = $6,
			is_archived = $7,
			checked_in = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		reg.ID, string(reg.Status), reg.ReceiptPath, reg.QRToken, reg.QRPath,
		reg.RejectionReason, reg.IsArchived, reg.CheckedIn,
	).Scan(&reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return &ConflictError{Field: registrationConflictField(err)}
		}
		return fmt.Errorf("ошибка обновления заявки: %w", err)
	}
	return nil
}

func (r *registrationRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildRegistrationWhere формирует WHERE и аргументы для фильтра.
func buildRegistrationWhere(f model.RegistrationFilter) (string, []any) {
	conditions := []string{"is_archived = $1"}
	args := []any{f.Archived}

	if f.Status != "" {
		args = append(args, string(f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n))
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *registrationRepo) List(ctx context.Context, f model.RegistrationFilter) ([]*model.Registration, error) {
	where, args := buildRegistrationWhere(f)
	limit, offset := clampLimit(f.Limit, f.Offset)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM registrations%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, regColumns, where, len(args)-1, len(args))

	return r.queryList(ctx, query, args...)
}

func (r *registrationRepo) Count(ctx context.Context, f model.RegistrationFilter) (int, error) {
	where, args := buildRegistrationWhere(f)

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return count, nil
}

func (r *registrationRepo) ListRecipients(ctx context.Context, status lifecycle.Status) ([]*model.Registration, error) {
	if status == "" {
		return r.queryList(ctx, fmt.Sprintf(
			`SELECT %s FROM registrations WHERE NOT is_archived ORDER BY id`, regColumns))
	}
	return r.queryList(ctx, fmt.Sprintf(
		`SELECT %s FROM registrations WHERE NOT is_archived AND status = $1 ORDER BY id`, regColumns),
		string(status))
}

func (r *registrationRepo) queryList(ctx context.Context, query string, args ...any) ([]*model.Registration, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	var result []*model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, reg)
	}
	return result, rows.Err()
}

func (r *registrationRepo) Stats(ctx context.Context) (*model.RegistrationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PENDING_PAYMENT'),
			COUNT(*) FILTER (WHERE status = 'PENDING_VERIFICATION'),
			COUNT(*) FILTER (WHERE status = 'CONFIRMED'),
			COUNT(*) FILTER (WHERE status = 'REJECTED'),
			COUNT(*) FILTER (WHERE checked_in),
			COUNT(*) FILTER (WHERE is_archived)
		FROM registrations`

	s := &model.RegistrationStats{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.Total, &s.PendingPayment, &s.PendingVerification,
		&s.Confirmed, &s.Rejected, &s.CheckedIn, &s.Archived,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return s, nil
}
