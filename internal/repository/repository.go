// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner — источник транзакций: пул открывает транзакцию,
// транзакция открывает SAVEPOINT.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories — набор репозиториев поверх одного DBTX.
// Все репозитории набора, полученного внутри RunInTx, работают в одной транзакции.
type Repositories interface {
	Registrations() RegistrationRepository
	CheckIns() CheckInRepository
	Audit() AuditRepository
	Actors() ActorRepository

	// RunInTx выполняет fn в транзакции. Для набора, уже привязанного
	// к транзакции, открывается вложенная (SAVEPOINT): её откат
	// не затрагивает внешнюю транзакцию.
	// При ошибке fn — откат, при успехе — коммит.
	RunInTx(ctx context.Context, fn func(Repositories) error) error
}

// pgRepositories — реализация Repositories для PostgreSQL.
type pgRepositories struct {
	db    DBTX
	begin beginner
}

// NewRepositories создаёт набор репозиториев поверх пула подключений.
func NewRepositories(pool *pgxpool.Pool) Repositories {
	return &pgRepositories{db: pool, begin: pool}
}

func (r *pgRepositories) Registrations() RegistrationRepository {
	return NewRegistrationRepository(r.db)
}

func (r *pgRepositories) CheckIns() CheckInRepository {
	return NewCheckInRepository(r.db)
}

func (r *pgRepositories) Audit() AuditRepository {
	return NewAuditRepository(r.db)
}

func (r *pgRepositories) Actors() ActorRepository {
	return NewActorRepository(r.db)
}

func (r *pgRepositories) RunInTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := r.begin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(&pgRepositories{db: tx, begin: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// uniqueConstraint возвращает имя нарушенного ограничения уникальности.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// clampLimit нормализует параметры пагинации.
func clampLimit(limit, offset int) (int, int) {
	if limit < 1 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
