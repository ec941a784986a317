// auth.go — аутентификация и авторизация персонала EventDesk.
// Токен берётся из Authorization: Bearer или из зашифрованной cookie-сессии,
// проверяется через Authenticator (подпись, отзыв, активность сотрудника).
// Права проверяются по маршрутам через RequirePermission.
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/auth"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal — аутентифицированный сотрудник в контексте запроса.
	ContextKeyPrincipal contextKey = "principal"
)

// APIKeyHeader — заголовок машинного доступа.
const APIKeyHeader = "X-API-Key"

// Principal — сотрудник и claims его токена.
type Principal struct {
	Actor  *model.Actor
	Claims *auth.Claims
	// Token — исходный токен (нужен для выхода из cookie-сессии)
	Token string
}

// Authenticator проверяет токен сотрудника.
// Реализуется service.ActorService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Actor, *auth.Claims, error)
}

// StaffAuth — middleware аутентификации персонала.
type StaffAuth struct {
	authn    Authenticator
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewStaffAuth создаёт middleware аутентификации.
// sessions может быть nil — тогда принимается только Bearer token.
func NewStaffAuth(authn Authenticator, sessions *auth.SessionManager, logger *slog.Logger) *StaffAuth {
	return &StaffAuth{
		authn:    authn,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "staff_auth")),
	}
}

// Middleware возвращает HTTP middleware аутентификации.
// Без валидного токена — 401, сотрудник помещается в контекст запроса.
func (a *StaffAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg := a.extractToken(r)
			if token == "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			actor, claims, err := a.authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					a.logger.Debug("Токен отклонён",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
					apierrors.Unauthorized(w, "Невалидный или просроченный токен")
					return
				}
				a.logger.Error("Ошибка проверки токена", slog.String("error", err.Error()))
				apierrors.InternalError(w, "Ошибка проверки токена")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, &Principal{
				Actor:  actor,
				Claims: claims,
				Token:  token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken возвращает токен из заголовка или cookie-сессии.
// Пустой токен сопровождается сообщением для 401.
func (a *StaffAuth) extractToken(r *http.Request) (token, message string) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", "Неверный формат Authorization: ожидается Bearer <token>"
		}
		if parts[1] == "" {
			return "", "Пустой Bearer token"
		}
		return parts[1], ""
	}

	if a.sessions != nil {
		session, err := a.sessions.GetSessionFromRequest(r)
		if err != nil {
			return "", "Невалидная сессия"
		}
		if session != nil && !session.IsExpired() {
			return session.AccessToken, ""
		}
	}
	return "", "Требуется аутентификация"
}

// RequirePermission возвращает middleware, требующий право сотрудника
// (прямое или через роль). Должен использоваться ПОСЛЕ StaffAuth.Middleware().
func RequirePermission(p rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				apierrors.Unauthorized(w, "Отсутствует сотрудник в контексте")
				return
			}
			if !principal.Actor.HasPermission(p) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется %s", p))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey возвращает middleware машинного доступа по заголовку X-API-Key.
// Пустой key отключает endpoint (404).
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				apierrors.NotFound(w, "Endpoint отключён")
				return
			}
			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок "+APIKeyHeader)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				apierrors.Forbidden(w, "Неверный API-ключ")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// WithPrincipal помещает сотрудника в контекст (для тестов обработчиков).
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p
}

// ActorFromContext извлекает сотрудника из контекста запроса.
func ActorFromContext(ctx context.Context) *model.Actor {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Actor
	}
	return nil
}
