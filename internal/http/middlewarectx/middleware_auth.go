// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст идентификатор пользователя и тариф
// из токена. OptionalJWTMiddleware делает то же, но пропускает запрос без
// токена или с недействительным токеном; такой запрос обслуживается по
// бесплатному тарифу.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/jwt"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID — ключ идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// Plan — ключ тарифа из токена в контексте
	Plan Key = "plan"
	// Claims — ключ полного набора claims в контексте
	Claims Key = "claims"
)

// Authenticator проверяет токен доступа.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func withClaims(ctx context.Context, claims *jwt.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, UserUID, claims.UserUID)
	ctx = context.WithValue(ctx, Plan, claims.Plan)
	return context.WithValue(ctx, Claims, claims)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет пользователя и тариф в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := BearerToken(r)
			if !ok {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "missing or invalid authorization header"))
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWTMiddleware добавляет данные токена в контекст, если токен
// передан и валиден. Запрос без валидного токена пропускается дальше.
func OptionalJWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Debug("ignoring invalid token",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// UserUIDFrom возвращает идентификатор пользователя из контекста.
func UserUIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}

// PlanFrom возвращает тариф из токена или пустую строку для анонимного запроса.
func PlanFrom(ctx context.Context) string {
	plan, _ := ctx.Value(Plan).(string)
	return plan
}

// ClaimsFrom возвращает claims токена из контекста.
func ClaimsFrom(ctx context.Context) (*jwt.CustomClaims, bool) {
	claims, ok := ctx.Value(Claims).(*jwt.CustomClaims)
	return claims, ok
}
