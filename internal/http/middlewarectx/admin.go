package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
)

// AdminKeyHeader заголовок с ключом администратора.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware пропускает только запросы с ключом администратора.
// Пустой ключ отключает защищённые маршруты.
func AdminKeyMiddleware(key string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ErrorKind(apperr.KindNotFound, "not found"))
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				log.Warn("admin key rejected", slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "invalid admin key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
