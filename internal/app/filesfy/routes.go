// Package filesfy собирает HTTP-приложение сервиса: маршруты, middleware
// и зависимости.
package filesfy

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/filesfy/internal/config"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/loginexternal"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/profile"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/testlogin"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/health"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/recovery/devices"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/recovery/recoverfiles"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/recovery/scan"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/subscription/plans"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/subscription/subscribe"
	"github.com/magabrotheeeer/filesfy/internal/http/handlers/subscription/upgrade"
	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/filesfy/internal/services/auth"
	paymentservice "github.com/magabrotheeeer/filesfy/internal/services/payment"
	recoveryservice "github.com/magabrotheeeer/filesfy/internal/services/recovery"
	subservice "github.com/magabrotheeeer/filesfy/internal/services/subscription"
)

// Services зависимости, из которых строятся маршруты.
type Services struct {
	Auth         *authservice.Service
	Subscription *subservice.Service
	Payment      *paymentservice.Service
	Recovery     *recoveryservice.Service
	// Webhook nil, если платёжный шлюз не настроен.
	Webhook  paymentwebhook.EventParser
	DB       health.Pinger
	Registry *prometheus.Registry
	// RateLimiter nil, если Redis не настроен; тогда лимит считается в памяти.
	RateLimiter middlewarectx.SharedLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, s Services) {
	// Глобальные middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	var limitOpts []middlewarectx.RateLimitOption
	if s.RateLimiter != nil {
		limitOpts = append(limitOpts, middlewarectx.WithSharedLimiter(s.RateLimiter))
	}
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst, limitOpts...),
	)

	requireAuth := middlewarectx.JWTMiddleware(s.Auth, logger)
	optionalAuth := middlewarectx.OptionalJWTMiddleware(s.Auth, logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", register.New(logger, s.Auth).ServeHTTP)
			r.Post("/login", login.New(logger, s.Auth).ServeHTTP)
			r.Post("/login-external", loginexternal.New(logger, s.Auth).ServeHTTP)
			r.Post("/test-login", testlogin.New(logger, s.Auth).ServeHTTP)
			r.Post("/verify", verify.New(logger, s.Auth).ServeHTTP)
			r.Post("/logout", logout.New(logger, s.Auth).ServeHTTP)
			r.With(requireAuth).Patch("/profile", profile.New(logger, s.Auth).ServeHTTP)
		})

		r.Route("/payments", func(r chi.Router) {
			// Вебхук шлюза (без аутентификации)
			r.Post("/webhook", paymentwebhook.New(logger, s.Webhook, s.Payment).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/intent", paymentcreate.New(logger, s.Payment).ServeHTTP)
				r.Get("/", paymentlist.New(logger, s.Payment).ServeHTTP)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/plans", plans.New(logger, s.Subscription).ServeHTTP)
			r.Get("/{userId}", read.New(logger, s.Subscription).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/subscribe", subscribe.New(logger, s.Subscription, s.Payment, s.Auth).ServeHTTP)
				r.Post("/{id}/cancel", cancel.New(logger, s.Subscription).ServeHTTP)
			})

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminKeyMiddleware(cfg.AdminKey, logger))
				r.Post("/{userId}/upgrade", upgrade.New(logger, s.Subscription, upgrade.ModeUpgrade).ServeHTTP)
				r.Post("/{userId}/downgrade", upgrade.New(logger, s.Subscription, upgrade.ModeDowngrade).ServeHTTP)
			})
		})

		r.Route("/recovery", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/devices", devices.New(logger, s.Recovery).ServeHTTP)
			r.Post("/scan", scan.New(logger, s.Recovery).ServeHTTP)
			r.Get("/scan/{scanId}", scan.NewStatus(logger, s.Recovery).ServeHTTP)
			r.Post("/recover", recoverfiles.New(logger, s.Recovery).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
