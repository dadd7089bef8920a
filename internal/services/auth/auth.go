// Package auth выпускает и проверяет токены доступа, в которые зашит
// текущий тариф пользователя.
//
// Вход возможен по паролю, через внешний провайдер (Google) и, вне боевого
// окружения, через тестовый вход. Если хранилище недоступно, тестовый вход
// выдаёт синтетическую личность, вычисляемую из email.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magabrotheeeer/filesfy/internal/identityprovider"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/jwt"
	"github.com/magabrotheeeer/filesfy/internal/lib/password"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Способы выпуска токена для метрик.
const (
	MethodRegister  = "register"
	MethodPassword  = "password"
	MethodExternal  = "external"
	MethodTest      = "test"
	MethodSynthetic = "synthetic"
	MethodReissue   = "reissue"
)

// syntheticNamespace пространство имён UUIDv5 для синтетических личностей.
var syntheticNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("synthetic.filesfy"))

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	// CreateUserWithSubscription сохраняет пользователя вместе с бесплатной подпиской.
	CreateUserWithSubscription(ctx context.Context, user models.User) (*models.User, *models.Subscription, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, error)
}

// Ledger учёт подписок.
type Ledger interface {
	CreateDefault(ctx context.Context, userUID string) (*models.Subscription, error)
	CurrentFor(ctx context.Context, userUID string) (*models.Subscription, error)
}

// ExternalVerifier проверяет токен внешнего провайдера идентификации.
type ExternalVerifier interface {
	Configured() bool
	Verify(ctx context.Context, token string) (*identityprovider.Identity, error)
}

// Revocations список отозванных токенов.
type Revocations interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Metrics счётчик выпущенных токенов.
type Metrics interface {
	IncTokenIssued(method string)
}

// Session результат входа: токен и представления пользователя и подписки.
type Session struct {
	Token        string                  `json:"token,omitempty"`
	User         models.UserView         `json:"user"`
	Subscription models.SubscriptionView `json:"subscription"`
	Synthetic    bool                    `json:"synthetic,omitempty"`
}

// Service отвечает за регистрацию, вход и проверку токенов.
type Service struct {
	users       UserRepository
	ledger      Ledger
	jwtMaker    jwt.Maker
	external    ExternalVerifier
	revocations Revocations
	metrics     Metrics
	testLogin   bool
	now         func() time.Time
	log         *slog.Logger
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithExternalVerifier подключает внешний провайдер идентификации.
func WithExternalVerifier(v ExternalVerifier) Option {
	return func(s *Service) { s.external = v }
}

// WithRevocations включает отзыв токенов при выходе.
func WithRevocations(r Revocations) Option {
	return func(s *Service) { s.revocations = r }
}

// WithMetrics включает учёт метрик.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTestLogin разрешает тестовый вход.
func WithTestLogin(enabled bool) Option {
	return func(s *Service) { s.testLogin = enabled }
}

// New создает сервис аутентификации.
func New(users UserRepository, ledger Ledger, jwtMaker jwt.Maker, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		ledger:   ledger,
		jwtMaker: jwtMaker,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает пользователя с бесплатной подпиской и выдает токен.
func (s *Service) Register(ctx context.Context, name, email, rawPassword string) (*Session, error) {
	const op = "auth.Register"
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || rawPassword == "" {
		return nil, fmt.Errorf("%s: %w: name, email and password are required", op, apperr.ErrValidation)
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, sub, err := s.users.CreateUserWithSubscription(ctx, models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hashed,
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, fmt.Errorf("%s: %w: email already registered", op, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("op", op), slog.String("user_uid", user.UUID))
	return s.issue(MethodRegister, user, sub)
}

// Login проверяет пароль и выдает токен. Неизвестный email и неверный
// пароль дают одинаковую ошибку.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "auth.Login"
	email = normalizeEmail(email)
	if email == "" || rawPassword == "" {
		return nil, fmt.Errorf("%s: %w: email and password are required", op, apperr.ErrValidation)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: invalid credentials", op, apperr.ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.Verify(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w: invalid credentials", op, apperr.ErrAuth)
	}

	sub, err := s.ensureSubscription(ctx, user.UUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.issue(MethodPassword, user, sub)
}

// LoginExternal входит по токену внешнего провайдера. Пользователь
// создаётся при первом входе.
func (s *Service) LoginExternal(ctx context.Context, externalToken string) (*Session, error) {
	const op = "auth.LoginExternal"
	if externalToken == "" {
		return nil, fmt.Errorf("%s: %w: token is required", op, apperr.ErrValidation)
	}
	if s.external == nil || !s.external.Configured() {
		return nil, fmt.Errorf("%s: %w: external login is not configured", op, apperr.ErrValidation)
	}

	identity, err := s.external.Verify(ctx, externalToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
	}

	user, err := s.users.GetUserByExternalID(ctx, identity.ExternalID)
	if errors.Is(err, apperr.ErrNotFound) {
		u := models.User{
			ExternalID: &identity.ExternalID,
			Email:      normalizeEmail(identity.Email),
			Name:       identity.Name,
		}
		if identity.Picture != "" {
			u.AvatarURL = &identity.Picture
		}
		var sub *models.Subscription
		user, sub, err = s.users.CreateUserWithSubscription(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("user registered via external provider", slog.String("op", op), slog.String("user_uid", user.UUID))
		return s.issue(MethodExternal, user, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := s.ensureSubscription(ctx, user.UUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.issue(MethodExternal, user, sub)
}

// TestLogin входит по email без пароля. Доступен только в тестовом режиме.
// При недоступном хранилище выдаёт синтетическую личность.
func (s *Service) TestLogin(ctx context.Context, email, name string) (*Session, error) {
	const op = "auth.TestLogin"
	if !s.testLogin {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return nil, fmt.Errorf("%s: %w: email and name are required", op, apperr.ErrValidation)
	}

	session, err := s.testLoginStored(ctx, email, name)
	if errors.Is(err, apperr.ErrStoreUnavailable) {
		s.log.Warn("store unavailable, issuing synthetic identity", slog.String("op", op), sl.Err(err))
		return s.issueSynthetic(email, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

func (s *Service) testLoginStored(ctx context.Context, email, name string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		var sub *models.Subscription
		user, sub, err = s.users.CreateUserWithSubscription(ctx, models.User{Email: email, Name: name})
		if err != nil {
			return nil, err
		}
		return s.issue(MethodTest, user, sub)
	}
	if err != nil {
		return nil, err
	}
	sub, err := s.ensureSubscription(ctx, user.UUID)
	if err != nil {
		return nil, err
	}
	return s.issue(MethodTest, user, sub)
}

// SyntheticUID возвращает детерминированный идентификатор синтетической личности.
func SyntheticUID(email string) string {
	return uuid.NewSHA1(syntheticNamespace, []byte(normalizeEmail(email))).String()
}

func (s *Service) issueSynthetic(email, name string) (*Session, error) {
	const op = "auth.issueSynthetic"
	uid := SyntheticUID(email)
	token, err := s.jwtMaker.GenerateToken(jwt.Subject{
		UserUID:   uid,
		Email:     email,
		Name:      name,
		Plan:      string(models.PlanFree),
		Synthetic: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.countIssued(MethodSynthetic)
	return &Session{
		Token:        token,
		User:         models.UserView{ID: uid, Email: email, Name: name},
		Subscription: models.DefaultView(uid, models.PlanFree),
		Synthetic:    true,
	}, nil
}

// Authenticate проверяет подпись, срок действия и отзыв токена.
func (s *Service) Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "auth.Authenticate"
	if token == "" {
		return nil, fmt.Errorf("%s: %w: token is required", op, apperr.ErrAuth)
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
	}
	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.log.Warn("failed to check token revocation", slog.String("op", op), sl.Err(err))
		}
		if revoked {
			return nil, fmt.Errorf("%s: %w: token revoked", op, apperr.ErrAuth)
		}
	}
	return claims, nil
}

// Verify проверяет токен и возвращает актуальные данные пользователя
// и подписки. Для синтетического токена данные берутся из claims.
func (s *Service) Verify(ctx context.Context, token string) (*Session, error) {
	const op = "auth.Verify"
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.Synthetic {
		return &Session{
			User:         models.UserView{ID: claims.UserUID, Email: claims.Email, Name: claims.Name},
			Subscription: models.DefaultView(claims.UserUID, models.Plan(claims.Plan)),
			Synthetic:    true,
		}, nil
	}

	user, err := s.users.GetUser(ctx, claims.UserUID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: user not found", op, apperr.ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.ledger.CurrentFor(ctx, user.UUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Session{User: user.View(), Subscription: subscriptionView(user.UUID, sub)}, nil
}

// Logout отзывает токен до конца его срока действия, если настроен список
// отозванных токенов. Недействительный токен не считается ошибкой.
func (s *Service) Logout(ctx context.Context, token string) error {
	const op = "auth.Logout"
	if s.revocations == nil || token == "" {
		return nil
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil || claims.ID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresIn(s.now())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("token revoked", slog.String("op", op), slog.String("user_uid", claims.UserUID))
	return nil
}

// Reissue выпускает новый токен с текущим тарифом пользователя.
func (s *Service) Reissue(ctx context.Context, userUID string) (string, error) {
	const op = "auth.Reissue"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.ledger.CurrentFor(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	session, err := s.issue(MethodReissue, user, sub)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return session.Token, nil
}

// UpdateProfile меняет имя и аватар пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.UserView, error) {
	const op = "auth.UpdateProfile"
	if upd.Empty() {
		return nil, fmt.Errorf("%s: %w: nothing to update", op, apperr.ErrValidation)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%s: %w: name must not be empty", op, apperr.ErrValidation)
	}
	user, err := s.users.UpdateProfile(ctx, userUID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	view := user.View()
	return &view, nil
}

// ensureSubscription возвращает активную подписку, создавая бесплатную,
// если её нет.
func (s *Service) ensureSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	sub, err := s.ledger.CurrentFor(ctx, userUID)
	if err != nil || sub != nil {
		return sub, err
	}
	s.log.Warn("user has no active subscription, creating default", slog.String("user_uid", userUID))
	sub, err = s.ledger.CreateDefault(ctx, userUID)
	if errors.Is(err, apperr.ErrConflict) {
		return s.ledger.CurrentFor(ctx, userUID)
	}
	return sub, err
}

func (s *Service) issue(method string, user *models.User, sub *models.Subscription) (*Session, error) {
	const op = "auth.issue"
	view := subscriptionView(user.UUID, sub)
	token, err := s.jwtMaker.GenerateToken(jwt.Subject{
		UserUID: user.UUID,
		Email:   user.Email,
		Name:    user.Name,
		Plan:    string(view.PlanType),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.countIssued(method)
	return &Session{Token: token, User: user.View(), Subscription: view}, nil
}

func (s *Service) countIssued(method string) {
	if s.metrics != nil {
		s.metrics.IncTokenIssued(method)
	}
}

func subscriptionView(userUID string, sub *models.Subscription) models.SubscriptionView {
	if sub == nil {
		return models.DefaultView(userUID, models.PlanFree)
	}
	return sub.View()
}
