// auth.go — аутентификация запросов Maltalist API.
// Токены выпускает внешний провайдер (Keycloak), подпись RS256,
// публичные ключи забираются с его JWKS endpoint и периодически обновляются.
// Авторизация — по scope'ам токена (см. RequireScope).
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
)

// contextKey — собственный тип ключей контекста, чтобы не пересекаться
// с ключами других пакетов.
type contextKey string

const (
	// ContextKeySubject — sub аутентифицированного пользователя.
	ContextKeySubject contextKey = "jwt_subject"
	// ContextKeyScopes — список scope'ов из токена.
	ContextKeyScopes contextKey = "jwt_scopes"
)

// Claims — полезная нагрузка JWT, с которой работает API.
// Keycloak кладёт scope'ы в claim "scope" пробело-разделённой строкой;
// для совместимости принимается и массив строк в claim "scopes".
type Claims struct {
	jwt.RegisteredClaims
	ScopeString string   `json:"scope"`
	ScopeArray  []string `json:"scopes"`
}

// Scopes собирает scope'ы из обоих claim'ов в один список.
func (c *Claims) Scopes() []string {
	var result []string
	if c.ScopeString != "" {
		result = append(result, strings.Split(c.ScopeString, " ")...)
	}
	result = append(result, c.ScopeArray...)
	return result
}

// JWTAuth проверяет подпись и срок действия JWT по ключам из JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// JWTAuthConfig — параметры подключения к JWKS endpoint и проверки токенов.
type JWTAuthConfig struct {
	// URL JWKS endpoint провайдера
	JWKSURL string
	// Путь к CA-сертификату для TLS-соединения с JWKS (опционально)
	CACertPath string
	// Не проверять TLS-сертификат JWKS endpoint (ML_JWKS_TLS_SKIP_VERIFY,
	// только для разработки)
	TLSSkipVerify bool
	// Таймаут запросов к JWKS endpoint
	ClientTimeout time.Duration
	// Период фонового обновления ключей
	RefreshInterval time.Duration
	// Допуск рассинхронизации часов при проверке exp/nbf
	JWTLeeway time.Duration
}

// NewJWTAuth подключается к JWKS endpoint и возвращает готовый middleware.
// Первый запрос к endpoint не обязан успеть: NoErrorReturnFirstHTTPReq
// позволяет стартовать до того, как провайдер аутентификации поднимется,
// ключи подтянутся фоновым обновлением.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := jwksHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		jwtLeeway: authCfg.JWTLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// NewJWTAuthWithKeyfunc собирает middleware поверх готовой keyfunc,
// минуя JWKS endpoint. Нужен тестам.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:      kf,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// jwksHTTPClient собирает HTTP-клиент для запросов к JWKS endpoint:
// таймаут, опциональный CA и опциональное отключение проверки TLS.
func jwksHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: authCfg.TLSSkipVerify, //nolint:gosec // включается явно через ML_JWKS_TLS_SKIP_VERIFY
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		// Системный пул плюс наш CA; без системного пула, если он недоступен.
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// bearerToken достаёт токен из заголовка Authorization.
// Пустая строка во втором значении — причина отказа для ответа клиенту.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Отсутствует заголовок Authorization"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Неверный формат Authorization: ожидается Bearer <token>"
	}
	if parts[1] == "" {
		return "", "Пустой Bearer token"
	}
	return parts[1], ""
}

// Middleware отклоняет запросы без валидного токена.
// Проверяются подпись (только RS256), обязательный exp и nbf с допуском
// jwtLeeway. sub и scopes валидного токена кладутся в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, reason := bearerToken(r)
			if reason != "" {
				apierrors.Unauthorized(w, reason)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}
			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, subject)
			ctx = context.WithValue(ctx, ContextKeyScopes, claims.Scopes())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope пропускает запрос только при наличии scope в токене,
// иначе 403. Вешается после JWTAuth.Middleware().
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes := ScopesFromContext(r.Context())
			if scopes == nil {
				apierrors.Forbidden(w, "Отсутствуют scopes в токене")
				return
			}
			if !hasScope(scopes, scope) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// SubjectFromContext возвращает sub аутентифицированного пользователя
// или пустую строку.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(ContextKeySubject).(string)
	return subject
}

// ScopesFromContext возвращает scope'ы токена или nil.
func ScopesFromContext(ctx context.Context) []string {
	scopes, _ := ctx.Value(ContextKeyScopes).([]string)
	return scopes
}

// Close останавливает фоновое обновление JWKS.
func (j *JWTAuth) Close() {
	// keyfunc v3 с HTTP storage останавливается вместе с контекстом процесса
}
