package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"playerlab/platform/schema"
	"playerlab/utils"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFoundWithEmail = errors.New("no user found for given email")
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrGeneratingJwt         = errors.New("error generating jwt")
	ErrEmailAlreadyInUse     = errors.New("email is already in use")
)

const sessionDuration = 12 * time.Hour

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

// SessionProvider materializes the acting principal for every request. The
// user row is re-read from the store on each request rather than trusting
// claims embedded in the token, so a role or onboarding change takes effect
// on the very next request.
type SessionProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

func NewSessionProvider(db *gorm.DB, auditLog AuditLogger, secret []byte) *SessionProvider {
	return &SessionProvider{
		jwtManager: NewJwtManager(secret),
		db:         db,
		auditLog:   auditLog,
	}
}

func (s *SessionProvider) Login(email, password string) (LoginResult, error) {
	user, err := schema.GetUserByEmail(email, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return LoginResult{}, ErrUserNotFoundWithEmail
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.jwtManager.CreateSessionJwt(user.Id, sessionDuration)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{UserId: user.Id, AccessToken: token}, nil
}

// ResolvePrincipal resolves the user's tenant: owners via Company.OwnerId,
// everyone else via User.CompanyId. Owners also carry a backfilled company_id
// so the second path serves as a fallback; a user that resolves by neither
// path is a data integrity fault.
func ResolvePrincipal(user schema.User, db *gorm.DB) (Principal, error) {
	if user.Role == schema.RoleOwner {
		company, err := schema.GetCompanyByOwner(user.Id, db)
		if err == nil {
			return Principal{User: user, CompanyId: company.Id}, nil
		}
		if !errors.Is(err, schema.ErrCompanyNotFound) {
			return Principal{}, err
		}
	}

	if user.CompanyId != nil {
		return Principal{User: user, CompanyId: *user.CompanyId}, nil
	}

	slog.Error("user resolves to no tenant", "user_id", user.Id, "role", user.Role)
	return Principal{}, ErrTenantNotFound
}

func (s *SessionProvider) addPrincipalToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := UserIdFromContext(r)
			if err != nil {
				utils.WriteErrorJson(w, http.StatusUnauthorized, ReasonNotAuthenticated, err.Error())
				return
			}

			user, err := schema.GetUser(userId, s.db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					utils.WriteErrorJson(w, http.StatusUnauthorized, ReasonNotAuthenticated, err.Error())
					return
				}
				utils.WriteErrorJson(w, http.StatusInternalServerError, "INTERNAL_ERROR", fmt.Sprintf("unable to find user %v: %v", userId, err))
				return
			}

			principal, err := ResolvePrincipal(user, s.db)
			if err != nil {
				if errors.Is(err, ErrTenantNotFound) {
					utils.WriteErrorJson(w, http.StatusInternalServerError, ReasonTenantNotFound, err.Error())
					return
				}
				utils.WriteErrorJson(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
				return
			}

			reqCtx := context.WithValue(r.Context(), principalRequestContextKey, principal)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (s *SessionProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{
		s.jwtManager.Verifier(),
		s.jwtManager.Authenticator(),
		s.addPrincipalToContext(),
		s.auditLog.Middleware,
	}
}

type requestContextKey string

const principalRequestContextKey requestContextKey = "principal"

func PrincipalFromContext(r *http.Request) (Principal, error) {
	principalUntyped := r.Context().Value(principalRequestContextKey)
	if principalUntyped == nil {
		return Principal{}, fmt.Errorf("principal field not found in request context")
	}
	principal, ok := principalUntyped.(Principal)
	if !ok {
		return Principal{}, fmt.Errorf("invalid value for principal field")
	}
	return principal, nil
}
