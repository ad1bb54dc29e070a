package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"playerlab/platform/auth"
	"playerlab/platform/email"
	"playerlab/platform/schema"
	"playerlab/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
	email    email.Sender
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/signup", s.Signup)
		r.Get("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.AuthMiddleware()...)

		r.Get("/info", s.Info)

		r.Post("/verification/request", s.RequestVerification)
		r.Post("/verification/submit", s.SubmitVerification)

		r.Delete("/me", s.DeleteOwnAccount)
	})

	return r
}

const minPasswordLength = 8

func generateEmailCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("error generating verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
}

type signupResponse struct {
	UserId    uuid.UUID `json:"user_id"`
	CompanyId uuid.UUID `json:"company_id"`
}

// Signup creates the company together with its owning user. Self-service
// signup always produces an owner; other roles are provisioned by an
// owner/admin through the company service.
func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Email == "" || params.Name == "" || params.CompanyName == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("name, email, and company_name are required"), http.StatusBadRequest))
		return
	}
	if len(params.Password) < minPasswordLength {
		writeError(w, ReasonedError(ReasonValidation, fmt.Errorf("password must be at least %d characters", minPasswordLength), http.StatusBadRequest))
		return
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(params.Password), 10)
	if err != nil {
		writeError(w, CodedError(fmt.Errorf("error encrypting password: %w", err), http.StatusInternalServerError))
		return
	}

	code, err := generateEmailCode()
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	companyId := uuid.New()
	newUser := schema.User{
		Id:        uuid.New(),
		Email:     params.Email,
		Name:      params.Name,
		Password:  hashedPwd,
		Role:      schema.RoleOwner,
		CompanyId: &companyId,
		EmailCode: &code,
	}
	newCompany := schema.Company{Id: companyId, OwnerId: newUser.Id, Name: params.CompanyName}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "email = ?", params.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing email", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return ReasonedError(ReasonEmailInUse, auth.ErrEmailAlreadyInUse, http.StatusConflict)
		}

		if result := txn.Create(&newUser); result.Error != nil {
			slog.Error("sql error creating new user entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Create(&newCompany); result.Error != nil {
			slog.Error("sql error creating new company entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	// Signup succeeds even if the verification email cannot be delivered; the
	// code can be re-requested from the verification endpoint.
	if err := s.email.SendVerificationEmail(newUser.Email, code, newUser.Name); err != nil {
		slog.Error("error sending verification email after signup", "user_id", newUser.Id, "error", err)
	}

	signupMetric.Inc()

	utils.WriteJsonResponse(w, signupResponse{UserId: newUser.Id, CompanyId: newCompany.Id})
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr, password, ok := r.BasicAuth()
	if !ok {
		utils.WriteErrorJson(w, http.StatusUnauthorized, auth.ReasonNotAuthenticated, "missing or invalid Authorization header")
		return
	}

	login, err := s.sessions.Login(emailAddr, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		reason := ReasonInternal
		switch {
		case errors.Is(err, auth.ErrUserNotFoundWithEmail):
			responseCode, reason = http.StatusNotFound, ReasonUserNotFound
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode, reason = http.StatusUnauthorized, auth.ReasonNotAuthenticated
		}
		utils.WriteErrorJson(w, responseCode, reason, fmt.Sprintf("login failed: %v", err))
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

type UserInfo struct {
	Id            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	CompanyId     uuid.UUID `json:"company_id"`
	EmailVerified bool      `json:"email_verified"`
	Onboarded     bool      `json:"onboarded"`
}

func convertToUserInfo(user *schema.User, companyId uuid.UUID) UserInfo {
	return UserInfo{
		Id:            user.Id,
		Email:         user.Email,
		Name:          user.Name,
		Phone:         user.Phone,
		Role:          user.Role,
		CompanyId:     companyId,
		EmailVerified: user.EmailVerified,
		Onboarded:     user.Onboarded,
	}
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(&principal.User, principal.CompanyId))
}

// RequestVerification re-issues the email code. Permitted only while the
// account is unverified; re-issuing invalidates the previous code.
func (s *UserService) RequestVerification(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	if principal.User.EmailVerified {
		writeError(w, ReasonedError(ReasonAlreadyVerified, errors.New("email is already verified"), http.StatusConflict))
		return
	}

	code, err := generateEmailCode()
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	result := s.db.Model(&schema.User{Id: principal.User.Id}).Update("email_code", code)
	if result.Error != nil {
		slog.Error("sql error updating email code", "user_id", principal.User.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	if err := s.email.SendVerificationEmail(principal.User.Email, code, principal.User.Name); err != nil {
		slog.Error("error sending verification email", "user_id", principal.User.Id, "error", err)
		writeError(w, ReasonedError(ReasonEmailDelivery, errors.New("unable to deliver verification email"), http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}

type submitVerificationRequest struct {
	Code string `json:"code"`
}

// SubmitVerification moves the account from UNVERIFIED to verified. The code
// is cleared on success so it cannot be replayed.
func (s *UserService) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params submitVerificationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if principal.User.EmailVerified {
		writeError(w, ReasonedError(ReasonAlreadyVerified, errors.New("email is already verified"), http.StatusConflict))
		return
	}

	if principal.User.EmailCode == nil || params.Code == "" || *principal.User.EmailCode != params.Code {
		writeError(w, ReasonedError(ReasonInvalidCode, errors.New("verification code does not match"), http.StatusBadRequest))
		return
	}

	result := s.db.Model(&schema.User{Id: principal.User.Id}).
		Updates(map[string]interface{}{"email_verified": true, "email_code": nil})
	if result.Error != nil {
		slog.Error("sql error marking email verified", "user_id", principal.User.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	verificationMetric.Inc()
	slog.Info("email verified", "user_id", principal.User.Id)

	utils.WriteSuccess(w)
}

// DeleteOwnAccount removes the acting user. Owners are refused outright:
// ownership must be transferred first so a company never loses its resolvable
// owner.
func (s *UserService) DeleteOwnAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	// The owner check runs first so the caller sees the actionable conflict
	// rather than a bare role denial.
	if principal.User.Role == schema.RoleOwner {
		writeError(w, ReasonedError(ReasonCannotDeleteOwner,
			errors.New("owners must transfer ownership before deleting their account"), http.StatusConflict))
		return
	}

	if err := auth.Authorize(principal, auth.DeleteOwnAccount, auth.TenantTarget(principal.CompanyId)); err != nil {
		writeError(w, err)
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		// Teams coached by this user keep existing with no coach assigned.
		result := txn.Model(&schema.Team{}).Where("coach_id = ?", principal.User.Id).Update("coach_id", nil)
		if result.Error != nil {
			slog.Error("sql error clearing coach assignments", "user_id", principal.User.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.User{Id: principal.User.Id})
		if result.Error != nil {
			slog.Error("sql error deleting user", "user_id", principal.User.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("account deleted", "user_id", principal.User.Id, "role", principal.User.Role)

	utils.WriteSuccess(w)
}
