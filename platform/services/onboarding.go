package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"playerlab/platform/auth"
	"playerlab/platform/schema"
	"playerlab/utils"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OnboardingService drives the per-user lifecycle: UNVERIFIED ->
// VERIFIED_PENDING_ONBOARDING -> ONBOARDED, with the per-player completeness
// sub-state re-evaluated on every status call.
type OnboardingService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
}

func (s *OnboardingService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.Get("/status", s.Status)

	r.Post("/staff", s.CompleteStaff)
	r.Post("/parent", s.CompleteParent)
	r.Post("/player", s.CompletePlayer)

	return r
}

const (
	StepVerifyEmail = "verify-email"
	StepOnboarding  = "onboarding"
	StepPlayerSetup = "player-setup"
	StepDashboard   = "dashboard"
)

type OnboardingStatus struct {
	EmailVerified bool       `json:"email_verified"`
	Onboarded     bool       `json:"onboarded"`
	NextStep      string     `json:"next_step"`
	PlayerId      *uuid.UUID `json:"player_id,omitempty"`
}

// deriveStatus is a pure function of the persisted flags, recomputed on
// demand and never cached beyond the request.
func deriveStatus(user *schema.User, supervised []schema.Player) OnboardingStatus {
	status := OnboardingStatus{EmailVerified: user.EmailVerified, Onboarded: user.Onboarded}

	if !user.EmailVerified {
		status.NextStep = StepVerifyEmail
		return status
	}

	if !user.Onboarded {
		status.NextStep = StepOnboarding
		return status
	}

	if user.Role == schema.RoleParent || user.Role == schema.RolePlayer {
		// Only one incomplete player is surfaced at a time, oldest first.
		for i := range supervised {
			if !supervised[i].Complete() {
				status.NextStep = StepPlayerSetup
				status.PlayerId = &supervised[i].Id
				return status
			}
		}
	}

	status.NextStep = StepDashboard
	return status
}

func (s *OnboardingService) supervisedPlayers(userId uuid.UUID) ([]schema.Player, error) {
	var players []schema.Player
	result := s.db.Order("created_at asc").Find(&players, "parent_user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error listing supervised players", "user_id", userId, "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return players, nil
}

func (s *OnboardingService) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var supervised []schema.Player
	if principal.User.Role == schema.RoleParent || principal.User.Role == schema.RolePlayer {
		var err error
		supervised, err = s.supervisedPlayers(principal.User.Id)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	utils.WriteJsonResponse(w, deriveStatus(&principal.User, supervised))
}

// checkCompletionAllowed enforces the required state order: verification
// cannot be skipped and the terminal state is never revisited.
func checkCompletionAllowed(user *schema.User, endpointRoles ...string) error {
	matched := false
	for _, role := range endpointRoles {
		if user.Role == role {
			matched = true
			break
		}
	}
	if !matched {
		return ReasonedError(ReasonWrongRoleEndpoint,
			fmt.Errorf("completion endpoint does not accept role %v", user.Role), http.StatusForbidden)
	}

	if !user.EmailVerified {
		return ReasonedError(ReasonValidation, errors.New("email must be verified before onboarding"), http.StatusBadRequest)
	}

	if user.Onboarded {
		return ReasonedError(ReasonAlreadyOnboarded, errors.New("onboarding is already complete"), http.StatusConflict)
	}

	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ReasonedError(ReasonValidation,
			fmt.Errorf("password must be at least %d characters", minPasswordLength), http.StatusBadRequest)
	}
	return nil
}

type staffOnboardingRequest struct {
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// CompleteStaff finishes onboarding for owner, admin, and coach accounts.
func (s *OnboardingService) CompleteStaff(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params staffOnboardingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := checkCompletionAllowed(&principal.User, schema.RoleOwner, schema.RoleAdmin, schema.RoleCoach); err != nil {
		writeError(w, err)
		return
	}

	if err := validatePassword(params.Password); err != nil {
		writeError(w, err)
		return
	}

	if err := s.completeUser(principal.User.Id, params.Password, params.Name, params.Phone, nil); err != nil {
		writeError(w, err)
		return
	}

	onboardingMetric.WithLabelValues(principal.User.Role).Inc()
	slog.Info("staff onboarding complete", "user_id", principal.User.Id, "role", principal.User.Role)

	utils.WriteSuccess(w)
}

type parentOnboardingRequest struct {
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (s *OnboardingService) CompleteParent(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params parentOnboardingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := checkCompletionAllowed(&principal.User, schema.RoleParent); err != nil {
		writeError(w, err)
		return
	}

	if err := validatePassword(params.Password); err != nil {
		writeError(w, err)
		return
	}

	if err := s.completeUser(principal.User.Id, params.Password, params.Name, params.Phone, nil); err != nil {
		writeError(w, err)
		return
	}

	onboardingMetric.WithLabelValues(schema.RoleParent).Inc()
	slog.Info("parent onboarding complete", "user_id", principal.User.Id)

	utils.WriteSuccess(w)
}

type playerOnboardingRequest struct {
	Password     string `json:"password"`
	Dob          string `json:"dob"`
	Gender       string `json:"gender"`
	DominantFoot string `json:"dominant_foot"`
}

// CompletePlayer finishes onboarding for a player-role account. The player
// profile fields are written to the supervised player row in the same
// transaction as the user update.
func (s *OnboardingService) CompletePlayer(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params playerOnboardingRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := checkCompletionAllowed(&principal.User, schema.RolePlayer); err != nil {
		writeError(w, err)
		return
	}

	if err := validatePassword(params.Password); err != nil {
		writeError(w, err)
		return
	}

	if params.Dob == "" || params.Gender == "" || params.DominantFoot == "" {
		writeError(w, ReasonedError(ReasonValidation,
			errors.New("dob, gender, and dominant_foot are required"), http.StatusBadRequest))
		return
	}

	dob, err := time.Parse("2006-01-02", params.Dob)
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation,
			fmt.Errorf("invalid dob '%v', expected YYYY-MM-DD", params.Dob), http.StatusBadRequest))
		return
	}

	playerFields := map[string]interface{}{
		"dob":           dob,
		"gender":        params.Gender,
		"dominant_foot": params.DominantFoot,
	}

	if err := s.completeUser(principal.User.Id, params.Password, "", "", playerFields); err != nil {
		writeError(w, err)
		return
	}

	onboardingMetric.WithLabelValues(schema.RolePlayer).Inc()
	slog.Info("player onboarding complete", "user_id", principal.User.Id)

	utils.WriteSuccess(w)
}

// completeUser applies the terminal onboarding transition. When playerFields
// is non-nil the supervised player row is updated in the same transaction.
func (s *OnboardingService) completeUser(userId uuid.UUID, password, name, phone string, playerFields map[string]interface{}) error {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return CodedError(fmt.Errorf("error encrypting password: %w", err), http.StatusInternalServerError)
	}

	return s.db.Transaction(func(txn *gorm.DB) error {
		userUpdates := map[string]interface{}{
			"password":  hashedPwd,
			"onboarded": true,
		}
		if name != "" {
			userUpdates["name"] = name
		}
		if phone != "" {
			userUpdates["phone"] = phone
		}

		result := txn.Model(&schema.User{Id: userId}).Updates(userUpdates)
		if result.Error != nil {
			slog.Error("sql error completing onboarding", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if playerFields != nil {
			var player schema.Player
			result := txn.Order("created_at asc").First(&player, "parent_user_id = ?", userId)
			if result.Error != nil {
				if errors.Is(result.Error, gorm.ErrRecordNotFound) {
					return ReasonedError(ReasonPlayerNotFound,
						errors.New("no player record is linked to this account"), http.StatusNotFound)
				}
				slog.Error("sql error finding supervised player", "user_id", userId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}

			result = txn.Model(&schema.Player{Id: player.Id}).Updates(playerFields)
			if result.Error != nil {
				slog.Error("sql error updating player profile", "player_id", player.Id, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})
}
