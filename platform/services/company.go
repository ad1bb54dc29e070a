package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"playerlab/platform/auth"
	"playerlab/platform/email"
	"playerlab/platform/schema"
	"playerlab/platform/storage"
	"playerlab/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CompanyService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
	email    email.Sender
	storage  storage.Storage
}

func (s *CompanyService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.Get("/", s.Info)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAction(auth.EditCompany))

		r.Post("/update", s.Update)
		r.Post("/logo", s.UploadLogo)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAction(auth.ManageMembers))

		r.Post("/members", s.CreateMember)
		r.Post("/members/{user_id}", s.UpdateMember)
		r.Post("/members/{user_id}/resend-invite", s.ResendInvite)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(schema.RoleOwner))

		r.Get("/admins", s.ListAdmins)
		r.Post("/transfer-ownership", s.TransferOwnership)
	})

	return r
}

type CompanyInfo struct {
	Id      uuid.UUID `json:"id"`
	OwnerId uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
	LogoUrl string    `json:"logo_url,omitempty"`
	Website string    `json:"website,omitempty"`
}

func (s *CompanyService) Info(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	if err := auth.Authorize(principal, auth.ViewCompany, auth.TenantTarget(principal.CompanyId)); err != nil {
		writeError(w, err)
		return
	}

	company, err := schema.GetCompany(principal.CompanyId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrCompanyNotFound) {
			writeError(w, ReasonedError(ReasonCompanyNotFound, err, http.StatusNotFound))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	utils.WriteJsonResponse(w, CompanyInfo{
		Id: company.Id, OwnerId: company.OwnerId,
		Name: company.Name, LogoUrl: company.LogoUrl, Website: company.Website,
	})
}

type updateCompanyRequest struct {
	Name    string `json:"name"`
	Website string `json:"website"`
}

func (s *CompanyService) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params updateCompanyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	updates := map[string]interface{}{}
	if params.Name != "" {
		updates["name"] = params.Name
	}
	if params.Website != "" {
		updates["website"] = params.Website
	}
	if len(updates) == 0 {
		writeError(w, ReasonedError(ReasonValidation, errors.New("no fields to update"), http.StatusBadRequest))
		return
	}

	result := s.db.Model(&schema.Company{Id: principal.CompanyId}).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating company", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}

const maxLogoSize = 5 << 20

type uploadLogoResponse struct {
	LogoUrl string `json:"logo_url"`
}

func (s *CompanyService) UploadLogo(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxLogoSize); err != nil {
		writeError(w, ReasonedError(ReasonValidation, fmt.Errorf("error parsing upload: %w", err), http.StatusBadRequest))
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, errors.New("missing 'logo' file field"), http.StatusBadRequest))
		return
	}
	defer file.Close()

	company, err := schema.GetCompany(principal.CompanyId, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	path := fmt.Sprintf("logos/%v%v", principal.CompanyId, filepath.Ext(header.Filename))
	url, err := s.storage.Put(path, file)
	if err != nil {
		slog.Error("error storing company logo", "company_id", principal.CompanyId, "error", err)
		writeError(w, CodedError(errors.New("error storing logo"), http.StatusInternalServerError))
		return
	}

	// A new file extension leaves the previous object behind; remove it so
	// the store holds at most one logo per company.
	if company.LogoUrl != "" && company.LogoUrl != url {
		oldPath := fmt.Sprintf("logos/%v%v", principal.CompanyId, filepath.Ext(company.LogoUrl))
		if err := s.storage.Delete(oldPath); err != nil {
			slog.Error("error removing replaced logo", "company_id", principal.CompanyId, "error", err)
		}
	}

	result := s.db.Model(&schema.Company{Id: principal.CompanyId}).Update("logo_url", url)
	if result.Error != nil {
		slog.Error("sql error updating company logo url", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteJsonResponse(w, uploadLogoResponse{LogoUrl: url})
}

func generateTempPassword() (string, error) {
	raw := make([]byte, 9)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("error generating temporary password: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

type createMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type createMemberResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

// CreateMember provisions an admin, coach, parent, or player account inside
// the tenant and sends the invitation email. Delivery is required for the
// operation's meaning: the invitee cannot learn the temporary password any
// other way, so a send failure fails the whole request.
func (s *CompanyService) CreateMember(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params createMemberRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" || params.Email == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("name and email are required"), http.StatusBadRequest))
		return
	}
	if !schema.ValidRole(params.Role) || params.Role == schema.RoleOwner {
		writeError(w, ReasonedError(ReasonValidation,
			fmt.Errorf("role must be one of admin, coach, parent, player"), http.StatusBadRequest))
		return
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(tempPassword), 10)
	if err != nil {
		writeError(w, CodedError(fmt.Errorf("error encrypting password: %w", err), http.StatusInternalServerError))
		return
	}

	companyId := principal.CompanyId
	newUser := schema.User{
		Id:             uuid.New(),
		Email:          params.Email,
		Name:           params.Name,
		Phone:          params.Phone,
		Password:       hashedPwd,
		Role:           params.Role,
		CompanyId:      &companyId,
		SelfSupervised: params.Role == schema.RolePlayer,
	}

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
			slog.Error("sql error creating member", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	company, err := schema.GetCompany(principal.CompanyId, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	if err := s.email.SendInviteEmail(newUser.Email, newUser.Name, company.Name, tempPassword); err != nil {
		slog.Error("error sending invite email", "user_id", newUser.Id, "error", err)
		writeError(w, ReasonedError(ReasonEmailDelivery, errors.New("unable to deliver invitation email"), http.StatusInternalServerError))
		return
	}

	slog.Info("member created", "user_id", newUser.Id, "role", newUser.Role, "company_id", principal.CompanyId)

	utils.WriteJsonResponse(w, createMemberResponse{UserId: newUser.Id})
}

type updateMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

func shortEmailHash(address string) string {
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:8])
}

func (s *CompanyService) UpdateMember(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	var params updateMemberRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Role != "" && (!schema.ValidRole(params.Role) || params.Role == schema.RoleOwner) {
		writeError(w, ReasonedError(ReasonValidation,
			errors.New("role must be one of admin, coach, parent, player"), http.StatusBadRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		target, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return ReasonedError(ReasonUserNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if target.CompanyId == nil || *target.CompanyId != principal.CompanyId {
			return auth.Denied(auth.ReasonCrossTenant, "member belongs to a different company")
		}

		// An admin may not edit the owner; changing an owner's role at all is
		// reserved for the transfer-ownership flow.
		if target.Role == schema.RoleOwner {
			if principal.User.Role != schema.RoleOwner {
				return ReasonedError(ReasonAdminCannotEditOwner,
					errors.New("admins cannot edit the company owner"), http.StatusForbidden)
			}
			if params.Role != "" {
				return ReasonedError(ReasonValidation,
					errors.New("owner role can only change via ownership transfer"), http.StatusBadRequest)
			}
		}

		updates := map[string]interface{}{}
		if params.Name != "" {
			updates["name"] = params.Name
		}
		if params.Phone != "" {
			updates["phone"] = params.Phone
		}
		if params.Role != "" {
			updates["role"] = params.Role
		}
		if params.Email != "" && params.Email != target.Email {
			var existing schema.User
			result := txn.Limit(1).Find(&existing, "email = ?", params.Email)
			if result.Error != nil {
				slog.Error("sql error checking for existing email", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if result.RowsAffected != 0 {
				return ReasonedError(ReasonEmailInUse, auth.ErrEmailAlreadyInUse, http.StatusConflict)
			}

			// An address change re-triggers verification; the short hash marks
			// the pending change.
			updates["email"] = params.Email
			updates["email_verified"] = false
			updates["password_reset_code"] = shortEmailHash(params.Email)
		}

		if len(updates) == 0 {
			return ReasonedError(ReasonValidation, errors.New("no fields to update"), http.StatusBadRequest)
		}

		// A team's coach_id must always reference a coach-role user, so
		// demoting a coach strips their assignments the same way account
		// deletion does.
		if params.Role != "" && params.Role != schema.RoleCoach && target.Role == schema.RoleCoach {
			result := txn.Model(&schema.Team{}).Where("coach_id = ?", target.Id).Update("coach_id", nil)
			if result.Error != nil {
				slog.Error("sql error clearing coach assignments", "user_id", target.Id, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		result := txn.Model(&schema.User{Id: userId}).Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating member", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteSuccess(w)
}

// ResendInvite rotates the member's temporary password and re-sends the
// invitation. The rotation happens before delivery is confirmed; if delivery
// fails the account holds a credential the invitee never received.
func (s *CompanyService) ResendInvite(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	target, err := schema.GetUser(userId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			writeError(w, ReasonedError(ReasonUserNotFound, err, http.StatusNotFound))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	if target.CompanyId == nil || *target.CompanyId != principal.CompanyId {
		writeError(w, auth.Denied(auth.ReasonCrossTenant, "member belongs to a different company"))
		return
	}

	if target.Onboarded {
		writeError(w, ReasonedError(ReasonAlreadyOnboarded,
			errors.New("member has already completed onboarding"), http.StatusConflict))
		return
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(tempPassword), 10)
	if err != nil {
		writeError(w, CodedError(fmt.Errorf("error encrypting password: %w", err), http.StatusInternalServerError))
		return
	}

	result := s.db.Model(&schema.User{Id: userId}).Update("password", hashedPwd)
	if result.Error != nil {
		slog.Error("sql error rotating invite password", "user_id", userId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	company, err := schema.GetCompany(principal.CompanyId, s.db)
	if err != nil {
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	if err := s.email.SendInviteEmail(target.Email, target.Name, company.Name, tempPassword); err != nil {
		slog.Error("error re-sending invite email", "user_id", userId, "error", err)
		writeError(w, ReasonedError(ReasonEmailDelivery, errors.New("unable to deliver invitation email"), http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}

type AdminInfo struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (s *CompanyService) ListAdmins(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	if err := checkCompanyExists(s.db, principal.CompanyId); err != nil {
		writeError(w, err)
		return
	}

	var admins []schema.User
	result := s.db.Order("created_at asc").
		Find(&admins, "company_id = ? AND role = ?", principal.CompanyId, schema.RoleAdmin)
	if result.Error != nil {
		slog.Error("sql error listing company admins", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	infos := make([]AdminInfo, 0, len(admins))
	for _, admin := range admins {
		infos = append(infos, AdminInfo{Id: admin.Id, Name: admin.Name, Email: admin.Email})
	}

	utils.WriteJsonResponse(w, infos)
}

type transferOwnershipRequest struct {
	NewOwnerId uuid.UUID `json:"new_owner_id"`
}

// TransferOwnership atomically moves the owner designation. Ownership can
// only pass to an existing admin of the same company; all three row updates
// commit together or not at all, since the two roles use different tenant
// resolution paths and the graph must stay consistent through both.
func (s *CompanyService) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	if err := auth.Authorize(principal, auth.TransferOwnership, auth.TenantTarget(principal.CompanyId)); err != nil {
		writeError(w, err)
		return
	}

	var params transferOwnershipRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		company, err := schema.GetCompany(principal.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrCompanyNotFound) {
				return ReasonedError(ReasonCompanyNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		newOwner, err := schema.GetUser(params.NewOwnerId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return ReasonedError(ReasonNewOwnerNotAdmin,
					errors.New("new owner must be an existing admin of the company"), http.StatusUnprocessableEntity)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if newOwner.Role != schema.RoleAdmin || newOwner.CompanyId == nil || *newOwner.CompanyId != company.Id {
			return ReasonedError(ReasonNewOwnerNotAdmin,
				errors.New("new owner must be an existing admin of the company"), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&schema.Company{Id: company.Id}).Update("owner_id", newOwner.Id)
		if result.Error != nil {
			slog.Error("sql error updating company owner", "company_id", company.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// The former owner stays addressable via the plain company_id path.
		result = txn.Model(&schema.User{Id: principal.User.Id}).
			Updates(map[string]interface{}{"role": schema.RoleAdmin, "company_id": company.Id})
		if result.Error != nil {
			slog.Error("sql error demoting former owner", "user_id", principal.User.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.User{Id: newOwner.Id}).Update("role", schema.RoleOwner)
		if result.Error != nil {
			slog.Error("sql error promoting new owner", "user_id", newOwner.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	ownershipTransferMetric.Inc()
	slog.Info("ownership transferred", "company_id", principal.CompanyId,
		"former_owner", principal.User.Id, "new_owner", params.NewOwnerId)

	utils.WriteSuccess(w)
}
