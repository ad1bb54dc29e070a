package services

import (
	"errors"
	"log/slog"
	"net/http"
	"playerlab/platform/auth"
	"playerlab/platform/schema"
	"playerlab/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reason codes for lifecycle and validation failures. Authorization denial
// reasons live in the auth package.
const (
	ReasonValidation           = "VALIDATION_ERROR"
	ReasonInvalidCode          = "INVALID_CODE"
	ReasonAlreadyVerified      = "ALREADY_VERIFIED"
	ReasonAlreadyOnboarded     = "ALREADY_ONBOARDED"
	ReasonWrongRoleEndpoint    = "WRONG_ROLE_ENDPOINT"
	ReasonCannotDeleteOwner    = "CANNOT_DELETE_OWNER"
	ReasonNewOwnerNotAdmin     = "NEW_OWNER_NOT_ADMIN"
	ReasonAdminCannotEditOwner = "ADMIN_CANNOT_EDIT_OWNER"
	ReasonUserNotFound         = "USER_NOT_FOUND"
	ReasonCompanyNotFound      = "COMPANY_NOT_FOUND"
	ReasonPlayerNotFound       = "PLAYER_NOT_FOUND"
	ReasonTeamNotFound         = "TEAM_NOT_FOUND"
	ReasonEmailInUse           = "EMAIL_IN_USE"
	ReasonEmailDelivery        = "EMAIL_DELIVERY_FAILED"
	ReasonInternal             = "INTERNAL_ERROR"
)

type codedError struct {
	err    error
	code   int
	reason string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code, reason: ReasonInternal}
}

// ReasonedError attaches both an HTTP status and a stable reason code that is
// surfaced verbatim in the response body.
func ReasonedError(reason string, err error, code int) error {
	return &codedError{err: err, code: code, reason: reason}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

func GetReason(err error) string {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.reason
	}
	if reason := auth.DenialReason(err); reason != "" {
		return reason
	}
	return ReasonInternal
}

// writeError writes the structured {error, details} body for any service
// error, mapping auth denials to 403.
func writeError(w http.ResponseWriter, err error) {
	var derr *auth.DeniedError
	if errors.As(err, &derr) {
		utils.WriteErrorJson(w, http.StatusForbidden, derr.Reason, derr.Message)
		return
	}
	utils.WriteErrorJson(w, GetResponseCode(err), GetReason(err), err.Error())
}

func checkCompanyExists(txn *gorm.DB, companyId uuid.UUID) error {
	if _, err := schema.GetCompany(companyId, txn); err != nil {
		if errors.Is(err, schema.ErrCompanyNotFound) {
			return ReasonedError(ReasonCompanyNotFound, err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

// getPrincipal pulls the resolved principal from the request context; failure
// means the auth middleware did not run, which is a server fault.
func getPrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, err := auth.PrincipalFromContext(r)
	if err != nil {
		utils.WriteErrorJson(w, http.StatusInternalServerError, ReasonInternal, err.Error())
		return auth.Principal{}, false
	}
	return principal, true
}
