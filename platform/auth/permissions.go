package auth

import (
	"errors"
	"fmt"
	"net/http"
	"playerlab/platform/schema"
	"playerlab/utils"

	"github.com/google/uuid"
)

// Stable denial reason codes. Callers surface these as 401/403 without
// leaking which check failed beyond the code itself.
const (
	ReasonNotAuthenticated = "NOT_AUTHENTICATED"
	ReasonWrongRole        = "WRONG_ROLE"
	ReasonCrossTenant      = "CROSS_TENANT"
	ReasonNotOwnerOfRecord = "NOT_OWNER_OF_RECORD"
	ReasonTenantNotFound   = "TENANT_NOT_FOUND"
)

type DeniedError struct {
	Reason  string
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v: %v", e.Reason, e.Message)
}

func Denied(reason, message string) error {
	return &DeniedError{Reason: reason, Message: message}
}

func DenialReason(err error) string {
	var derr *DeniedError
	if errors.As(err, &derr) {
		return derr.Reason
	}
	return ""
}

// ErrTenantNotFound indicates a user row that resolves to no company by
// either lookup path. This is a data integrity fault, not a client error.
var ErrTenantNotFound = errors.New("user does not resolve to any company")

type Action string

const (
	ViewCompany       Action = "view-company"
	EditCompany       Action = "edit-company"
	ManageMembers     Action = "manage-members"
	ManageTeams       Action = "manage-teams"
	ManageCurriculum  Action = "manage-curriculum"
	ViewCurriculum    Action = "view-curriculum"
	ViewPlayers       Action = "view-players"
	EditPlayer        Action = "edit-player"
	RecordEvaluation  Action = "record-evaluation"
	ViewEvaluation    Action = "view-evaluation"
	TransferOwnership Action = "transfer-ownership"
	DeleteOwnAccount  Action = "delete-own-account"
)

// rolePermissions is the single declarative role -> allowed actions table.
// There is no inheritance between roles; every grant is listed explicitly.
var rolePermissions = map[string]map[Action]bool{
	schema.RoleOwner: {
		ViewCompany: true, EditCompany: true, ManageMembers: true,
		ManageTeams: true, ManageCurriculum: true, ViewCurriculum: true,
		ViewPlayers: true, EditPlayer: true,
		RecordEvaluation: true, ViewEvaluation: true,
		TransferOwnership: true,
	},
	schema.RoleAdmin: {
		ViewCompany: true, EditCompany: true, ManageMembers: true,
		ManageTeams: true, ManageCurriculum: true, ViewCurriculum: true,
		ViewPlayers: true, EditPlayer: true,
		RecordEvaluation: true, ViewEvaluation: true,
		DeleteOwnAccount: true,
	},
	schema.RoleCoach: {
		ViewCompany: true, ManageCurriculum: true, ViewCurriculum: true,
		ViewPlayers: true, EditPlayer: true,
		RecordEvaluation: true, ViewEvaluation: true,
		DeleteOwnAccount: true,
	},
	schema.RoleParent: {
		ViewCompany: true, ViewPlayers: true, EditPlayer: true,
		ViewEvaluation: true, DeleteOwnAccount: true,
	},
	schema.RolePlayer: {
		ViewCompany: true, ViewPlayers: true, EditPlayer: true,
		ViewEvaluation: true, DeleteOwnAccount: true,
	},
}

// Principal is the acting user with its tenant already resolved.
type Principal struct {
	User      schema.User
	CompanyId uuid.UUID
}

// Target carries the attribution of the entity an action applies to. Higher
// layers fetch the rows needed to populate it; Authorize itself is pure.
type Target struct {
	CompanyId uuid.UUID

	// SupervisorId is the owning user of a record-scoped target: the
	// supervising account of a player row, or the author of a curriculum.
	SupervisorId *uuid.UUID

	// CoachId is the coach of the team a team-scoped target belongs to.
	CoachId *uuid.UUID
}

func TenantTarget(companyId uuid.UUID) Target {
	return Target{CompanyId: companyId}
}

// recordScoped lists the actions a parent or player principal may perform on
// records they supervise even though they hold no tenant-wide grant.
func recordScoped(action Action) bool {
	switch action {
	case ViewPlayers, EditPlayer, ViewEvaluation:
		return true
	}
	return false
}

// Authorize decides whether principal may perform action on target. It is a
// pure decision function over already fetched state; it performs no reads and
// has no side effects.
func Authorize(principal Principal, action Action, target Target) error {
	allowed, ok := rolePermissions[principal.User.Role]
	if !ok || !allowed[action] {
		return Denied(ReasonWrongRole, fmt.Sprintf("role %v may not perform %v", principal.User.Role, action))
	}

	if target.CompanyId != uuid.Nil && target.CompanyId != principal.CompanyId {
		return Denied(ReasonCrossTenant, "target belongs to a different company")
	}

	switch principal.User.Role {
	case schema.RoleCoach:
		// Coaches are restricted to teams they coach and records they authored.
		switch action {
		case ViewPlayers, EditPlayer, RecordEvaluation, ViewEvaluation:
			if target.CoachId == nil || *target.CoachId != principal.User.Id {
				return Denied(ReasonNotOwnerOfRecord, "coach is not assigned to this team")
			}
		case ManageCurriculum:
			if target.SupervisorId != nil && *target.SupervisorId != principal.User.Id {
				return Denied(ReasonNotOwnerOfRecord, "coach did not author this curriculum")
			}
		}
	case schema.RoleParent, schema.RolePlayer:
		if recordScoped(action) {
			if target.SupervisorId == nil || *target.SupervisorId != principal.User.Id {
				return Denied(ReasonNotOwnerOfRecord, "record is not supervised by this account")
			}
		}
	}

	return nil
}

// RequireAction gates a route on a tenant-level action. Record-scoped actions
// are checked inside handlers after the target rows are fetched.
func RequireAction(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			principal, err := PrincipalFromContext(r)
			if err != nil {
				utils.WriteErrorJson(w, http.StatusUnauthorized, ReasonNotAuthenticated, err.Error())
				return
			}

			if err := Authorize(principal, action, TenantTarget(principal.CompanyId)); err != nil {
				utils.WriteErrorJson(w, http.StatusForbidden, DenialReason(err), err.Error())
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// RequireRole gates a route on the principal holding one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			principal, err := PrincipalFromContext(r)
			if err != nil {
				utils.WriteErrorJson(w, http.StatusUnauthorized, ReasonNotAuthenticated, err.Error())
				return
			}

			for _, role := range roles {
				if principal.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			utils.WriteErrorJson(w, http.StatusForbidden, ReasonWrongRole,
				fmt.Sprintf("role %v may not access this endpoint", principal.User.Role))
		}
		return http.HandlerFunc(hfn)
	}
}
