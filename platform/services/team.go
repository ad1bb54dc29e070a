package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"playerlab/platform/auth"
	"playerlab/platform/schema"
	"playerlab/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TeamService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
}

func (s *TeamService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAction(auth.ManageTeams))

		r.Post("/create", s.CreateTeam)
		r.Post("/{team_id}/coach/{user_id}", s.AssignCoach)
		r.Delete("/{team_id}/coach", s.UnassignCoach)
	})

	return r
}

type createTeamRequest struct {
	Name string `json:"name"`
}

type createTeamResponse struct {
	TeamId uuid.UUID `json:"team_id"`
}

func (s *TeamService) CreateTeam(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params createTeamRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("team name must be specified"), http.StatusBadRequest))
		return
	}

	newTeam := schema.Team{Id: uuid.New(), CompanyId: principal.CompanyId, Name: params.Name}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existingTeam schema.Team
		result := txn.Limit(1).Find(&existingTeam, "company_id = ? AND name = ?", principal.CompanyId, params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate team name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("team with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newTeam)
		if result.Error != nil {
			slog.Error("sql error creating new team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, createTeamResponse{TeamId: newTeam.Id})
}

// AssignCoach links a coach-role user from the same company to a team.
func (s *TeamService) AssignCoach(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		team, err := schema.GetTeam(teamId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTeamNotFound) {
				return ReasonedError(ReasonTeamNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if team.CompanyId != principal.CompanyId {
			return auth.Denied(auth.ReasonCrossTenant, "team belongs to a different company")
		}

		coach, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return ReasonedError(ReasonUserNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if coach.Role != schema.RoleCoach || coach.CompanyId == nil || *coach.CompanyId != principal.CompanyId {
			return ReasonedError(ReasonValidation,
				errors.New("assigned user must be a coach of the same company"), http.StatusUnprocessableEntity)
		}

		result := txn.Model(&schema.Team{Id: teamId}).Update("coach_id", coach.Id)
		if result.Error != nil {
			slog.Error("sql error assigning coach", "team_id", teamId, "user_id", userId, "error", result.Error)
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

func (s *TeamService) UnassignCoach(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	team, err := schema.GetTeam(teamId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
			writeError(w, ReasonedError(ReasonTeamNotFound, err, http.StatusNotFound))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}
	if team.CompanyId != principal.CompanyId {
		writeError(w, auth.Denied(auth.ReasonCrossTenant, "team belongs to a different company"))
		return
	}

	result := s.db.Model(&schema.Team{Id: teamId}).Update("coach_id", nil)
	if result.Error != nil {
		slog.Error("sql error unassigning coach", "team_id", teamId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}

type TeamInfo struct {
	Id      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	CoachId *uuid.UUID `json:"coach_id,omitempty"`
}

func (s *TeamService) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var teams []schema.Team
	var result *gorm.DB
	switch principal.User.Role {
	case schema.RoleCoach:
		result = s.db.Order("created_at asc").
			Find(&teams, "company_id = ? AND coach_id = ?", principal.CompanyId, principal.User.Id)
	case schema.RoleParent, schema.RolePlayer:
		result = s.db.Order("teams.created_at asc").
			Joins("JOIN players ON players.team_id = teams.id").
			Where("players.parent_user_id = ?", principal.User.Id).
			Distinct().
			Find(&teams)
	default:
		result = s.db.Order("created_at asc").Find(&teams, "company_id = ?", principal.CompanyId)
	}

	if result.Error != nil {
		slog.Error("sql error listing teams", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	infos := make([]TeamInfo, 0, len(teams))
	for _, team := range teams {
		infos = append(infos, TeamInfo{Id: team.Id, Name: team.Name, CoachId: team.CoachId})
	}

	utils.WriteJsonResponse(w, infos)
}
