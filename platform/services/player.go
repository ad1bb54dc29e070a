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
	"gorm.io/gorm"
)

type PlayerService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
}

func (s *PlayerService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.Get("/list", s.List)
	r.Post("/{player_id}", s.UpdatePlayer)

	r.With(auth.RequireAction(auth.ManageMembers)).Post("/create", s.CreatePlayer)

	return r
}

type createPlayerRequest struct {
	TeamId       uuid.UUID `json:"team_id"`
	ParentUserId uuid.UUID `json:"parent_user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Dob          string    `json:"dob"`
	AgeGroup     string    `json:"age_group"`
	Gender       string    `json:"gender"`
	DominantFoot string    `json:"dominant_foot"`
	Notes        string    `json:"notes"`
}

type createPlayerResponse struct {
	PlayerId uuid.UUID `json:"player_id"`
}

// CreatePlayer adds a player record to a team, linked to the supervising
// account (a parent, or the player's own self-supervised account).
func (s *PlayerService) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params createPlayerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.FirstName == "" || params.LastName == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("first_name and last_name are required"), http.StatusBadRequest))
		return
	}

	var dob *time.Time
	if params.Dob != "" {
		parsed, err := time.Parse("2006-01-02", params.Dob)
		if err != nil {
			writeError(w, ReasonedError(ReasonValidation,
				fmt.Errorf("invalid dob '%v', expected YYYY-MM-DD", params.Dob), http.StatusBadRequest))
			return
		}
		dob = &parsed
	}

	newPlayer := schema.Player{
		Id:           uuid.New(),
		TeamId:       params.TeamId,
		ParentUserId: params.ParentUserId,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Dob:          dob,
		AgeGroup:     params.AgeGroup,
		Gender:       params.Gender,
		DominantFoot: params.DominantFoot,
		Notes:        params.Notes,
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		team, err := schema.GetTeam(params.TeamId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTeamNotFound) {
				return ReasonedError(ReasonTeamNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if team.CompanyId != principal.CompanyId {
			return auth.Denied(auth.ReasonCrossTenant, "team belongs to a different company")
		}

		supervisor, err := schema.GetUser(params.ParentUserId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return ReasonedError(ReasonUserNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if supervisor.Role != schema.RoleParent && supervisor.Role != schema.RolePlayer {
			return ReasonedError(ReasonValidation,
				errors.New("supervising account must have role parent or player"), http.StatusUnprocessableEntity)
		}
		if supervisor.CompanyId == nil || *supervisor.CompanyId != principal.CompanyId {
			return auth.Denied(auth.ReasonCrossTenant, "supervising account belongs to a different company")
		}

		result := txn.Create(&newPlayer)
		if result.Error != nil {
			slog.Error("sql error creating player", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, createPlayerResponse{PlayerId: newPlayer.Id})
}

type PlayerInfo struct {
	Id           uuid.UUID `json:"id"`
	TeamId       uuid.UUID `json:"team_id"`
	ParentUserId uuid.UUID `json:"parent_user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Dob          *string   `json:"dob,omitempty"`
	Age          *int      `json:"age,omitempty"`
	AgeGroup     string    `json:"age_group,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	DominantFoot string    `json:"dominant_foot,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Complete     bool      `json:"complete"`
}

func convertToPlayerInfo(player *schema.Player) PlayerInfo {
	info := PlayerInfo{
		Id:           player.Id,
		TeamId:       player.TeamId,
		ParentUserId: player.ParentUserId,
		FirstName:    player.FirstName,
		LastName:     player.LastName,
		Age:          player.Age(time.Now().UTC()),
		AgeGroup:     player.AgeGroup,
		Gender:       player.Gender,
		DominantFoot: player.DominantFoot,
		Notes:        player.Notes,
		Complete:     player.Complete(),
	}
	if player.Dob != nil {
		dob := player.Dob.Format("2006-01-02")
		info.Dob = &dob
	}
	return info
}

// List returns the players visible to the principal: every player in the
// company for owners/admins, players on coached teams for coaches, and
// supervised players for parents and player accounts.
func (s *PlayerService) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var players []schema.Player
	var result *gorm.DB
	switch principal.User.Role {
	case schema.RoleOwner, schema.RoleAdmin:
		result = s.db.Order("players.created_at asc").
			Joins("JOIN teams ON teams.id = players.team_id").
			Where("teams.company_id = ?", principal.CompanyId).
			Find(&players)
	case schema.RoleCoach:
		result = s.db.Order("players.created_at asc").
			Joins("JOIN teams ON teams.id = players.team_id").
			Where("teams.coach_id = ?", principal.User.Id).
			Find(&players)
	default:
		result = s.db.Order("created_at asc").Find(&players, "parent_user_id = ?", principal.User.Id)
	}

	if result.Error != nil {
		slog.Error("sql error listing players", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	infos := make([]PlayerInfo, 0, len(players))
	for i := range players {
		infos = append(infos, convertToPlayerInfo(&players[i]))
	}

	utils.WriteJsonResponse(w, infos)
}

type updatePlayerRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Dob          string `json:"dob"`
	AgeGroup     string `json:"age_group"`
	Gender       string `json:"gender"`
	DominantFoot string `json:"dominant_foot"`
	Notes        string `json:"notes"`
}

func (s *PlayerService) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	playerId, err := utils.URLParamUUID(r, "player_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	var params updatePlayerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	player, err := schema.GetPlayer(playerId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrPlayerNotFound) {
			writeError(w, ReasonedError(ReasonPlayerNotFound, err, http.StatusNotFound))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	target := auth.Target{
		CompanyId:    player.Team.CompanyId,
		SupervisorId: &player.ParentUserId,
		CoachId:      player.Team.CoachId,
	}
	if err := auth.Authorize(principal, auth.EditPlayer, target); err != nil {
		writeError(w, err)
		return
	}

	updates := map[string]interface{}{}
	if params.FirstName != "" {
		updates["first_name"] = params.FirstName
	}
	if params.LastName != "" {
		updates["last_name"] = params.LastName
	}
	if params.Dob != "" {
		dob, err := time.Parse("2006-01-02", params.Dob)
		if err != nil {
			writeError(w, ReasonedError(ReasonValidation,
				fmt.Errorf("invalid dob '%v', expected YYYY-MM-DD", params.Dob), http.StatusBadRequest))
			return
		}
		updates["dob"] = dob
	}
	if params.AgeGroup != "" {
		updates["age_group"] = params.AgeGroup
	}
	if params.Gender != "" {
		updates["gender"] = params.Gender
	}
	if params.DominantFoot != "" {
		updates["dominant_foot"] = params.DominantFoot
	}
	if params.Notes != "" {
		updates["notes"] = params.Notes
	}

	if len(updates) == 0 {
		writeError(w, ReasonedError(ReasonValidation, errors.New("no fields to update"), http.StatusBadRequest))
		return
	}

	result := s.db.Model(&schema.Player{Id: playerId}).Updates(updates)
	if result.Error != nil {
		slog.Error("sql error updating player", "player_id", playerId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}
