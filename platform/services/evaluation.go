package services

import (
	"encoding/json"
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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EvaluationService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
}

func (s *EvaluationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.Post("/create", s.CreateEvaluation)
	r.Get("/list", s.List)
	r.Get("/player/{player_id}/latest", s.LatestForPlayer)

	return r
}

// attemptGroups maps each repeated-attempt field prefix to the number of
// attempts recorded for it. Raw score records store attempts under keys like
// "sprint_1" .. "sprint_3"; attempts a player did not perform are absent.
var attemptGroups = map[string]int{
	"power_strong":  4,
	"power_weak":    4,
	"juggling":      4,
	"passing":       4,
	"dribbling":     4,
	"shooting":      4,
	"sprint":        3,
	"agility":       3,
	"onevone_round": 6,
}

type AttemptGroupStats struct {
	Attempts []*float64 `json:"attempts"`
	Average  *float64   `json:"average,omitempty"`
	Max      *float64   `json:"max,omitempty"`
	Total    *float64   `json:"total,omitempty"`
}

// aggregateAttemptGroups derives per-group statistics from a raw score
// record. Absent attempts are excluded from the statistics, but a recorded
// zero counts. A group with no valid attempts keeps its attempt slots but
// carries no derived fields.
func aggregateAttemptGroups(record map[string]*float64) map[string]AttemptGroupStats {
	groups := make(map[string]AttemptGroupStats, len(attemptGroups))
	for prefix, n := range attemptGroups {
		stats := AttemptGroupStats{Attempts: make([]*float64, n)}
		var sum, max float64
		valid := 0
		for i := 0; i < n; i++ {
			value, ok := record[fmt.Sprintf("%s_%d", prefix, i+1)]
			if !ok || value == nil {
				continue
			}
			stats.Attempts[i] = value
			sum += *value
			if valid == 0 || *value > max {
				max = *value
			}
			valid++
		}
		if valid > 0 {
			avg := sum / float64(valid)
			total := sum
			maxCopy := max
			stats.Average = &avg
			stats.Max = &maxCopy
			stats.Total = &total
		}
		groups[prefix] = stats
	}
	return groups
}

type createEvaluationRequest struct {
	TeamId uuid.UUID                  `json:"team_id"`
	Name   string                     `json:"name"`
	Scores map[string]json.RawMessage `json:"scores"`
}

type createEvaluationResponse struct {
	EvaluationId uuid.UUID `json:"evaluation_id"`
}

// CreateEvaluation records a named evaluation cycle for a team. The raw score
// records are stored append-only, and one PlayerEvaluation row is created per
// scored player in the same transaction.
func (s *EvaluationService) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params createEvaluationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("name is required"), http.StatusBadRequest))
		return
	}
	if len(params.Scores) == 0 {
		writeError(w, ReasonedError(ReasonValidation, errors.New("scores must contain at least one player"), http.StatusBadRequest))
		return
	}

	playerIds := make([]uuid.UUID, 0, len(params.Scores))
	for key := range params.Scores {
		playerId, err := uuid.Parse(key)
		if err != nil {
			writeError(w, ReasonedError(ReasonValidation,
				fmt.Errorf("score key '%v' is not a player id", key), http.StatusBadRequest))
			return
		}
		playerIds = append(playerIds, playerId)
	}

	scoresJson, err := json.Marshal(params.Scores)
	if err != nil {
		writeError(w, CodedError(fmt.Errorf("error encoding scores: %w", err), http.StatusBadRequest))
		return
	}

	newEvaluation := schema.Evaluation{
		Id:     uuid.New(),
		TeamId: params.TeamId,
		Name:   params.Name,
		Scores: datatypes.JSON(scoresJson),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		team, err := schema.GetTeam(params.TeamId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTeamNotFound) {
				return ReasonedError(ReasonTeamNotFound, err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		target := auth.Target{CompanyId: team.CompanyId, CoachId: team.CoachId}
		if err := auth.Authorize(principal, auth.RecordEvaluation, target); err != nil {
			return err
		}

		var count int64
		result := txn.Model(&schema.Player{}).Where("id IN ? AND team_id = ?", playerIds, team.Id).Count(&count)
		if result.Error != nil {
			slog.Error("sql error checking evaluation players", "team_id", team.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if int(count) != len(playerIds) {
			return ReasonedError(ReasonPlayerNotFound,
				errors.New("scores reference players not on this team"), http.StatusUnprocessableEntity)
		}

		if result := txn.Create(&newEvaluation); result.Error != nil {
			slog.Error("sql error creating evaluation", "team_id", team.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		now := time.Now().UTC()
		for _, playerId := range playerIds {
			playerEval := schema.PlayerEvaluation{
				Id:           uuid.New(),
				EvaluationId: newEvaluation.Id,
				PlayerId:     playerId,
				CreatedAt:    now,
			}
			if result := txn.Create(&playerEval); result.Error != nil {
				slog.Error("sql error creating player evaluation", "player_id", playerId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})

	if err != nil {
		writeError(w, err)
		return
	}

	evaluationMetric.Inc()

	utils.WriteJsonResponse(w, createEvaluationResponse{EvaluationId: newEvaluation.Id})
}

type EvaluationInfo struct {
	Id        uuid.UUID `json:"id"`
	TeamId    uuid.UUID `json:"team_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the evaluation cycles recorded for a team, newest first.
func (s *EvaluationService) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	teamId, err := uuid.Parse(r.URL.Query().Get("team_id"))
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, errors.New("team_id query param is required"), http.StatusBadRequest))
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

	target := auth.Target{CompanyId: team.CompanyId, CoachId: team.CoachId}
	if err := auth.Authorize(principal, auth.ViewEvaluation, target); err != nil {
		writeError(w, err)
		return
	}

	var evaluations []schema.Evaluation
	result := s.db.Order("created_at desc").Find(&evaluations, "team_id = ?", teamId)
	if result.Error != nil {
		slog.Error("sql error listing evaluations", "team_id", teamId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	infos := make([]EvaluationInfo, 0, len(evaluations))
	for _, eval := range evaluations {
		infos = append(infos, EvaluationInfo{Id: eval.Id, TeamId: eval.TeamId, Name: eval.Name, CreatedAt: eval.CreatedAt})
	}

	utils.WriteJsonResponse(w, infos)
}

type PlayerDnaView struct {
	PowerStrength     float64 `json:"power_strength"`
	TechniqueControl  float64 `json:"technique_control"`
	MobilityStability float64 `json:"mobility_stability"`
	DecisionCognition float64 `json:"decision_cognition"`
}

type PlayerEvaluationView struct {
	EvaluationId  uuid.UUID                    `json:"evaluation_id"`
	Name          string                       `json:"name"`
	CreatedAt     time.Time                    `json:"created_at"`
	RawScores     map[string]*float64          `json:"raw_scores"`
	AttemptGroups map[string]AttemptGroupStats `json:"attempt_groups"`
	TestScores    *json.RawMessage             `json:"test_scores"`
	OverallScores *json.RawMessage             `json:"overall_scores"`
	Dna           *PlayerDnaView               `json:"dna"`
	Cluster       *string                      `json:"cluster"`
}

// LatestForPlayer returns the composed view of a player's most recent
// evaluation. The derived score rows are produced out of band, so any of them
// may not exist yet; absent rows surface as null fields. If the player has no
// evaluation at all the response body is JSON null.
func (s *EvaluationService) LatestForPlayer(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	playerId, err := utils.URLParamUUID(r, "player_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
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
	if err := auth.Authorize(principal, auth.ViewEvaluation, target); err != nil {
		writeError(w, err)
		return
	}

	var playerEval schema.PlayerEvaluation
	result := s.db.Order("created_at desc").Limit(1).Find(&playerEval, "player_id = ?", playerId)
	if result.Error != nil {
		slog.Error("sql error finding latest player evaluation", "player_id", playerId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteJsonResponse(w, nil)
		return
	}

	var evaluation schema.Evaluation
	result = s.db.First(&evaluation, "id = ?", playerEval.EvaluationId)
	if result.Error != nil {
		slog.Error("sql error loading evaluation", "evaluation_id", playerEval.EvaluationId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	var allScores map[string]map[string]*float64
	if err := json.Unmarshal(evaluation.Scores, &allScores); err != nil {
		slog.Error("error decoding evaluation scores", "evaluation_id", evaluation.Id, "error", err)
		writeError(w, CodedError(errors.New("stored evaluation scores are malformed"), http.StatusInternalServerError))
		return
	}
	record := allScores[playerId.String()]
	if record == nil {
		record = map[string]*float64{}
	}

	view := PlayerEvaluationView{
		EvaluationId:  evaluation.Id,
		Name:          evaluation.Name,
		CreatedAt:     playerEval.CreatedAt,
		RawScores:     record,
		AttemptGroups: aggregateAttemptGroups(record),
	}

	var testScores schema.TestScores
	result = s.db.Limit(1).Find(&testScores, "player_evaluation_id = ?", playerEval.Id)
	if result.Error != nil {
		slog.Error("sql error loading test scores", "player_evaluation_id", playerEval.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}
	if result.RowsAffected > 0 {
		raw := json.RawMessage(testScores.Scores)
		view.TestScores = &raw
	}

	var overallScores schema.OverallScores
	result = s.db.Limit(1).Find(&overallScores, "player_evaluation_id = ?", playerEval.Id)
	if result.Error != nil {
		slog.Error("sql error loading overall scores", "player_evaluation_id", playerEval.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}
	if result.RowsAffected > 0 {
		raw := json.RawMessage(overallScores.Scores)
		view.OverallScores = &raw
	}

	var dna schema.PlayerDna
	result = s.db.Limit(1).Find(&dna, "player_evaluation_id = ?", playerEval.Id)
	if result.Error != nil {
		slog.Error("sql error loading player dna", "player_evaluation_id", playerEval.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}
	if result.RowsAffected > 0 {
		view.Dna = &PlayerDnaView{
			PowerStrength:     dna.PowerStrength,
			TechniqueControl:  dna.TechniqueControl,
			MobilityStability: dna.MobilityStability,
			DecisionCognition: dna.DecisionCognition,
		}
	}

	var cluster schema.PlayerCluster
	result = s.db.Limit(1).Find(&cluster, "player_evaluation_id = ?", playerEval.Id)
	if result.Error != nil {
		slog.Error("sql error loading player cluster", "player_evaluation_id", playerEval.Id, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}
	if result.RowsAffected > 0 {
		view.Cluster = &cluster.Cluster
	}

	utils.WriteJsonResponse(w, view)
}
