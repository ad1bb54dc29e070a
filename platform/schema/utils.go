package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrCompanyNotFound          = errors.New("company not found")
	ErrTeamNotFound             = errors.New("team not found")
	ErrPlayerNotFound           = errors.New("player not found")
	ErrEvaluationNotFound       = errors.New("evaluation not found")
	ErrPlayerEvaluationNotFound = errors.New("player evaluation not found")
	ErrCurriculumNotFound       = errors.New("curriculum not found")
	ErrDbAccessFailed           = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByEmail(email string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by email", "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetCompany(companyId uuid.UUID, db *gorm.DB) (Company, error) {
	var company Company

	result := db.First(&company, "id = ?", companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return company, ErrCompanyNotFound
		}
		slog.Error("sql error in get company", "company_id", companyId, "error", result.Error)
		return company, ErrDbAccessFailed
	}

	return company, nil
}

func GetCompanyByOwner(ownerId uuid.UUID, db *gorm.DB) (Company, error) {
	var company Company

	result := db.First(&company, "owner_id = ?", ownerId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return company, ErrCompanyNotFound
		}
		slog.Error("sql error in get company by owner", "owner_id", ownerId, "error", result.Error)
		return company, ErrDbAccessFailed
	}

	return company, nil
}

func GetTeam(teamId uuid.UUID, db *gorm.DB) (Team, error) {
	var team Team

	result := db.First(&team, "id = ?", teamId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return team, ErrTeamNotFound
		}
		slog.Error("sql error in get team", "team_id", teamId, "error", result.Error)
		return team, ErrDbAccessFailed
	}

	return team, nil
}

func GetPlayer(playerId uuid.UUID, db *gorm.DB) (Player, error) {
	var player Player

	result := db.Preload("Team").First(&player, "id = ?", playerId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return player, ErrPlayerNotFound
		}
		slog.Error("sql error in get player", "player_id", playerId, "error", result.Error)
		return player, ErrDbAccessFailed
	}

	return player, nil
}

func GetCurriculum(curriculumId uuid.UUID, db *gorm.DB) (Curriculum, error) {
	var curriculum Curriculum

	result := db.First(&curriculum, "id = ?", curriculumId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return curriculum, ErrCurriculumNotFound
		}
		slog.Error("sql error in get curriculum", "curriculum_id", curriculumId, "error", result.Error)
		return curriculum, ErrDbAccessFailed
	}

	return curriculum, nil
}
