package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleCoach  = "coach"
	RoleParent = "parent"
	RolePlayer = "player"
)

func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleCoach, RoleParent, RolePlayer:
		return true
	}
	return false
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email    string `gorm:"unique;size:254;not null"`
	Name     string `gorm:"size:100;not null"`
	Phone    string `gorm:"size:50"`
	Password []byte

	Role string `gorm:"size:20;not null"`

	// Backfilled for owners at signup so that the company_id lookup path works
	// for every role. Owners additionally resolve via Company.OwnerId.
	CompanyId *uuid.UUID `gorm:"type:uuid;index"`
	Company   *Company   `gorm:"constraint:OnDelete:SET NULL"`

	EmailVerified bool `gorm:"not null;default:false"`
	Onboarded     bool `gorm:"not null;default:false"`

	EmailCode         *string `gorm:"size:20"`
	PasswordResetCode *string `gorm:"size:100"`

	// Player-role accounts supervise their own player row.
	SelfSupervised bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Company struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	OwnerId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name    string `gorm:"size:100;not null"`
	LogoUrl string `gorm:"size:500"`
	Website string `gorm:"size:200"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Team struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`
	Company   *Company  `gorm:"constraint:OnDelete:CASCADE"`

	CoachId *uuid.UUID `gorm:"type:uuid"`
	Coach   *User      `gorm:"foreignKey:CoachId;constraint:OnDelete:SET NULL"`

	Name string `gorm:"size:100;not null"`

	CreatedAt time.Time
}

type Player struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TeamId uuid.UUID `gorm:"type:uuid;not null;index"`
	Team   *Team     `gorm:"constraint:OnDelete:CASCADE"`

	ParentUserId uuid.UUID `gorm:"type:uuid;not null;index"`
	ParentUser   *User     `gorm:"foreignKey:ParentUserId;constraint:OnDelete:CASCADE"`

	FirstName string `gorm:"size:100;not null"`
	LastName  string `gorm:"size:100;not null"`

	Dob          *time.Time
	AgeGroup     string `gorm:"size:20"`
	Gender       string `gorm:"size:20"`
	DominantFoot string `gorm:"size:20"`
	Notes        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Age is derived from Dob, never stored.
func (p *Player) Age(now time.Time) *int {
	if p.Dob == nil {
		return nil
	}
	age := now.Year() - p.Dob.Year()
	if now.YearDay() < p.Dob.YearDay() {
		age--
	}
	return &age
}

// Complete reports whether the player record has the fields required before
// the player can appear on dashboards.
func (p *Player) Complete() bool {
	return p.Dob != nil && p.Gender != "" && p.DominantFoot != ""
}

// Evaluation is a named test cycle for a team. Scores maps player id to the
// raw per-test field record entered by the scorer. Rows are append only.
type Evaluation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TeamId uuid.UUID `gorm:"type:uuid;not null;index"`
	Team   *Team     `gorm:"constraint:OnDelete:CASCADE"`

	Name   string         `gorm:"size:100;not null"`
	Scores datatypes.JSON `gorm:"not null"`

	CreatedAt time.Time
}

type PlayerEvaluation struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	EvaluationId uuid.UUID   `gorm:"type:uuid;not null;index"`
	Evaluation   *Evaluation `gorm:"constraint:OnDelete:CASCADE"`

	PlayerId uuid.UUID `gorm:"type:uuid;not null;index"`
	Player   *Player   `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

// TestScores and OverallScores are produced by the offline scoring pipeline
// and are read only from the API's perspective.
type TestScores struct {
	PlayerEvaluationId uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Scores             datatypes.JSON `gorm:"not null"`
}

type OverallScores struct {
	PlayerEvaluationId uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Scores             datatypes.JSON `gorm:"not null"`
}

// PlayerDna is the normalized four trait profile.
type PlayerDna struct {
	PlayerEvaluationId uuid.UUID `gorm:"type:uuid;primaryKey"`

	PowerStrength     float64 `gorm:"not null"`
	TechniqueControl  float64 `gorm:"not null"`
	MobilityStability float64 `gorm:"not null"`
	DecisionCognition float64 `gorm:"not null"`
}

type PlayerCluster struct {
	PlayerEvaluationId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Cluster            string    `gorm:"size:50;not null"`
}

type Curriculum struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`
	Company   *Company  `gorm:"constraint:OnDelete:CASCADE"`

	Name        string `gorm:"size:100;not null"`
	Description string

	// Ordered list of test identifiers.
	Tests datatypes.JSON `gorm:"not null"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`

	CreatedAt time.Time
}

// AllModels lists every table for AutoMigrate, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Company{}, &Team{}, &Player{},
		&Evaluation{}, &PlayerEvaluation{},
		&TestScores{}, &OverallScores{}, &PlayerDna{}, &PlayerCluster{},
		&Curriculum{},
	}
}
