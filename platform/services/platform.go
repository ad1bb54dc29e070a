package services

import (
	"log"
	"net/http"
	"os"
	"playerlab/platform/auth"
	"playerlab/platform/email"
	"playerlab/platform/storage"
	"playerlab/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Platform struct {
	user       UserService
	onboarding OnboardingService
	company    CompanyService
	team       TeamService
	player     PlayerService
	evaluation EvaluationService
	curriculum CurriculumService

	db *gorm.DB
}

func NewPlatform(
	db *gorm.DB, sessions *auth.SessionProvider, emailSender email.Sender, fileStorage storage.Storage,
) Platform {
	return Platform{
		user:       UserService{db: db, sessions: sessions, email: emailSender},
		onboarding: OnboardingService{db: db, sessions: sessions},
		company: CompanyService{
			db:       db,
			sessions: sessions,
			email:    emailSender,
			storage:  fileStorage,
		},
		team:       TeamService{db: db, sessions: sessions},
		player:     PlayerService{db: db, sessions: sessions},
		evaluation: EvaluationService{db: db, sessions: sessions},
		curriculum: CurriculumService{db: db, sessions: sessions},
		db:         db,
	}
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/onboarding", p.onboarding.Routes())
	r.Mount("/company", p.company.Routes())
	r.Mount("/team", p.team.Routes())
	r.Mount("/player", p.player.Routes())
	r.Mount("/evaluation", p.evaluation.Routes())
	r.Mount("/curriculum", p.curriculum.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
