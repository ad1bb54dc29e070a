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

type CurriculumService struct {
	db       *gorm.DB
	sessions *auth.SessionProvider
}

func (s *CurriculumService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.sessions.AuthMiddleware()...)

	r.With(auth.RequireAction(auth.ViewCurriculum)).Get("/list", s.List)
	r.With(auth.RequireAction(auth.ManageCurriculum)).Post("/create", s.CreateCurriculum)
	r.With(auth.RequireAction(auth.ManageCurriculum)).Delete("/{curriculum_id}", s.DeleteCurriculum)

	return r
}

type createCurriculumRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tests       []string `json:"tests"`
}

type createCurriculumResponse struct {
	CurriculumId uuid.UUID `json:"curriculum_id"`
}

func (s *CurriculumService) CreateCurriculum(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	var params createCurriculumRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		writeError(w, ReasonedError(ReasonValidation, errors.New("name is required"), http.StatusBadRequest))
		return
	}
	if len(params.Tests) == 0 {
		writeError(w, ReasonedError(ReasonValidation, errors.New("tests must name at least one test"), http.StatusBadRequest))
		return
	}

	testsJson, err := json.Marshal(params.Tests)
	if err != nil {
		writeError(w, CodedError(fmt.Errorf("error encoding tests: %w", err), http.StatusBadRequest))
		return
	}

	newCurriculum := schema.Curriculum{
		Id:          uuid.New(),
		CompanyId:   principal.CompanyId,
		Name:        params.Name,
		Description: params.Description,
		Tests:       datatypes.JSON(testsJson),
		CreatedBy:   principal.User.Id,
	}

	result := s.db.Create(&newCurriculum)
	if result.Error != nil {
		slog.Error("sql error creating curriculum", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteJsonResponse(w, createCurriculumResponse{CurriculumId: newCurriculum.Id})
}

type CurriculumInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tests       []string  `json:"tests"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// List returns the curriculums visible to the principal. Coaches see only
// curriculums they authored; owners and admins see every curriculum in the
// company.
func (s *CurriculumService) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	query := s.db.Order("created_at asc").Where("company_id = ?", principal.CompanyId)
	if principal.User.Role == schema.RoleCoach {
		query = query.Where("created_by = ?", principal.User.Id)
	}

	var curriculums []schema.Curriculum
	result := query.Find(&curriculums)
	if result.Error != nil {
		slog.Error("sql error listing curriculums", "company_id", principal.CompanyId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	infos := make([]CurriculumInfo, 0, len(curriculums))
	for _, curriculum := range curriculums {
		var tests []string
		if err := json.Unmarshal(curriculum.Tests, &tests); err != nil {
			slog.Error("error decoding curriculum tests", "curriculum_id", curriculum.Id, "error", err)
			writeError(w, CodedError(errors.New("stored curriculum tests are malformed"), http.StatusInternalServerError))
			return
		}
		infos = append(infos, CurriculumInfo{
			Id:          curriculum.Id,
			Name:        curriculum.Name,
			Description: curriculum.Description,
			Tests:       tests,
			CreatedBy:   curriculum.CreatedBy,
			CreatedAt:   curriculum.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *CurriculumService) DeleteCurriculum(w http.ResponseWriter, r *http.Request) {
	principal, ok := getPrincipal(w, r)
	if !ok {
		return
	}

	curriculumId, err := utils.URLParamUUID(r, "curriculum_id")
	if err != nil {
		writeError(w, ReasonedError(ReasonValidation, err, http.StatusBadRequest))
		return
	}

	curriculum, err := schema.GetCurriculum(curriculumId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrCurriculumNotFound) {
			writeError(w, ReasonedError(ReasonValidation, err, http.StatusNotFound))
			return
		}
		writeError(w, CodedError(err, http.StatusInternalServerError))
		return
	}

	target := auth.Target{CompanyId: curriculum.CompanyId, SupervisorId: &curriculum.CreatedBy}
	if err := auth.Authorize(principal, auth.ManageCurriculum, target); err != nil {
		writeError(w, err)
		return
	}

	result := s.db.Delete(&schema.Curriculum{Id: curriculumId})
	if result.Error != nil {
		slog.Error("sql error deleting curriculum", "curriculum_id", curriculumId, "error", result.Error)
		writeError(w, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError))
		return
	}

	utils.WriteSuccess(w)
}
