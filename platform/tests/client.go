package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"playerlab/platform/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// apiError is the decoded structured error body. Tests assert on Reason to
// pin the stable error codes clients depend on.
type apiError struct {
	Status  int
	Reason  string `json:"error"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %v (%v)", e.Status, e.Reason, e.Details)
}

func errorReason(err error) string {
	if apiErr, ok := err.(*apiError); ok {
		return apiErr.Reason
	}
	return ""
}

func errorStatus(err error) int {
	if apiErr, ok := err.(*apiError); ok {
		return apiErr.Status
	}
	return 0
}

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *[2]string
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &[2]string{email, password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(contentType string, body io.Reader) *httpTestRequest {
	r.body = body
	return r.Header("Content-Type", contentType)
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login[0], r.login[1])
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		apiErr := &apiError{Status: res.StatusCode}
		if err := json.NewDecoder(res.Body).Decode(apiErr); err != nil {
			apiErr.Details = w.Body.String()
		}
		return apiErr
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) signup(name, email, password, companyName string) (map[string]string, error) {
	body := map[string]string{
		"name": name, "email": email, "password": password, "company_name": companyName,
	}

	var res map[string]string
	err := c.Post("/user/signup").Json(body).Do(&res)
	return res, err
}

func (c *client) login(email, password string) error {
	var res map[string]string
	err := c.Get("/user/login").Login(email, password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

func (c *client) requestVerification() error {
	return c.Post("/user/verification/request").Do(nil)
}

func (c *client) submitVerification(code string) error {
	return c.Post("/user/verification/submit").Json(map[string]string{"code": code}).Do(nil)
}

func (c *client) deleteOwnAccount() error {
	return c.Delete("/user/me").Do(nil)
}

func (c *client) onboardingStatus() (services.OnboardingStatus, error) {
	var res services.OnboardingStatus
	err := c.Get("/onboarding/status").Do(&res)
	return res, err
}

func (c *client) onboardStaff(password, name, phone string) error {
	body := map[string]string{"password": password, "name": name, "phone": phone}
	return c.Post("/onboarding/staff").Json(body).Do(nil)
}

func (c *client) onboardParent(password, name, phone string) error {
	body := map[string]string{"password": password, "name": name, "phone": phone}
	return c.Post("/onboarding/parent").Json(body).Do(nil)
}

func (c *client) onboardPlayer(password, dob, gender, dominantFoot string) error {
	body := map[string]string{
		"password": password, "dob": dob, "gender": gender, "dominant_foot": dominantFoot,
	}
	return c.Post("/onboarding/player").Json(body).Do(nil)
}

func (c *client) companyInfo() (services.CompanyInfo, error) {
	var res services.CompanyInfo
	err := c.Get("/company/").Do(&res)
	return res, err
}

func (c *client) uploadLogo(filename string, content []byte) (string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("logo", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	var res map[string]string
	err = c.Post("/company/logo").Body(writer.FormDataContentType(), body).Do(&res)
	return res["logo_url"], err
}

func (c *client) createMember(name, email, role string) (uuid.UUID, error) {
	body := map[string]string{"name": name, "email": email, "role": role}

	var res map[string]uuid.UUID
	err := c.Post("/company/members").Json(body).Do(&res)
	return res["user_id"], err
}

func (c *client) updateMember(userId uuid.UUID, updates map[string]string) error {
	return c.Post(fmt.Sprintf("/company/members/%v", userId)).Json(updates).Do(nil)
}

func (c *client) resendInvite(userId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/company/members/%v/resend-invite", userId)).Do(nil)
}

func (c *client) listAdmins() ([]services.AdminInfo, error) {
	var res []services.AdminInfo
	err := c.Get("/company/admins").Do(&res)
	return res, err
}

func (c *client) transferOwnership(newOwnerId uuid.UUID) error {
	body := map[string]uuid.UUID{"new_owner_id": newOwnerId}
	return c.Post("/company/transfer-ownership").Json(body).Do(nil)
}

func (c *client) createTeam(name string) (uuid.UUID, error) {
	var res map[string]uuid.UUID
	err := c.Post("/team/create").Json(map[string]string{"name": name}).Do(&res)
	return res["team_id"], err
}

func (c *client) assignCoach(teamId, userId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/team/%v/coach/%v", teamId, userId)).Do(nil)
}

func (c *client) listTeams() ([]services.TeamInfo, error) {
	var res []services.TeamInfo
	err := c.Get("/team/list").Do(&res)
	return res, err
}

func (c *client) createPlayer(teamId, parentUserId uuid.UUID, firstName, lastName string) (uuid.UUID, error) {
	body := map[string]interface{}{
		"team_id": teamId, "parent_user_id": parentUserId,
		"first_name": firstName, "last_name": lastName,
	}

	var res map[string]uuid.UUID
	err := c.Post("/player/create").Json(body).Do(&res)
	return res["player_id"], err
}

func (c *client) listPlayers() ([]services.PlayerInfo, error) {
	var res []services.PlayerInfo
	err := c.Get("/player/list").Do(&res)
	return res, err
}

func (c *client) updatePlayer(playerId uuid.UUID, updates map[string]string) error {
	return c.Post(fmt.Sprintf("/player/%v", playerId)).Json(updates).Do(nil)
}

func (c *client) createEvaluation(teamId uuid.UUID, name string, scores map[string]map[string]*float64) (uuid.UUID, error) {
	body := map[string]interface{}{"team_id": teamId, "name": name, "scores": scores}

	var res map[string]uuid.UUID
	err := c.Post("/evaluation/create").Json(body).Do(&res)
	return res["evaluation_id"], err
}

func (c *client) listEvaluations(teamId uuid.UUID) ([]services.EvaluationInfo, error) {
	var res []services.EvaluationInfo
	err := c.Get(fmt.Sprintf("/evaluation/list?team_id=%v", teamId)).Do(&res)
	return res, err
}

func (c *client) latestEvaluation(playerId uuid.UUID) (*services.PlayerEvaluationView, error) {
	var res *services.PlayerEvaluationView
	err := c.Get(fmt.Sprintf("/evaluation/player/%v/latest", playerId)).Do(&res)
	return res, err
}

func (c *client) createCurriculum(name string, tests []string) (uuid.UUID, error) {
	body := map[string]interface{}{"name": name, "tests": tests}

	var res map[string]uuid.UUID
	err := c.Post("/curriculum/create").Json(body).Do(&res)
	return res["curriculum_id"], err
}

func (c *client) listCurriculums() ([]services.CurriculumInfo, error) {
	var res []services.CurriculumInfo
	err := c.Get("/curriculum/list").Do(&res)
	return res, err
}
