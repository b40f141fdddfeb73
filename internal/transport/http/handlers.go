package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

type startAttemptRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type submitAnswerRequest struct {
	Type              domain.AnswerType `json:"type" validate:"omitempty,oneof=text single multi number match"`
	FreeText          string            `json:"freeText" validate:"max=4096"`
	SelectedOptionID  *int              `json:"selectedOptionId" validate:"omitempty,min=0"`
	SelectedOptionIDs []int             `json:"selectedOptionIds" validate:"omitempty,dive,min=0"`
	// -1 leaves a left item unmatched.
	Pairing []int `json:"pairing" validate:"omitempty,dive,min=-1"`
}

func (r submitAnswerRequest) toSubmission() domain.Submission {
	return domain.Submission{
		Type:              r.Type,
		FreeText:          r.FreeText,
		SelectedOptionID:  r.SelectedOptionID,
		SelectedOptionIDs: r.SelectedOptionIDs,
		Pairing:           r.Pairing,
	}
}

type correctRequest struct {
	Text    string `json:"text"`
	Index   *int   `json:"index"`
	Indices []int  `json:"indices"`
}

type questionRequest struct {
	Text       string             `json:"text" validate:"required"`
	AnswerType domain.AnswerType  `json:"answerType" validate:"required,oneof=text single multi number match"`
	Choices    []string           `json:"choices" validate:"omitempty,dive,required"`
	Pairs      []domain.MatchPair `json:"pairs"`
	Correct    correctRequest     `json:"correct"`
}

func (r questionRequest) toQuestion(id string) domain.Question {
	index := -1
	if r.Correct.Index != nil {
		index = *r.Correct.Index
	}
	return grading.BuildQuestion(id, r.Text, r.AnswerType,
		grading.Options{Choices: r.Choices, Pairs: r.Pairs},
		grading.Correct{Text: r.Correct.Text, Index: index, Indices: r.Correct.Indices})
}

type linkRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Order      int    `json:"order"`
	// Points defaults to 1 when omitted.
	Points *int `json:"points" validate:"omitempty,min=0"`
}

type testRequest struct {
	Title              string        `json:"title" validate:"required"`
	MaxAttempts        int           `json:"maxAttempts" validate:"min=0"`
	ShowCorrectAnswers bool          `json:"showCorrectAnswers"`
	Questions          []linkRequest `json:"questions" validate:"dive"`
}

func (r testRequest) toTest(id string) domain.Test {
	test := domain.Test{
		ID:                 id,
		Title:              r.Title,
		MaxAttempts:        r.MaxAttempts,
		ShowCorrectAnswers: r.ShowCorrectAnswers,
	}
	for i, l := range r.Questions {
		points := 1
		if l.Points != nil {
			points = *l.Points
		}
		order := l.Order
		if order == 0 {
			order = i + 1
		}
		test.Questions = append(test.Questions, domain.TestQuestion{
			TestID:     id,
			QuestionID: l.QuestionID,
			Order:      order,
			Points:     points,
		})
	}
	return test
}

// Handlers exposes the attempt lifecycle and catalog authoring over REST.
type Handlers struct {
	attempts *app.AttemptService
	catalog  *app.CatalogService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandlers(attempts *app.AttemptService, catalog *app.CatalogService, log zerolog.Logger) *Handlers {
	return &Handlers{
		attempts: attempts,
		catalog:  catalog,
		validate: validator.New(),
		log:      log,
	}
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeBadRequest(w, err.Error())
		return false
	}
	return true
}

func (h *Handlers) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if !h.decode(w, r, &req) {
		return
	}
	attempt, created, err := h.attempts.StartAttempt(r.Context(), chi.URLParam(r, "testID"), req.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, attempt)
}

func (h *Handlers) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handlers) Navigate(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "index must be an integer")
		return
	}
	view, err := h.attempts.NavigateTo(r.Context(), chi.URLParam(r, "attemptID"), index)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.attempts.SubmitAnswer(r.Context(), chi.URLParam(r, "attemptID"), chi.URLParam(r, "questionID"), req.toSubmission())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) FinishAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.attempts.FinishAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handlers) RescoreAttempt(w http.ResponseWriter, r *http.Request) {
	summary, err := h.attempts.RescoreAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) Result(w http.ResponseWriter, r *http.Request) {
	result, err := h.attempts.Result(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) PutQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !h.decode(w, r, &req) {
		return
	}
	q := req.toQuestion(chi.URLParam(r, "questionID"))
	if err := h.catalog.PutQuestion(r.Context(), q); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PutTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if !h.decode(w, r, &req) {
		return
	}
	test := req.toTest(chi.URLParam(r, "testID"))
	if err := h.catalog.PutTest(r.Context(), test); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}
