package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/contest"
	"github.com/skillforge/skillforge/core/notification"
	"github.com/skillforge/skillforge/core/summary"
)

type contestAPI struct {
	svc          *contest.Service
	summarySvc   *summary.Service
	orchestrator *notification.Orchestrator
}

func registerContestAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *contest.Service, summarySvc *summary.Service, orchestrator *notification.Orchestrator) {
	api := contestAPI{svc: svc, summarySvc: summarySvc, orchestrator: orchestrator}

	cg := g.Group("/contests", jwt)
	cg.POST("", api.create, tutorOrAdminRequired)
	cg.GET("/:id", api.get)
	cg.POST("/:id/join", api.join)
	cg.POST("/:id/enroll", api.enroll)
	cg.GET("/:id/leaderboard", api.leaderboard)
	cg.GET("/:id/key-notes", api.keyNotes)
	cg.POST("/:id/key-notes/regenerate", api.regenerateKeyNotes, tutorOrAdminRequired)
	cg.POST("/:id/resend-failed-emails", api.resendFailedEmails, adminRequired)

	pg := g.Group("/participants", jwt)
	pg.POST("/:id/submissions", api.submitAnswer)
	pg.POST("/:id/complete", api.complete)

	g.GET("/leaderboard", api.globalLeaderboard, jwt)
}

type (
	newContestRequest struct {
		Slug             string    `json:"slug" validate:"required"`
		Name             string    `json:"name" validate:"required"`
		Description      string    `json:"description"`
		TutorID          *int      `json:"tutor_id"`
		CategoryID       *int      `json:"category_id"`
		TotalQuestions   int       `json:"total_questions" validate:"min=0"`
		MaxPoints        int       `json:"max_points" validate:"min=0"`
		StartTime        time.Time `json:"start_time"`
		EndTime          time.Time `json:"end_time"`
		TimeLimitSec     int       `json:"time_limit_sec" validate:"min=0"`
		AutoEmailResults *bool     `json:"auto_email_results"`
	}

	submissionRequest struct {
		QuestionID int `json:"question_id" validate:"required"`
		OptionID   int `json:"option_id" validate:"required"`
	}

	resendResponse struct {
		Requeued int `json:"requeued"`
	}
)

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (api *contestAPI) create(ctx echo.Context) error {
	var req newContestRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding new contest")
	}
	if err := core.Validate.Struct(&req); err != nil {
		return err
	}

	c := contest.Contest{
		Slug:             req.Slug,
		Name:             req.Name,
		Description:      req.Description,
		TotalQuestions:   req.TotalQuestions,
		MaxPoints:        req.MaxPoints,
		TimeLimit:        time.Duration(req.TimeLimitSec) * time.Second,
		AutoEmailResults: true,
	}
	if req.TutorID != nil {
		c.TutorID = null.IntFrom(*req.TutorID)
	}
	if req.CategoryID != nil {
		c.CategoryID = null.IntFrom(*req.CategoryID)
	}
	if !req.StartTime.IsZero() {
		c.StartTime = null.TimeFrom(req.StartTime.UTC())
	}
	if !req.EndTime.IsZero() {
		c.EndTime = null.TimeFrom(req.EndTime.UTC())
	}
	if req.AutoEmailResults != nil {
		c.AutoEmailResults = *req.AutoEmailResults
	}

	c, err := api.svc.Create(ctx.Request().Context(), c)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contestAPI) get(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contestAPI) join(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Join(ctx.Request().Context(), id, claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *contestAPI) enroll(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Enroll(ctx.Request().Context(), id, claims.UserID()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contestAPI) submitAnswer(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.GetParticipant(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	if p.UserID != claims.UserID() && !claims.IsAdmin() {
		return errHttpForbidden
	}

	var req submissionRequest
	if err = ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding submission")
	}
	if err = core.Validate.Struct(&req); err != nil {
		return err
	}

	sub, err := api.svc.SubmitAnswer(ctx.Request().Context(), id, req.QuestionID, req.OptionID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *contestAPI) complete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.GetParticipant(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	if p.UserID != claims.UserID() && !claims.IsAdmin() {
		return errHttpForbidden
	}

	p, err = api.svc.CompleteParticipation(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *contestAPI) leaderboard(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *contestAPI) globalLeaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	ranks, err := api.svc.GlobalLeaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ranks)
}

func (api *contestAPI) keyNotes(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	notes, err := api.summarySvc.Query(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *contestAPI) regenerateKeyNotes(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	notes, err := api.summarySvc.Regenerate(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *contestAPI) resendFailedEmails(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	n, err := api.orchestrator.ResendFailed(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resendResponse{Requeued: n})
}
