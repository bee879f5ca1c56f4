package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/user"
)

type userAPI struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *user.Service) {
	api := userAPI{svc: svc}

	ug := g.Group("/users")
	ug.POST("/register", api.register)
	ug.POST("/verify-otp", api.verifyOTP)
	ug.POST("/login", api.login)

	ug.GET("", api.queryAll, jwt, adminRequired)
	ug.GET("/me", api.me, jwt)
	ug.PATCH("/me", api.update, jwt)
}

type (
	otpRequest struct {
		UserID int    `json:"user_id" validate:"required"`
		OTP    string `json:"otp" validate:"required"`
	}

	loginRequest struct {
		Username string `json:"username" validate:"required"` // username or email
		Password string `json:"password" validate:"required"`
	}

	loginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)

func (api *userAPI) register(ctx echo.Context) error {
	var nu user.NewUser
	if err := ctx.Bind(&nu); err != nil {
		return errors.Wrap(err, "binding new user")
	}
	if err := core.Validate.Struct(&nu); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), nu)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userAPI) verifyOTP(ctx echo.Context) error {
	var req otpRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding otp request")
	}
	if err := core.Validate.Struct(&req); err != nil {
		return err
	}

	usr, err := api.svc.VerifyOTP(ctx.Request().Context(), req.UserID, req.OTP)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding login request")
	}
	if err := core.Validate.Struct(&req); err != nil {
		return err
	}

	claims, err := authenticate(ctx, req.Username, req.Password, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return err
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, loginResponse{Token: token, User: usr})
}

func (api *userAPI) queryAll(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userAPI) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var uu user.UpdateUser
	if err = ctx.Bind(&uu); err != nil {
		return errors.Wrap(err, "binding user update")
	}
	if err = core.Validate.Struct(&uu); err != nil {
		return err
	}
	// only admins may toggle activation
	if !claims.IsAdmin() {
		uu.IsActive = nil
	}

	usr, err := api.svc.Update(ctx.Request().Context(), claims.UserID(), uu)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
