package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/http/middleware"
)

// RegisterRequest is the JSON payload for creating a student account.
type RegisterRequest struct {
	Name     string `json:"name"     binding:"required,max=120"       example:"Asha Verma"`
	Email    string `json:"email"    binding:"required,email,max=255" example:"asha@example.com"`
	Password string `json:"password" binding:"required,min=8,max=72"  example:"correct-horse-battery"`
}

// LoginRequest is the JSON payload for signing in.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email" example:"asha@example.com"`
	Password string `json:"password" binding:"required"       example:"correct-horse-battery"`
	// SetCookie additionally stores the token in the access_token cookie.
	SetCookie bool `json:"set_cookie" example:"false"`
}

// Register godoc
// @ID          register
// @Summary     Create a student account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account details"
// @Success     201   {object}  domain.PublicUser
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.authSvc.Register(c.Request.Context(), strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, u.Public())
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Verifies the credentials and returns a signed bearer token.
// @Description With set_cookie the token is also stored in an HttpOnly access_token cookie.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.Session
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     403   {object}  handlers.ErrorResponse  "Account inactive"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	if req.SetCookie {
		maxAge := int(time.Until(sess.ExpiresAt) / time.Second)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.AccessTokenCookie, sess.Token, maxAge, "/", "", h.opts.SecureCookie, true)
	}
	ok(c, http.StatusOK, sess)
}

// Me godoc
// @ID          me
// @Summary     Current identity
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.PublicUser
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	actor, found := currentActor(c)
	if !found {
		return
	}
	u, err := h.authSvc.Me(c.Request.Context(), actor)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
