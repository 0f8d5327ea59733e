package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/auth"
)

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"s3cret"`
}

// Login godoc
// @ID          login
// @Summary     Obtain a bearer token
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object} auth.Token
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Failure     404  {object} handlers.ErrorResponse "Authentication disabled"
// @Router      /login [post]
func (h *Handlers) Login(c *gin.Context) {
	if h.authSvc == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "authentication is disabled")
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}
	tok, err := h.authSvc.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not issue token")
		return
	}
	ok(c, http.StatusOK, tok)
}
