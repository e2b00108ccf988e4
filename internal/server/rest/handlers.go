package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/gin-gonic/gin"
)

var (
	upMessage    = gin.H{"message": "service is up"}
	readyMessage = gin.H{"message": "service is ready"}
	okMessage    = gin.H{"message": "ok"}
)

func abort(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

func (s *HTTPServer) register(c *gin.Context) {
	var creds models.UserCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	token, err := s.svc.Register(c.Request.Context(), creds)
	if err != nil {
		abort(c, http.StatusInternalServerError, "unexpected server error")
		return
	}

	c.JSON(http.StatusOK, token)
}

func (s *HTTPServer) login(c *gin.Context) {
	var creds models.UserCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	token, err := s.svc.Authenticate(c.Request.Context(), creds, c.GetHeader(common.AuthorizationHeaderName))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			abort(c, http.StatusNotFound, fmt.Sprintf("user %s not found", creds.UserName))
		case errors.Is(err, common.ErrorUnauthorized):
			abort(c, http.StatusUnauthorized, fmt.Sprintf("user %s unauthorized", creds.UserName))
		default:
			abort(c, http.StatusServiceUnavailable, "server error")
		}
		return
	}

	c.JSON(http.StatusOK, token)
}

func (s *HTTPServer) checkToken(c *gin.Context) {
	err := s.svc.CheckToken(c.Request.Context(), c.GetHeader(common.AuthorizationHeaderName))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			abort(c, http.StatusNotFound, "token not found")
		case errors.Is(err, common.ErrorUnauthorized):
			abort(c, http.StatusUnauthorized, "token expired")
		case errors.Is(err, common.ErrorUnprocessable):
			abort(c, http.StatusUnprocessableEntity, "unprocessable token")
		default:
			abort(c, http.StatusServiceUnavailable, "server error")
		}
		return
	}

	c.JSON(http.StatusOK, okMessage)
}

// verify accepts the upload and answers before it is processed.
func (s *HTTPServer) verify(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		abort(c, http.StatusUnprocessableEntity, "username is required")
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, "image is required")
		return
	}

	f, err := header.Open()
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, "image is unreadable")
		return
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		abort(c, http.StatusUnprocessableEntity, "image is unreadable")
		return
	}

	go s.svc.Verify(context.WithoutCancel(c.Request.Context()), username, image)

	c.JSON(http.StatusOK, okMessage)
}

func (s *HTTPServer) up(c *gin.Context) {
	c.JSON(http.StatusOK, upMessage)
}

func (s *HTTPServer) ready(c *gin.Context) {
	ctx := c.Request.Context()
	if s.probe.Check(ctx) {
		c.JSON(http.StatusOK, readyMessage)
		return
	}
	s.logger.Warn(ctx, "kafka is unavailable")
	abort(c, http.StatusServiceUnavailable, "kafka is unavailable")
}
