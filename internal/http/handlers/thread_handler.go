// Thread HTTP handlers.
//
// This file exposes REST endpoints for thread resources:
//   - GET    /threads        (list: search, sort, page, limit; ETag support)
//   - POST   /threads        (create)
//   - GET    /threads/{id}   (fetch)
//   - PUT    /threads/{id}   (rename)
//   - DELETE /threads/{id}   (delete, including the thread's messages)
//
// Handlers are transport-thin: they bind input, call the ThreadService, and
// translate results into HTTP responses.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/domain"
)

// ThreadRequest is the JSON payload for creating or renaming a thread.
type ThreadRequest struct {
	// Title is required; whitespace is collapsed and at most 255 characters are allowed.
	Title string `json:"title" example:"Weekend plans"`
}

// ThreadListResponse documents the list envelope for threads.
type ThreadListResponse struct {
	Total int             `json:"total" example:"42"`
	Page  int             `json:"page" example:"1"`
	Limit int             `json:"limit" example:"20"`
	Data  []domain.Thread `json:"data"`
}

func threadUpdatedAt(t domain.Thread) time.Time { return t.UpdatedAt }

// ListThreads godoc
// @ID          listThreads
// @Summary     List threads
// @Description Filters threads by a case-insensitive substring of the title, orders them by creation time (newest first unless sort=date) and paginates. Supports weak ETag via If-None-Match.
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       search         query   string  false "Case-insensitive substring"   example(hello)
// @Param       sort           query   string  false "date or -date"                Enums(date, -date) default(-date)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       limit          query   int     false "Items per page (default: all)" minimum(1)
//
// @Success     200  {object} handlers.ThreadListResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	res, err := h.threadSvc.List(c.Request.Context(), paramsFrom(c))
	if err != nil {
		failFor(c, err)
		return
	}
	writeList(c, "threads", res, threadUpdatedAt)
}

// CreateThread godoc
// @ID          createThread
// @Summary     Create a thread
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ThreadRequest  true  "Thread payload"
//
// @Success     201  {object} domain.Thread
// @Failure     400  {object} handlers.ErrorResponse "Invalid body or validation failure"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads [post]
func (h *Handlers) CreateThread(c *gin.Context) {
	var req ThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.threadSvc.Create(c.Request.Context(), req.Title)
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// GetThread godoc
// @ID          getThread
// @Summary     Get a thread
// @Tags        Threads
// @Produce     json
//
// @Param       id  path  string  true  "Thread ID"  format(uuid)
//
// @Success     200  {object} domain.Thread
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads/{id} [get]
func (h *Handlers) GetThread(c *gin.Context) {
	t, err := h.threadSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// UpdateThread godoc
// @ID          updateThread
// @Summary     Rename a thread
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                  true  "Thread ID"  format(uuid)
// @Param       body  body  handlers.ThreadRequest  true  "New title"
//
// @Success     200  {object} domain.Thread
// @Failure     400  {object} handlers.ErrorResponse "Invalid body or validation failure"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads/{id} [put]
func (h *Handlers) UpdateThread(c *gin.Context) {
	var req ThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.threadSvc.Update(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteThread godoc
// @ID          deleteThread
// @Summary     Delete a thread and its messages
// @Tags        Threads
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID"  format(uuid)
//
// @Success     200  {object} handlers.MessageResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads/{id} [delete]
func (h *Handlers) DeleteThread(c *gin.Context) {
	if err := h.threadSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "thread deleted"})
}
