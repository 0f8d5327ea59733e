// Message HTTP handlers.
//
// This file exposes REST endpoints for message resources:
//   - GET    /threads/{id}/messages   (list within a thread; ETag support)
//   - POST   /threads/{id}/messages   (create in a thread)
//   - GET    /messages                (list across threads; ETag support)
//   - GET    /messages/{id}           (fetch)
//   - PUT    /messages/{id}           (replace sender and text)
//   - DELETE /messages/{id}           (delete)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/services"
)

// CreateMessageRequest is the JSON payload for posting a message.
type CreateMessageRequest struct {
	// Sender is "user" or "bot".
	Sender string `json:"sender" example:"user"`
	// Text is the message body (max 4000 characters by default).
	Text string `json:"text" example:"Hello there"`
}

// UpdateMessageRequest is the JSON payload for editing a message. Both fields
// are required.
type UpdateMessageRequest struct {
	Sender string `json:"sender" example:"bot"`
	Text   string `json:"text" example:"Edited text"`
}

// MessageListResponse documents the list envelope for messages.
type MessageListResponse struct {
	Total int              `json:"total" example:"2"`
	Page  int              `json:"page" example:"1"`
	Limit int              `json:"limit" example:"2"`
	Data  []domain.Message `json:"data"`
}

func messageUpdatedAt(m domain.Message) time.Time { return m.UpdatedAt }

// ListThreadMessages godoc
// @ID          listThreadMessages
// @Summary     List messages of a thread
// @Description Filters by a case-insensitive substring of the text, orders by creation time (oldest first unless sort=-date) and paginates.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string  true  "Thread ID"  format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       search         query   string  false "Case-insensitive substring"
// @Param       sort           query   string  false "date or -date"  Enums(date, -date) default(date)
// @Param       page           query   int     false "Page number"    minimum(1) default(1)
// @Param       limit          query   int     false "Items per page (default: all)" minimum(1)
//
// @Success     200  {object} handlers.MessageListResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads/{id}/messages [get]
func (h *Handlers) ListThreadMessages(c *gin.Context) {
	threadID := c.Param("id")
	res, err := h.msgSvc.ListInThread(c.Request.Context(), threadID, paramsFrom(c))
	if err != nil {
		failFor(c, err)
		return
	}
	writeList(c, "messages:"+threadID, res, messageUpdatedAt)
}

// CreateMessage godoc
// @ID          createMessage
// @Summary     Post a message to a thread
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                         true  "Thread ID"  format(uuid)
// @Param       body  body  handlers.CreateMessageRequest  true  "Message payload"
//
// @Success     201  {object} domain.Message
// @Failure     400  {object} handlers.ErrorResponse "Invalid body or validation failure"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /threads/{id}/messages [post]
func (h *Handlers) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.msgSvc.Create(c.Request.Context(), c.Param("id"), req.Sender, req.Text)
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages across all threads
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       search         query   string  false "Case-insensitive substring"
// @Param       sort           query   string  false "date or -date"  Enums(date, -date) default(date)
// @Param       page           query   int     false "Page number"    minimum(1) default(1)
// @Param       limit          query   int     false "Items per page (default: all)" minimum(1)
//
// @Success     200  {object} handlers.MessageListResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	res, err := h.msgSvc.ListAll(c.Request.Context(), paramsFrom(c))
	if err != nil {
		failFor(c, err)
		return
	}
	writeList(c, "messages", res, messageUpdatedAt)
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Get a message
// @Tags        Messages
// @Produce     json
//
// @Param       id  path  string  true  "Message ID"  format(uuid)
//
// @Success     200  {object} domain.Message
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	m, err := h.msgSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// UpdateMessage godoc
// @ID          updateMessage
// @Summary     Edit a message
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                         true  "Message ID"  format(uuid)
// @Param       body  body  handlers.UpdateMessageRequest  true  "Replacement sender and text"
//
// @Success     200  {object} domain.Message
// @Failure     400  {object} handlers.ErrorResponse "Invalid body or validation failure"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /messages/{id} [put]
func (h *Handlers) UpdateMessage(c *gin.Context) {
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.msgSvc.Update(c.Request.Context(), c.Param("id"), services.MessagePatch{
		Sender: req.Sender,
		Text:   req.Text,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a message
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Message ID"  format(uuid)
//
// @Success     200  {object} handlers.MessageResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse "Storage failure"
// @Router      /messages/{id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if err := h.msgSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "message deleted"})
}
