// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the mapping from service errors to status codes, and list
// responses with weak ETags.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "thread not found"
//	}
package handlers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/http/middleware"
	"github.com/tbourn/go-messages-api/internal/query"
	"github.com/tbourn/go-messages-api/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"thread not found"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" example:"thread deleted"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFor maps a service error onto the error envelope. The cause is
// attached to the Gin context so the access log records it.
func failFor(c *gin.Context, err error) {
	_ = c.Error(err)

	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.Is(err, services.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusGatewayTimeout, ErrCodeStorage, "storage timed out")
	case errors.Is(err, services.ErrStorage):
		fail(c, http.StatusInternalServerError, ErrCodeStorage, "storage unavailable")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// paramsFrom reads search, sort, page and limit from the query string.
func paramsFrom(c *gin.Context) query.Params {
	return query.ParseParams(c.Query("search"), c.Query("sort"), c.Query("page"), c.Query("limit"))
}

// writeList sends a query result with a weak ETag, or 304 when the client's
// If-None-Match already matches it.
func writeList[T query.Record](c *gin.Context, kind string, res query.Result[T], updatedAt func(T) time.Time) {
	etag := listETag(kind, res, updatedAt)
	c.Header("ETag", etag)
	if etagMatches(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, res)
}

// listETag fingerprints everything a client sees in the page: the counts,
// the ids in order, and each record's last modification time.
func listETag[T query.Record](kind string, res query.Result[T], updatedAt func(T) time.Time) string {
	h := fnv.New64a()
	var newest time.Time
	for _, r := range res.Data {
		u := updatedAt(r)
		h.Write([]byte(r.RecordID()))
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, u.UnixNano(), 10))
		h.Write([]byte{0})
		if u.After(newest) {
			newest = u
		}
	}
	var ts int64
	if !newest.IsZero() {
		ts = newest.Unix()
	}
	return fmt.Sprintf(`W/"%s:%d:%d:%d:%d:%x"`, kind, res.Total, res.Page, res.Limit, ts, h.Sum64())
}

// etagMatches implements the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
