package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything whose reachability can be checked, such as a
// store.Collection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthResponse reports backend reachability.
type StoreHealthResponse struct {
	Success bool      `json:"success" example:"true"`
	Time    time.Time `json:"time"`
}

// Banner answers GET / with a plain-text greeting.
func Banner(c *gin.Context) {
	c.String(http.StatusOK, "Go Messages REST API")
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200  {object} map[string]string
// @Router      /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StoreHealth godoc
// @ID          storeHealth
// @Summary     Storage readiness probe
// @Description Pings every configured store within a two second budget.
// @Tags        Health
// @Produce     json
// @Success     200  {object} handlers.StoreHealthResponse
// @Failure     503  {object} handlers.ErrorResponse "Store unreachable"
// @Router      /health/store [get]
func StoreHealth(pingers ...Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for _, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				_ = c.Error(err)
				fail(c, http.StatusServiceUnavailable, ErrCodeStorage, "store unreachable")
				return
			}
		}
		ok(c, http.StatusOK, StoreHealthResponse{Success: true, Time: time.Now().UTC()})
	}
}
