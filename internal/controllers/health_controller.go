package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db        Pinger
	startedAt time.Time
}

func NewHealthController(db Pinger, startedAt time.Time) *HealthController {
	return &HealthController{db: db, startedAt: startedAt}
}

// GET /api/health
func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		utils.RespondErrorWithCode(
			w,
			http.StatusServiceUnavailable,
			utils.ErrCodeInternal,
			"Database unreachable",
			nil,
			err,
		)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(c.startedAt).Round(time.Second).String(),
	})
}
