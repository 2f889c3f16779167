package server

import (
	"context"
	"net/http"
	"time"

	"anoa.com/forumboard/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDisabled = "disabled"
)

// healthHandler reports "ok" while the database answers. Redis is optional,
// so a missing or failing redis only degrades the status.
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := statusUp
		if err := database.Ping(ctx, db); err != nil {
			dbStatus = statusDown
		}

		redisStatus := statusDisabled
		if rdb != nil {
			redisStatus = statusUp
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = statusDown
			}
		}

		code := http.StatusOK
		status := "ok"
		switch {
		case dbStatus == statusDown:
			code = http.StatusServiceUnavailable
			status = "unavailable"
		case redisStatus == statusDown:
			status = "degraded"
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbStatus,
			"redis":    redisStatus,
		})
	}
}
