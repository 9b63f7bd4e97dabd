package health

import (
	"context"
	"net/http"
	"time"

	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/driver"

	"github.com/gin-gonic/gin"
)

// Status 單一組件的健康狀態.
type Status struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Report 整體健康報告.
type Report struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]Status `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Check 檢查所有組件的健康狀態.
func Check(ctx context.Context) Report {
	report := Report{
		Components: make(map[string]Status),
		Timestamp:  time.Now(),
	}

	if cfg := config.Get(); cfg != nil {
		report.Version = cfg.App.Version
	}

	report.Components["mongodb"] = checkMongo(ctx)

	if cfg := config.Get(); cfg != nil {
		if cfg.Database.Redis.Enabled {
			report.Components["redis"] = checkRedis(ctx)
		}
		if cfg.NATS.Enabled {
			report.Components["nats"] = checkNATS()
		}
	}

	report.Status = "ok"
	for _, s := range report.Components {
		if !s.Healthy {
			report.Status = "degraded"
			break
		}
	}

	return report
}

// checkMongo 檢查 MongoDB 連接.
func checkMongo(ctx context.Context) Status {
	client := driver.GetMongoClient()
	if client == nil {
		return Status{Healthy: false, Message: "未連接"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		return Status{Healthy: false, Message: err.Error()}
	}

	return Status{Healthy: true}
}

// checkRedis 檢查 Redis 連接.
func checkRedis(ctx context.Context) Status {
	client := driver.GetRedisClient()
	if client == nil {
		return Status{Healthy: false, Message: "未連接"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return Status{Healthy: false, Message: err.Error()}
	}

	return Status{Healthy: true}
}

// checkNATS 檢查 NATS 連接.
func checkNATS() Status {
	conn := driver.GetNATSConn()
	if conn == nil {
		return Status{Healthy: false, Message: "未連接"}
	}

	if !conn.IsConnected() {
		return Status{Healthy: false, Message: "連接中斷"}
	}

	return Status{Healthy: true}
}

// Handler 健康檢查端點.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := Check(c.Request.Context())

		statusCode := http.StatusOK
		if report.Status != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, report)
	}
}
