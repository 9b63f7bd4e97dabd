package driver

import (
	"fmt"
	"strings"
	"time"

	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/logger"

	"github.com/nats-io/nats.go"
)

var natsConn *nats.Conn

// ConnectNATS 連接 NATS（可選組件，未啟用時直接跳過）.
func ConnectNATS() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("配置未載入")
	}

	if !cfg.NATS.Enabled {
		logger.LogInfof("NATS 未啟用，跳過連接")
		return nil
	}

	return InitNATS(cfg.NATS)
}

// InitNATS 初始化 NATS 連接.
func InitNATS(cfg config.NATSConfig) error {
	name := cfg.Name
	if name == "" {
		name = "uninest-messaging"
	}

	reconnectWait := time.Duration(cfg.ReconnectWaitMS) * time.Millisecond
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(timeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.LogWarnf("NATS 連接中斷: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.LogInfof("NATS 已重新連接: %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	natsConn = conn
	logger.LogInfof("NATS connected successfully")
	return nil
}

// GetNATSConn 獲取 NATS 連接實例，未連接時回傳 nil.
func GetNATSConn() *nats.Conn {
	return natsConn
}

// CloseNATS 關閉 NATS 連接.
func CloseNATS() {
	if natsConn != nil {
		natsConn.Drain() //nolint:errcheck
		natsConn = nil
	}
}
