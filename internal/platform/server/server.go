package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uninest-messaging/internal/platform/config"
	"uninest-messaging/internal/platform/logger"

	"github.com/gin-gonic/gin"
)

// Start 啟動 HTTP 服務並等待關閉信號.
// 收到 SIGINT/SIGTERM 後優雅關閉，等待進行中的請求結束.
func Start(router *gin.Engine) error {
	cfg := config.Get()
	addr := config.GetServerAddr()

	readTimeout := 30 * time.Second
	if cfg != nil && cfg.Server.Timeout > 0 {
		readTimeout = time.Duration(cfg.Server.Timeout) * time.Second
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// SSE 連接是長連接，WriteTimeout 保持 0
	}

	useHTTPS := cfg != nil && cfg.Server.UseHTTPS
	if useHTTPS {
		tlsConfig, err := LoadTLSConfig(TLSConfig{
			Enabled:  true,
			CertFile: cfg.Server.CertPath,
			KeyFile:  cfg.Server.KeyPath,
		})
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "HTTP 服務啟動",
			logger.WithDetails(map[string]interface{}{
				"addr":  addr,
				"https": useHTTPS,
			}))

		var err error
		if useHTTPS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info(context.Background(), "收到關閉信號，開始優雅關閉",
			logger.WithDetails(map[string]interface{}{"signal": sig.String()}))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info(context.Background(), "HTTP 服務已關閉")
	return nil
}
