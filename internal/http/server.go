// Package http exposes the payment webhook and health endpoints.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// RouterDeps wires the handlers into a gin engine.
type RouterDeps struct {
	DB            *gorm.DB
	Payments      WebhookProcessor
	WebhookSecret string
}

// NewRouter builds the gin engine with the webhook and health routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogMiddleware())

	health := NewHealthHandler(deps.DB)
	engine.GET("/healthz", health.Healthz)

	webhook := NewWebhookHandler(deps.Payments)
	engine.POST("/webhook-pix", WebhookAuthMiddleware(deps.WebhookSecret), webhook.Receive)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

// Serve runs handler on addr until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", addr)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errCh <- errListen
		}
		close(errCh)
	}()

	select {
	case errListen := <-errCh:
		return errListen
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	return <-errCh
}
