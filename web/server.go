// Package web exposes the record store as a JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"travelbook/mq/mq"
	"travelbook/store"
)

const eventsPath = "/orders/events"

type Options struct {
	// RateLimit is the number of requests per hour allowed per client IP.
	RateLimit int64
	// Development relaxes the secure headers and accepts event stream
	// connections from any origin.
	Development bool
}

func DefaultOptions() Options {
	return Options{RateLimit: 1000}
}

type Server struct {
	store    *store.Store
	events   mq.OrderMessageQueue
	upgrader *websocket.Upgrader
}

// NewRouter builds the gin engine. events may be nil, which disables the event stream.
func NewRouter(s *store.Store, events mq.OrderMessageQueue, opts Options) *gin.Engine {
	srv := &Server{store: s, events: events, upgrader: newUpgrader(opts.Development)}

	r := gin.New()
	setupMiddlewares(r, opts)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/orders", srv.listOrders)
	r.POST("/orders", srv.createOrder)
	r.POST("/orders/preview", srv.previewOrder)
	r.GET(eventsPath, srv.streamEvents)
	r.GET("/orders/:id", srv.getOrder)
	r.PUT("/orders/:id", srv.updateOrder)
	r.DELETE("/orders/:id", srv.deleteOrder)
	r.GET("/summary", srv.summary)
	r.POST("/reload", srv.reload)
	return r
}

// Serve runs the router on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down http server")
	return httpServer.Shutdown(shutdownCtx)
}
