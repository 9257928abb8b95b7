package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(storage *Storage, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	api := r.Group("/api")
	{
		api.GET("/meta", MetaListHandler(storage))
		api.GET("/meta/:entity", MetaEntityHandler(storage))
		api.GET("/meta/:entity/resolve", ResolveHandler(storage))
		api.GET("/validate", ValidateHandler(storage))

		api.GET("/ddl", DDLHandler(storage))
		api.GET("/ddl/:entity", DDLHandler(storage))
		api.GET("/dml", DMLHandler(storage))
		api.GET("/dml/:entity", DMLHandler(storage))

		api.GET("/runs", RunListHandler(storage))
		api.GET("/runs/:id", RunGetHandler(storage))

		api.POST("/admin/reload", AdminReloadHandler(storage))
	}
	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// RunServer serves until ctx is done, then shuts down gracefully.
func RunServer(ctx context.Context, addr string, storage *Storage, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(storage, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
