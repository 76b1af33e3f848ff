package api

import (
	"net/http"
	"time"

	"github.com/NordCoder/alert-notifier/internal/obs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	Addr         string
	TokenHash    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewRouter(ctrl *Controller, tokenHash string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(log))

	r.GET("/", ctrl.Health)
	r.POST("/notify", RequireToken(tokenHash), ctrl.Notify)
	return r
}

func NewServer(cfg Config, ctrl *Controller, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           obs.HTTPHandler(NewRouter(ctrl, cfg.TokenHash, log), "api"),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("component", "api.http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.WithTrace(c.Request.Context(), log).Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}
