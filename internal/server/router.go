package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/config"
	"github.com/ECeternalcat/simple-talk-client/internal/metrics"
	"github.com/ECeternalcat/simple-talk-client/internal/mw"
	"github.com/ECeternalcat/simple-talk-client/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 初始化 Gin 中间件、基础端点与 /ws 入口。
// 所有业务操作都走 websocket 信封,HTTP 只承担升级、探活、指标和静态资源。
// 返回的 Limiter 由调用方在停机时 Stop。
func SetupRouter(cfg config.Config, d *ws.Dispatcher) (*gin.Engine, *mw.Limiter) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	limiter := mw.NewLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	r.Use(limiter.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.Serve(d))

	// 静态前端:缺省 ./public,文件不存在时回落到 index.html(SPA 路由)。
	staticDir := filepath.Join(".", "public")
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusNotFound)
			return
		}
		rel := strings.TrimPrefix(filepath.Clean(c.Request.URL.Path), "/")
		if rel == "" || rel == "." {
			rel = "index.html"
		}
		target := filepath.Join(staticDir, rel)
		if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
			c.File(target)
			return
		}
		if strings.Contains(rel, ".") {
			c.Status(http.StatusNotFound)
			return
		}
		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			c.File(index)
			return
		}
		c.Status(http.StatusNotFound)
	})

	return r, limiter
}
