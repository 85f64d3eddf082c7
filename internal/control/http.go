package control

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bkasymov/taskmaster-v4/internal/manager"
)

// entryJSON is the wire shape of one manager.EntryView (SPEC_FULL.md §D.5).
type entryJSON struct {
	PID      int     `json:"pid"`
	Cmd      string  `json:"cmd"`
	Status   string  `json:"status"`
	Restarts int     `json:"restarts"`
	Uptime   float64 `json:"uptime_seconds"`
}

func entryViewsJSON(views []manager.EntryView) []entryJSON {
	out := make([]entryJSON, 0, len(views))
	for _, v := range views {
		out = append(out, entryJSON{
			PID:      v.PID,
			Cmd:      v.Cmd,
			Status:   v.Status,
			Restarts: v.Restarts,
			Uptime:   v.Uptime.Seconds(),
		})
	}
	return out
}

func snapshotJSON(snap manager.Snapshot) map[string][]entryJSON {
	out := make(map[string][]entryJSON, len(snap))
	for name, views := range snap {
		out[name] = entryViewsJSON(views)
	}
	return out
}

// NewHTTPServer builds an *http.Server exposing the same six operations
// as the interactive shell over small JSON endpoints, plus a Prometheus
// scrape endpoint at GET /metrics (SPEC_FULL.md §D.5, §D.6). It binds
// addr (typically "127.0.0.1:9001") and is entirely optional — the core
// supervision loop has no dependency on it.
func NewHTTPServer(addr string, adapter *Adapter, reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshotJSON(adapter.Status()))
	})
	r.GET("/status/:name", func(c *gin.Context) {
		views, err := adapter.StatusOne(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entryViewsJSON(views))
	})
	r.POST("/start/:name", func(c *gin.Context) {
		if err := adapter.Start(c.Param("name")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/stop/:name", func(c *gin.Context) {
		if err := adapter.Stop(c.Param("name")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/restart/:name", func(c *gin.Context) {
		if err := adapter.Restart(c.Param("name")); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/reload", func(c *gin.Context) {
		adapter.Reload()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/quit", func(c *gin.Context) {
		adapter.Quit()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
