// Package web serves the chart page, the temperature log, the latest
// reading and a websocket feed of live readings.
package web

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Uranury/envnode/sensors"
)

//go:embed static/index.html
var indexHTML []byte

// LogSource provides the text served at /logs.
type LogSource interface {
	Contents() ([]byte, error)
}

// Server wires the HTTP routes to the node's components.
type Server struct {
	Logs   LogSource
	Latest *Latest
	Hub    *Hub
	// Primary answers /api/reading?fresh=1.
	Primary sensors.Sensor
	// PrimaryType is the SensorType /api/reading returns from the cache.
	PrimaryType string
	Log         logrus.FieldLogger
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	r.GET("/logs", s.handleLogs)
	// Browsers ask for it on every page load.
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/x-icon", nil)
	})
	r.GET("/api/reading", s.handleReading)
	r.GET("/ws", s.Hub.ServeWS)
	return r
}

func (s *Server) handleLogs(c *gin.Context) {
	b, err := s.Logs.Contents()
	if err != nil {
		s.Log.WithError(err).Error("read temperature log")
		c.String(http.StatusInternalServerError, "log unavailable")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", b)
}

func (s *Server) handleReading(c *gin.Context) {
	if c.Query("fresh") == "1" && s.Primary != nil {
		data, err := s.Primary.Read()
		if err != nil {
			s.Log.WithError(err).WithField("sensor", s.Primary.Name()).Warn("on-demand read failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		s.Latest.Put(data)
		c.JSON(http.StatusOK, data)
		return
	}

	data, ok := s.Latest.Get(s.PrimaryType)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no reading yet"})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("http request")
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Log.WithField("addr", addr).Info("http server starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	s.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
