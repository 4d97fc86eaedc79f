package livehttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"tradepilot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// AlertControl 是提醒开关与测试推送的最小接口。
type AlertControl interface {
	Enabled() bool
	Enable() error
	Disable() error
	SendTest(ctx context.Context) error
}

// Signal is one prediction row as served by /api/signals.
type Signal struct {
	ID         int64    `json:"id"`
	Timestamp  string   `json:"timestamp"`
	Symbol     string   `json:"symbol"`
	Timeframe  string   `json:"timeframe"`
	Signal     string   `json:"signal"`
	Confidence float64  `json:"confidence"`
	Price      *float64 `json:"price,omitempty"`
	Sent       bool     `json:"sent"`
}

// SignalReader lists recent predictions at or above a confidence level.
type SignalReader interface {
	LiveSignals(ctx context.Context, minConfidence float64, limit int) ([]Signal, error)
}

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 500
)

// Router 暴露提醒开关与信号查询接口。
type Router struct {
	alerts  AlertControl
	signals SignalReader
}

func NewRouter(alerts AlertControl, signals SignalReader) *Router {
	return &Router{alerts: alerts, signals: signals}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/alerts", r.handleAlertState)
	group.POST("/alerts", r.handleAlertEnable)
	group.DELETE("/alerts", r.handleAlertDisable)
	group.POST("/alerts/test", r.handleAlertTest)
	group.GET("/signals", r.handleSignals)
}

func (r *Router) handleAlertState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": r.alerts.Enabled()})
}

func (r *Router) handleAlertEnable(c *gin.Context) {
	if err := r.alerts.Enable(); err != nil {
		logger.Errorf("enable alerts failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("alerts enabled via HTTP")
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (r *Router) handleAlertDisable(c *gin.Context) {
	if err := r.alerts.Disable(); err != nil {
		logger.Errorf("disable alerts failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("alerts disabled via HTTP")
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

func (r *Router) handleAlertTest(c *gin.Context) {
	if err := r.alerts.SendTest(c.Request.Context()); err != nil {
		logger.Errorf("test alert failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (r *Router) handleSignals(c *gin.Context) {
	if r.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal store not configured"})
		return
	}
	minConf := 0.0
	if raw := strings.TrimSpace(c.Query("min_confidence")); raw != "" {
		v, err := cast.ToFloat64E(raw)
		if err != nil || v < 0 || v > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be within [0, 100]"})
			return
		}
		minConf = v
	}
	limit := defaultSignalLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(v, maxSignalLimit)
	}
	out, err := r.signals.LiveSignals(c.Request.Context(), minConf, limit)
	if err != nil {
		logger.Errorf("list signals failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []Signal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": out})
}
