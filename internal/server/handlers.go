package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cadbridge/cadbridge/internal/config"
	"github.com/cadbridge/cadbridge/internal/docs"
	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/monitoring"
	"github.com/cadbridge/cadbridge/internal/remote"
	"github.com/cadbridge/cadbridge/internal/scripting"
	"github.com/cadbridge/cadbridge/internal/security"
)

const (
	serviceName    = "cadbridge"
	serviceVersion = "0.3.0"

	defaultScriptTimeout = 30 * time.Second
	maxScriptTimeout     = 5 * time.Minute
	maxScriptBytes       = 1 << 20
)

// Handlers contains all HTTP handlers
type Handlers struct {
	cfg      *config.Config
	log      *logging.Logger
	manager  *remote.Manager
	executor *scripting.Executor
	policy   *security.Policy
	props    *remote.PropertyCache
	catalog  *docs.Catalog
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(
	cfg *config.Config,
	log *logging.Logger,
	manager *remote.Manager,
	executor *scripting.Executor,
	policy *security.Policy,
	props *remote.PropertyCache,
	catalog *docs.Catalog,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log,
		manager:  manager,
		executor: executor,
		policy:   policy,
		props:    props,
		catalog:  catalog,
		metrics:  metrics,
	}
}

// Root reports service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Health reports service health and instance connectivity
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"instances": h.manager.Count(),
		"security":  h.policy.Describe(),
	})
}

// ListInstances lists connected instances
func (h *Handlers) ListInstances(c *gin.Context) {
	instances := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"instances": instances,
		"count":     len(instances),
	})
}

// RescanInstances re-probes the discovery port range
func (h *Handlers) RescanInstances(c *gin.Context) {
	h.manager.Scan(c.Request.Context())
	h.props.ClearAll()
	h.metrics.IncScans()
	h.metrics.SetInstancesConnected(h.manager.Count())

	instances := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"instances": instances,
		"count":     len(instances),
	})
}

// meteredCaller records remote call metrics around a connection.
type meteredCaller struct {
	inner   scripting.RemoteCaller
	metrics *monitoring.Metrics
}

func (m *meteredCaller) Execute(ctx context.Context, command string, parameters map[string]any) (map[string]any, error) {
	timer := monitoring.NewTimer(m.metrics, command)
	result, err := m.inner.Execute(ctx, command, parameters)
	if err != nil {
		timer.Stop("error")
	} else {
		timer.Stop("success")
	}
	return result, err
}

type executeRequest struct {
	Script         string  `json:"script" binding:"required"`
	Port           int     `json:"port"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// ExecuteScript runs a script against a connected instance
func (h *Handlers) ExecuteScript(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Script) > maxScriptBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script too large"})
		return
	}

	timeout := defaultScriptTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds * float64(time.Second))
	}
	if timeout > maxScriptTimeout {
		timeout = maxScriptTimeout
	}

	run := scripting.Request{
		Script:  req.Script,
		Port:    req.Port,
		Timeout: timeout,
		Policy:  h.policy,
	}
	if req.Port != 0 {
		conn, err := h.manager.Get(req.Port)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		run.Caller = &meteredCaller{inner: conn, metrics: h.metrics}
	}

	start := time.Now()
	result := h.executor.Run(c.Request.Context(), run)

	outcome := "success"
	if !result.Success {
		outcome = "error"
	}
	h.metrics.RecordExecution(outcome, time.Since(start))
	h.log.Info("script executed",
		zap.Int("port", req.Port),
		zap.Bool("success", result.Success),
		zap.Int64("duration_ms", result.DurationMS),
	)

	c.JSON(http.StatusOK, result)
}

// ListProperties returns the property definitions of one instance
func (h *Handlers) ListProperties(c *gin.Context) {
	port, err := strconv.Atoi(c.Param("port"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid port"})
		return
	}

	conn, err := h.manager.Get(port)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	props, err := h.props.Get(c.Request.Context(), conn)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	filtered := remote.FilterProperties(props, remote.PropertyFilter{
		Group:       c.Query("group"),
		Type:        c.Query("type"),
		MeasureType: c.Query("measure_type"),
	})

	c.JSON(http.StatusOK, gin.H{
		"port":       port,
		"properties": filtered,
		"count":      len(filtered),
	})
}

// SearchDocs searches the command reference
func (h *Handlers) SearchDocs(c *gin.Context) {
	query := c.Query("q")
	category := c.Query("category")

	results := h.catalog.Search(query, category)
	c.JSON(http.StatusOK, gin.H{
		"commands":   results,
		"count":      len(results),
		"categories": h.catalog.Categories(),
	})
}
