package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/intake"
	"github.com/filtroclientes/api/internal/studies"
	"github.com/filtroclientes/api/pkg/logger"
	"github.com/filtroclientes/api/pkg/middleware"
)

const (
	dataCacheKey = "api:data:summary"
	dataCacheTTL = 30 * time.Second
)

// DataHandler serves the scoped machine API: a cached catalog summary for
// readers and an echo endpoint for writers. Both routes exercise the full
// scope plus regex-permission chain.
type DataHandler struct {
	cfg       *config.Config
	catalog   studies.Repository
	intakeSvc *intake.Service
	redis     *redis.Client
}

func NewDataHandler(cfg *config.Config, catalog studies.Repository, s *intake.Service, rdb *redis.Client) *DataHandler {
	return &DataHandler{cfg: cfg, catalog: catalog, intakeSvc: s, redis: rdb}
}

// Register routes under /api
func (h *DataHandler) Register(rg *gin.RouterGroup) {
	api := rg.Group("/api")
	api.GET("/data", middleware.Require(h.cfg.JWT.Secret, middleware.Requirement{Auth: true, Scopes: []string{"read"}, Permissions: true}), h.GetData)
	api.POST("/data", middleware.Require(h.cfg.JWT.Secret, middleware.Requirement{Auth: true, Scopes: []string{"write"}, Permissions: true}), h.PostData)
}

type dataSummary struct {
	RecruitingStudies int       `json:"recruiting_studies"`
	TotalSubmissions  int64     `json:"total_submissions"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// GetData returns a catalog/submission summary, read through a short
// Redis cache. Cache failures fall back to the live computation.
func (h *DataHandler) GetData(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if raw, err := h.redis.Get(ctx, dataCacheKey).Result(); err == nil {
			var cached dataSummary
			if json.Unmarshal([]byte(raw), &cached) == nil {
				c.JSON(http.StatusOK, gin.H{"data": cached, "cached": true})
				return
			}
		}
	}

	recruiting, err := h.catalog.FindRecruiting(ctx)
	if err != nil {
		logger.Errorf("data summary failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	total, err := h.intakeSvc.Count(ctx, bson.M{})
	if err != nil {
		logger.Errorf("data summary failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	summary := dataSummary{
		RecruitingStudies: len(recruiting),
		TotalSubmissions:  total,
		GeneratedAt:       time.Now().UTC(),
	}
	if h.redis != nil {
		if raw, err := json.Marshal(summary); err == nil {
			_ = h.redis.Set(ctx, dataCacheKey, raw, dataCacheTTL).Err()
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": summary, "cached": false})
}

// PostData accepts an arbitrary JSON object and acknowledges it. It exists
// so write-scoped clients have a concrete endpoint their permission
// patterns can be validated against.
func (h *DataHandler) PostData(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "received": len(body)})
}
