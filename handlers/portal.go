package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/intake"
	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/studies"
	"github.com/filtroclientes/api/internal/textutil"
	"github.com/filtroclientes/api/internal/tokens"
	"github.com/filtroclientes/api/pkg/logger"
	"github.com/filtroclientes/api/pkg/middleware"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// PortalHandler serves the portal surface for human users: their visible
// submissions and the trial catalog.
type PortalHandler struct {
	cfg       *config.Config
	intakeSvc *intake.Service
	catalog   studies.Repository
}

func NewPortalHandler(cfg *config.Config, s *intake.Service, catalog studies.Repository) *PortalHandler {
	return &PortalHandler{cfg: cfg, intakeSvc: s, catalog: catalog}
}

// Register routes under /portal. Every route requires the portal scope;
// catalog writes additionally require the super_admin role.
func (h *PortalHandler) Register(rg *gin.RouterGroup) {
	p := rg.Group("/portal")
	p.Use(middleware.Require(h.cfg.JWT.Secret, middleware.Requirement{Auth: true, Scopes: []string{"portal"}}))
	p.GET("/submissions", h.ListSubmissions)
	p.GET("/studies", h.ListStudies)
	p.GET("/studies/:id", h.GetStudy)
	p.POST("/studies", middleware.RequireSuperAdmin(), h.CreateStudy)
	p.PATCH("/studies/:id", middleware.RequireSuperAdmin(), h.UpdateStudy)
	p.DELETE("/studies/:id", middleware.RequireSuperAdmin(), h.DeleteStudy)
}

// userClaims rejects machine actors; the portal is user-token only.
func userClaims(c *gin.Context) (*tokens.Claims, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || !claims.IsUser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden_actor"})
		return nil, false
	}
	return claims, true
}

// ListSubmissions returns the caller's visible submissions, paged. The
// visibility filter comes from the caller's role and company binding.
// Cross-center and debug detail are redacted for everyone below
// super_admin.
func (h *PortalHandler) ListSubmissions(c *gin.Context) {
	claims, ok := userClaims(c)
	if !ok {
		return
	}

	params := intake.ListParams{
		Filter: intake.FilterForRole(claims.Role, claims.CompanyCode, claims.ExternalUserID),
		Limit:  int64(parseBoundedInt(c.Query("limit"), defaultPageLimit, 1, maxPageLimit)),
		Skip:   int64(parseBoundedInt(c.Query("skip"), 0, 0, 1<<30)),
	}
	if v := c.Query("onlyWithMatch"); v != "" {
		b := v == "true" || v == "1"
		params.OnlyWithMatch = &b
	}

	items, total, err := h.intakeSvc.List(c.Request.Context(), params)
	if err != nil {
		logger.Errorf("portal submissions list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if claims.Role != models.RoleSuperAdmin {
		for _, s := range items {
			s.MatchCrossCenter = nil
			s.MatchDebug = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"limit": params.Limit,
		"skip":  params.Skip,
	})
}

// ListStudies returns the catalog, restricted to the caller's company
// centers unless the caller is a super_admin.
func (h *PortalHandler) ListStudies(c *gin.Context) {
	claims, ok := userClaims(c)
	if !ok {
		return
	}
	all, err := h.catalog.List(c.Request.Context())
	if err != nil {
		logger.Errorf("studies list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if claims.Role != models.RoleSuperAdmin {
		visible := make([]*studies.ClinicalStudy, 0, len(all))
		for _, s := range all {
			if studyAtCenter(s, claims.CompanyCode) {
				visible = append(visible, s)
			}
		}
		all = visible
	}
	c.JSON(http.StatusOK, gin.H{"items": all, "total": len(all)})
}

// GetStudy returns one catalog entry. Studies outside the caller's
// centers are indistinguishable from absent ones.
func (h *PortalHandler) GetStudy(c *gin.Context) {
	claims, ok := userClaims(c)
	if !ok {
		return
	}
	s, err := h.catalog.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, studies.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "study_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if claims.Role != models.RoleSuperAdmin && !studyAtCenter(s, claims.CompanyCode) {
		c.JSON(http.StatusNotFound, gin.H{"error": "study_not_found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// CreateStudy registers a new trial catalog entry.
func (h *PortalHandler) CreateStudy(c *gin.Context) {
	var s studies.ClinicalStudy
	if err := c.ShouldBindJSON(&s); err != nil || s.Protocolo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.catalog.Insert(c.Request.Context(), &s); err != nil {
		if errors.Is(err, studies.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "study_exists"})
			return
		}
		logger.Errorf("study insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// UpdateStudy applies a partial update to one catalog entry.
func (h *PortalHandler) UpdateStudy(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	// _id is immutable
	delete(patch, "_id")
	delete(patch, "id")
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	s, err := h.catalog.Update(c.Request.Context(), c.Param("id"), set)
	if err != nil {
		if errors.Is(err, studies.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "study_not_found"})
			return
		}
		logger.Errorf("study update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteStudy removes one catalog entry.
func (h *PortalHandler) DeleteStudy(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, studies.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "study_not_found"})
			return
		}
		logger.Errorf("study delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func studyAtCenter(s *studies.ClinicalStudy, companyCode string) bool {
	code := textutil.Fold(companyCode)
	if code == "" {
		return false
	}
	for _, center := range s.CentrosProtocolo {
		if textutil.Fold(center) == code {
			return true
		}
	}
	return false
}

// parseBoundedInt parses a query integer with a default and clamps it.
func parseBoundedInt(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
