package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/filtroclientes/api/internal/clients"
	"github.com/filtroclientes/api/internal/companies"
	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/intake"
	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/internal/users"
	"github.com/filtroclientes/api/pkg/logger"
	"github.com/filtroclientes/api/pkg/middleware"
)

// AdminHandler serves the credential management surface.
type AdminHandler struct {
	cfg         *config.Config
	clientsSvc  *clients.Service
	clientsRepo clients.Repository
	usersSvc    *users.Service
	companies   companies.Repository
	intakeSvc   *intake.Service
}

func NewAdminHandler(cfg *config.Config, cs *clients.Service, cr clients.Repository, us *users.Service, co companies.Repository, is *intake.Service) *AdminHandler {
	return &AdminHandler{cfg: cfg, clientsSvc: cs, clientsRepo: cr, usersSvc: us, companies: co, intakeSvc: is}
}

// Register routes under /admin. The CRUD surface accepts admin clients or
// the admin scope; the derivation view is super_admin users only.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/admin")
	a.Use(middleware.RequireAdmin(h.cfg.JWT.Secret))
	a.POST("/clients", h.CreateClient)
	a.GET("/clients", h.ListClients)
	a.PATCH("/clients/:clientId", h.UpdateClient)
	a.DELETE("/clients/:clientId", h.DeleteClient)
	a.POST("/users", h.CreateUser)
	a.GET("/users", h.ListUsers)
	a.POST("/companies", h.CreateCompany)
	a.GET("/companies", h.ListCompanies)

	rg.GET("/admin/submissions/:id/derivation",
		middleware.Require(h.cfg.JWT.Secret, middleware.Requirement{Auth: true}),
		middleware.RequireSuperAdmin(),
		h.SubmissionDerivation,
	)
}

// CreateClientRequest is the admin body for registering a machine client.
type CreateClientRequest struct {
	ClientID     string              `json:"client_id" binding:"required"`
	ClientSecret string              `json:"client_secret"`
	CompanyCodes []string            `json:"companyCodes"`
	Scopes       []string            `json:"scopes"`
	Permissions  []models.Permission `json:"permissions"`
	IsAdmin      bool                `json:"isAdmin"`
}

// CreateClient registers a client. The raw secret appears in this response
// and nowhere else afterwards.
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	client, rawSecret, err := h.clientsSvc.Create(c.Request.Context(), clients.CreateParams{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		CompanyCodes: req.CompanyCodes,
		Scopes:       req.Scopes,
		Permissions:  req.Permissions,
		IsAdmin:      req.IsAdmin,
	})
	if err != nil {
		if errors.Is(err, clients.ErrExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "client_exists"})
			return
		}
		logger.Errorf("client create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client, "client_secret": rawSecret})
}

func (h *AdminHandler) ListClients(c *gin.Context) {
	list, err := h.clientsRepo.List(c.Request.Context())
	if err != nil {
		logger.Errorf("client list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// UpdateClientRequest carries the patchable client fields. Supplying
// rotate_secret (or a new client_secret) rotates the credential.
type UpdateClientRequest struct {
	ClientSecret *string              `json:"client_secret"`
	RotateSecret bool                 `json:"rotate_secret"`
	CompanyCodes *[]string            `json:"companyCodes"`
	Scopes       *[]string            `json:"scopes"`
	Permissions  *[]models.Permission `json:"permissions"`
	IsAdmin      *bool                `json:"isAdmin"`
	Status       *string              `json:"status"`
}

func (h *AdminHandler) UpdateClient(c *gin.Context) {
	clientID := c.Param("clientId")
	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	resp := gin.H{}
	if req.RotateSecret || req.ClientSecret != nil {
		newSecret := ""
		if req.ClientSecret != nil {
			newSecret = *req.ClientSecret
		}
		raw, err := h.clientsSvc.RotateSecret(c.Request.Context(), clientID, newSecret)
		if err != nil {
			if errors.Is(err, clients.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "client_not_found"})
				return
			}
			logger.Errorf("secret rotation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		resp["client_secret"] = raw
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.CompanyCodes != nil {
		set["companyCodes"] = normalizeCodes(*req.CompanyCodes)
	}
	if req.Scopes != nil {
		set["scopes"] = *req.Scopes
	}
	if req.Permissions != nil {
		set["permissions"] = *req.Permissions
	}
	if req.IsAdmin != nil {
		set["isAdmin"] = *req.IsAdmin
	}
	if req.Status != nil {
		if *req.Status != models.StatusActive && *req.Status != models.StatusDisabled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		set["status"] = *req.Status
	}

	client, err := h.clientsRepo.Update(c.Request.Context(), clientID, set)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client_not_found"})
			return
		}
		logger.Errorf("client update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	resp["client"] = client
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) DeleteClient(c *gin.Context) {
	if err := h.clientsRepo.Delete(c.Request.Context(), c.Param("clientId")); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client_not_found"})
			return
		}
		logger.Errorf("client delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CreateUserRequest is the admin body for registering a portal user.
type CreateUserRequest struct {
	Email          string  `json:"email" binding:"required"`
	FullName       string  `json:"fullName"`
	Password       string  `json:"password" binding:"required"`
	Role           string  `json:"role" binding:"required"`
	CompanyCode    *string `json:"companyCode"`
	ExternalUserID *int64  `json:"externalUserId"`
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.usersSvc.Create(c.Request.Context(), users.CreateParams{
		Email:          req.Email,
		FullName:       req.FullName,
		Password:       req.Password,
		Role:           req.Role,
		CompanyCode:    req.CompanyCode,
		ExternalUserID: req.ExternalUserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, users.ErrExists):
			c.JSON(http.StatusConflict, gin.H{"error": "user_exists"})
		case errors.Is(err, users.ErrCompanyRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		}
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.usersSvc.List(c.Request.Context())
	if err != nil {
		logger.Errorf("user list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// CreateCompanyRequest is the admin body for registering a center.
type CreateCompanyRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

func (h *AdminHandler) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if _, err := h.companies.GetByCode(c.Request.Context(), code); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "company_exists"})
		return
	} else if !errors.Is(err, companies.ErrNotFound) {
		logger.Errorf("company lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	now := time.Now().UTC()
	company := &models.Company{
		ID:        primitive.NewObjectID().Hex(),
		Name:      strings.TrimSpace(req.Name),
		Code:      code,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.companies.Insert(c.Request.Context(), company); err != nil {
		logger.Errorf("company insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, company)
}

func (h *AdminHandler) ListCompanies(c *gin.Context) {
	list, err := h.companies.List(c.Request.Context())
	if err != nil {
		logger.Errorf("company list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// SubmissionDerivation exposes the stored cross-center comparison and
// debug trace for one submission.
func (h *AdminHandler) SubmissionDerivation(c *gin.Context) {
	sub, err := h.intakeSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, intake.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "submission_not_found"})
			return
		}
		logger.Errorf("submission lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               sub.ID,
		"match":            sub.Match,
		"matchCrossCenter": sub.MatchCrossCenter,
		"matchDebug":       sub.MatchDebug,
	})
}

func normalizeCodes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
