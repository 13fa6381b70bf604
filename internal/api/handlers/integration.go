package handlers

import (
	"net/http"

	"opshub/internal/jobs"
	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/store"

	"github.com/gin-gonic/gin"
)

type IntegrationHandler struct {
	integrations *store.Integrations
	registry     *jobs.Registry
	dispatcher   *Dispatcher
	logger       *logger.Logger
}

func NewIntegrationHandler(integrations *store.Integrations, registry *jobs.Registry, dispatcher *Dispatcher, logger *logger.Logger) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, registry: registry, dispatcher: dispatcher, logger: logger}
}

// IntegrationRequest is the write shape. Credentials never appear in responses.
type IntegrationRequest struct {
	BusinessCode string                   `json:"business_code"`
	Provider     models.Provider          `json:"provider"`
	Name         string                   `json:"name"`
	Status       models.IntegrationStatus `json:"status"`
	Config       map[string]interface{}   `json:"config"`
	Credentials  map[string]interface{}   `json:"credentials"`
}

func (h *IntegrationHandler) List(c *gin.Context) {
	integrations, err := h.integrations.List(c.Request.Context(), c.Query("business"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch integrations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integrations})
}

func (h *IntegrationHandler) Get(c *gin.Context) {
	integration, err := h.integrations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Integration")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integration})
}

func (h *IntegrationHandler) Create(c *gin.Context) {
	var req IntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BusinessCode == "" || req.Provider == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business_code, provider and name are required"})
		return
	}
	if !h.knownProvider(req.Provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown provider " + string(req.Provider)})
		return
	}

	integration := &models.Integration{
		BusinessCode: req.BusinessCode,
		Provider:     req.Provider,
		Name:         req.Name,
		Status:       req.Status,
		Config:       req.Config,
		Credentials:  req.Credentials,
	}
	if integration.Status == "" {
		integration.Status = models.IntegrationStatusActive
	}
	if err := h.integrations.Create(c.Request.Context(), integration); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create integration"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": integration})
}

// Update replaces the fields present in the body. Credential keys are merged
// so a partial update keeps the secrets it does not mention.
func (h *IntegrationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	integration, err := h.integrations.Get(ctx, c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Integration")
		return
	}

	var req IntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != "" {
		integration.Name = req.Name
	}
	if req.Status != "" {
		integration.Status = req.Status
	}
	if req.Config != nil {
		integration.Config = req.Config
	}
	if len(req.Credentials) > 0 {
		if integration.Credentials == nil {
			integration.Credentials = map[string]interface{}{}
		}
		for k, v := range req.Credentials {
			integration.Credentials[k] = v
		}
	}

	if err := h.integrations.Update(ctx, integration); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update integration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": integration})
}

func (h *IntegrationHandler) Delete(c *gin.Context) {
	if err := h.integrations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondLookup(c, err, "Integration")
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync runs one kind (?kind=) or every kind of the integration's provider.
func (h *IntegrationHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()
	integration, err := h.integrations.Get(ctx, c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Integration")
		return
	}

	var kinds []string
	if kind := c.Query("kind"); kind != "" {
		def, err := h.registry.Get(kind)
		if err != nil || def.Provider != integration.Provider {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Job " + kind + " does not apply to " + string(integration.Provider)})
			return
		}
		kinds = []string{kind}
	} else {
		for _, def := range h.registry.List() {
			if def.Provider == integration.Provider {
				kinds = append(kinds, def.Kind)
			}
		}
	}

	started := make(gin.H, len(kinds))
	for _, kind := range kinds {
		mode, err := h.dispatcher.Dispatch(ctx, kind, integration.ID)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start " + kind})
			return
		}
		started[kind] = mode
	}
	c.JSON(http.StatusAccepted, gin.H{"integration_id": integration.ID, "jobs": started})
}

func (h *IntegrationHandler) knownProvider(p models.Provider) bool {
	for _, def := range h.registry.List() {
		if def.Provider == p {
			return true
		}
	}
	return false
}
