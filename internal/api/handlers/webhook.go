package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"opshub/internal/logger"
	"opshub/internal/models"
	"opshub/internal/services/shopify"
	"opshub/internal/store"
	"opshub/internal/validation"

	"github.com/gin-gonic/gin"
)

// errBadPayload marks webhook bodies that cannot be decoded or transformed.
var errBadPayload = errors.New("invalid webhook payload")

// WebhookHandler applies Shopify product and order webhooks straight to the
// sink so the dashboard does not wait for the next scheduled sync.
type WebhookHandler struct {
	integrations *store.Integrations
	sink         store.Sink
	validator    *validation.Validator
	logger       *logger.Logger
}

func NewWebhookHandler(integrations *store.Integrations, sink store.Sink, validator *validation.Validator, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{integrations: integrations, sink: sink, validator: validator, logger: logger}
}

func (h *WebhookHandler) Shopify(c *gin.Context) {
	ctx := c.Request.Context()
	integration, err := h.integrations.Get(ctx, c.Param("id"))
	if err != nil {
		respondLookup(c, err, "Integration")
		return
	}
	if integration.Provider != models.ProviderShopify {
		c.JSON(http.StatusNotFound, gin.H{"error": "Integration not found"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	secret, _ := integration.Credential("webhook_secret")
	if !shopify.VerifyWebhook(payload, c.GetHeader(shopify.HeaderHMAC), secret) {
		h.logger.Warn("Rejected Shopify webhook for %s: bad signature", integration.ID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	transformer := shopify.NewTransformer(
		integration.BusinessCode,
		integration.Setting("currency", "AUD"),
		integration.Setting("store_url", ""),
	)
	now := time.Now().UTC()

	topic := c.GetHeader(shopify.HeaderTopic)
	switch topic {
	case shopify.TopicProductsCreate, shopify.TopicProductsUpdate:
		err = h.product(c, transformer, payload, now)
	case shopify.TopicOrdersCreate, shopify.TopicOrdersUpdated:
		err = h.order(c, transformer, payload, now)
	default:
		h.logger.Debug("Unhandled webhook topic: %s", topic)
		c.JSON(http.StatusOK, gin.H{"message": "Webhook received but not processed"})
		return
	}

	switch {
	case errors.Is(err, errBadPayload):
		h.logger.Warn("Rejected %s webhook: %v", topic, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("Failed to store %s webhook: %v", topic, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
}

func (h *WebhookHandler) product(c *gin.Context, t *shopify.Transformer, payload []byte, now time.Time) error {
	var product shopify.Product
	if err := json.Unmarshal(payload, &product); err != nil {
		return fmt.Errorf("%w: product: %v", errBadPayload, err)
	}
	row, err := t.TransformProduct(&product, now)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	h.validator.Apply(&row)
	_, err = h.sink.Upsert(c.Request.Context(), "products", models.SourceRefColumns, []models.Product{row})
	return err
}

func (h *WebhookHandler) order(c *gin.Context, t *shopify.Transformer, payload []byte, now time.Time) error {
	var order shopify.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return fmt.Errorf("%w: order: %v", errBadPayload, err)
	}
	row, err := t.TransformOrder(&order, now)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	_, err = h.sink.Upsert(c.Request.Context(), "orders", models.SourceRefColumns, []models.Order{row})
	return err
}
