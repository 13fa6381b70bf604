package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const (
	TopicProductsCreate = "products/create"
	TopicProductsUpdate = "products/update"
	TopicOrdersCreate   = "orders/create"
	TopicOrdersUpdated  = "orders/updated"

	HeaderHMAC  = "X-Shopify-Hmac-Sha256"
	HeaderTopic = "X-Shopify-Topic"
)

// VerifyWebhook checks the base64 HMAC-SHA256 Shopify sends with every webhook.
func VerifyWebhook(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := SignWebhook(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhook produces the signature VerifyWebhook expects.
func SignWebhook(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
