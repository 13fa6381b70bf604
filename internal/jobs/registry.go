package jobs

import (
	"fmt"
	"sort"

	"opshub/internal/models"
)

// Job kinds.
const (
	KindShopifyProducts     = "shopify.products"
	KindShopifyOrders       = "shopify.orders"
	KindBigCommerceProducts = "bigcommerce.products"
	KindBigCommerceOrders   = "bigcommerce.orders"
	KindHubSpotContacts     = "hubspot.contacts"
	KindKlaviyoCampaigns    = "klaviyo.campaigns"
	KindSmartLeadCampaigns  = "smartlead.campaigns"
	KindSmartLeadLeads      = "smartlead.leads"
	KindLiveChatChats       = "livechat.chats"
	KindGmailMessages       = "gmail.messages"
	KindMerchantStatuses    = "merchant.statuses"
	KindXeroInvoices        = "xero.invoices"
	KindN8NResolve          = "n8n.resolve"
)

// Definition describes a job kind.
type Definition struct {
	Kind        string          `json:"kind"`
	Provider    models.Provider `json:"provider"`
	Table       string          `json:"table,omitempty"`
	Description string          `json:"description"`
	Factory     Factory         `json:"-"`
}

type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a kind, replacing any earlier definition with the same name.
func (r *Registry) Register(def Definition) {
	r.defs[def.Kind] = def
}

func (r *Registry) Get(kind string) (Definition, error) {
	def, ok := r.defs[kind]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return def, nil
}

// List returns every definition sorted by kind.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// DefaultRegistry knows every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range []Definition{
		{KindShopifyProducts, models.ProviderShopify, "products", "Shopify catalog with feed validation", newShopifyProducts},
		{KindShopifyOrders, models.ProviderShopify, "orders", "Shopify orders updated since the last sync", newShopifyOrders},
		{KindBigCommerceProducts, models.ProviderBigCommerce, "products", "BigCommerce catalog with feed validation", newBigCommerceProducts},
		{KindBigCommerceOrders, models.ProviderBigCommerce, "orders", "BigCommerce orders modified since the last sync", newBigCommerceOrders},
		{KindHubSpotContacts, models.ProviderHubSpot, "contacts", "HubSpot CRM contacts", newHubSpotContacts},
		{KindKlaviyoCampaigns, models.ProviderKlaviyo, "campaigns", "Klaviyo email campaigns with performance stats", newKlaviyoCampaigns},
		{KindSmartLeadCampaigns, models.ProviderSmartLead, "campaigns", "SmartLead cold outreach campaigns with analytics", newSmartLeadCampaigns},
		{KindSmartLeadLeads, models.ProviderSmartLead, "contacts", "SmartLead campaign leads", newSmartLeadLeads},
		{KindLiveChatChats, models.ProviderLiveChat, "chat_transcripts", "LiveChat archived chats", newLiveChatChats},
		{KindGmailMessages, models.ProviderGmail, "email_messages", "Gmail message metadata for a mailbox query", newGmailMessages},
		{KindMerchantStatuses, models.ProviderMerchant, "merchant_product_statuses", "Merchant Center product approval statuses", newMerchantStatuses},
		{KindXeroInvoices, models.ProviderXero, "invoices", "Xero invoices modified since the last sync", newXeroInvoices},
		{KindN8NResolve, models.ProviderN8N, "issues", "n8n workflow issue detection and resolution", newN8NResolve},
	} {
		r.Register(def)
	}
	return r
}
