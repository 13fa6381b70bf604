package validation

import (
	"strings"
	"testing"

	"opshub/internal/logger"
	"opshub/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func feedReadyProduct() *models.Product {
	return &models.Product{
		Title:        "Teelixir Chaga Mushroom 50g",
		Brand:        "Teelixir",
		Price:        decimal.RequireFromString("39.95"),
		ImageURL:     "https://cdn.example.com/chaga.jpg",
		ProductURL:   "https://teelixir.com/products/chaga",
		Availability: models.AvailabilityInStock,
		GTIN:         "9344949000181",
	}
}

func TestValidGTIN(t *testing.T) {
	cases := map[string]bool{
		"9344949000181":  true,
		"9344949000186":  false,
		"96385074":       true,
		"036000291452":   true,
		"10614141000415": true,
		"12345":          false,
		"93449490001a6":  false,
	}
	for gtin, want := range cases {
		assert.Equal(t, want, ValidGTIN(gtin), gtin)
	}
}

func TestValidateProduct_Ready(t *testing.T) {
	v := New(logger.Discard())
	p := feedReadyProduct()
	assert.Empty(t, v.ValidateProduct(p))

	v.Apply(p)
	assert.True(t, p.FeedReady)
	assert.JSONEq(t, `[]`, string(p.FeedProblems))
}

func TestValidateProduct_Problems(t *testing.T) {
	v := New(logger.Discard())

	p := feedReadyProduct()
	p.Title = ""
	p.Price = decimal.Zero
	p.ImageURL = ""
	p.GTIN = "123"
	p.Availability = "SOMETIMES"
	problems := v.ValidateProduct(p)
	assert.ElementsMatch(t, []string{ProblemMissingTitle, ProblemInvalidPrice, ProblemMissingImage, ProblemInvalidGTIN, ProblemUnknownAvailable}, problems)

	p = feedReadyProduct()
	p.Brand = ""
	p.GTIN = ""
	assert.Equal(t, []string{ProblemMissingIdentifiers}, v.ValidateProduct(p))

	p = feedReadyProduct()
	p.Title = strings.Repeat("a", 151)
	assert.Equal(t, []string{ProblemTitleTooLong}, v.ValidateProduct(p))

	v.Apply(p)
	assert.False(t, p.FeedReady)
	assert.JSONEq(t, `["title_too_long"]`, string(p.FeedProblems))
}
