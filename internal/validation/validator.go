package validation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"opshub/internal/logger"
	"opshub/internal/models"
)

// Problem codes for Google Shopping feed readiness.
const (
	ProblemMissingTitle       = "missing_title"
	ProblemTitleTooLong       = "title_too_long"
	ProblemInvalidPrice       = "invalid_price"
	ProblemMissingImage       = "missing_image"
	ProblemUnknownAvailable   = "unknown_availability"
	ProblemInvalidGTIN        = "invalid_gtin"
	ProblemMissingIdentifiers = "missing_brand_and_gtin"
	ProblemMissingLink        = "missing_link"
)

const MaxTitleLength = 150

type Validator struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateProduct returns the feed problems of a product; none means it can
// be submitted to Merchant Center as is.
func (v *Validator) ValidateProduct(p *models.Product) []string {
	var problems []string

	title := strings.TrimSpace(p.Title)
	switch {
	case title == "":
		problems = append(problems, ProblemMissingTitle)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		problems = append(problems, ProblemTitleTooLong)
	}

	if !p.Price.IsPositive() {
		problems = append(problems, ProblemInvalidPrice)
	}
	if strings.TrimSpace(p.ImageURL) == "" {
		problems = append(problems, ProblemMissingImage)
	}
	if strings.TrimSpace(p.ProductURL) == "" {
		problems = append(problems, ProblemMissingLink)
	}

	switch p.Availability {
	case models.AvailabilityInStock, models.AvailabilityOutOfStock, models.AvailabilityPreorder, models.AvailabilityBackorder:
	default:
		problems = append(problems, ProblemUnknownAvailable)
	}

	gtin := strings.TrimSpace(p.GTIN)
	if gtin != "" && !ValidGTIN(gtin) {
		problems = append(problems, ProblemInvalidGTIN)
	}
	if strings.TrimSpace(p.Brand) == "" && gtin == "" {
		problems = append(problems, ProblemMissingIdentifiers)
	}

	if len(problems) > 0 {
		v.logger.Debug("Product %s/%s has feed problems: %v", p.Source, p.ExternalID, problems)
	}
	return problems
}

// Apply stores the validation outcome on the product.
func (v *Validator) Apply(p *models.Product) {
	problems := v.ValidateProduct(p)
	p.FeedReady = len(problems) == 0
	if problems == nil {
		problems = []string{}
	}
	raw, _ := json.Marshal(problems)
	p.FeedProblems = raw
}

// ValidGTIN checks length (8, 12, 13 or 14 digits) and the GS1 check digit.
func ValidGTIN(gtin string) bool {
	switch len(gtin) {
	case 8, 12, 13, 14:
	default:
		return false
	}

	sum := 0
	// weights alternate 3,1 starting from the digit left of the check digit
	for i := len(gtin) - 2; i >= 0; i-- {
		c := gtin[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if (len(gtin)-2-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	last := gtin[len(gtin)-1]
	if last < '0' || last > '9' {
		return false
	}
	return (10-sum%10)%10 == int(last-'0')
}
