package models

import (
	"time"
)

// Business is one of the trading entities the jobs sync data for.
type Business struct {
	Code      string    `json:"code" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Timezone  string    `json:"timezone" gorm:"default:Australia/Melbourne"`
	Currency  string    `json:"currency" gorm:"default:AUD"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	BusinessTeelixir          = "teelixir"
	BusinessBuyOrganicsOnline = "boo"
	BusinessElevate           = "elevate"
	BusinessRedHillFresh      = "rhf"
	BusinessBrandConnections  = "brandco"
)

// DefaultBusinesses is the seed set inserted by the first migration.
func DefaultBusinesses() []Business {
	return []Business{
		{Code: BusinessTeelixir, Name: "Teelixir", Timezone: "Australia/Melbourne", Currency: "AUD"},
		{Code: BusinessBuyOrganicsOnline, Name: "Buy Organics Online", Timezone: "Australia/Melbourne", Currency: "AUD"},
		{Code: BusinessElevate, Name: "Elevate Wholesale", Timezone: "Australia/Melbourne", Currency: "AUD"},
		{Code: BusinessRedHillFresh, Name: "Red Hill Fresh", Timezone: "Australia/Melbourne", Currency: "AUD"},
		{Code: BusinessBrandConnections, Name: "Brand Connections", Timezone: "Australia/Melbourne", Currency: "AUD"},
	}
}
