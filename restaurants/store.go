// Package restaurants holds the backend's restaurant domain models and their form validation.
package restaurants

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/myoutlet-admin/internal/utils"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// PublicDomain is the parent domain of every store subdomain.
const PublicDomain = "myoutlet.app"

type ThemeColor struct {
	Primary   string `json:"primary" mapstructure:"primary"`
	Secondary string `json:"secondary" mapstructure:"secondary"`
}

type Theme struct {
	Mode  string     `json:"mode" mapstructure:"mode"`
	Color ThemeColor `json:"color" mapstructure:"color"`
}

// Store is one restaurant (or branch) owned by the signed-in user.
type Store struct {
	ID            string    `json:"id" mapstructure:"id"`
	Name          string    `json:"name" mapstructure:"name"`
	Subdomain     string    `json:"subdomain" mapstructure:"subdomain"`
	QRCode        string    `json:"qrcode" mapstructure:"qrcode"`
	Currency      string    `json:"currency" mapstructure:"currency"`
	Language      string    `json:"language" mapstructure:"language"`
	IsActive      bool      `json:"is_active" mapstructure:"is_active"`
	GoogleSheetID string    `json:"google_sheet_id" mapstructure:"google_sheet_id"`
	CustomDomain  *string   `json:"custom_domain" mapstructure:"custom_domain"`
	CreatedAt     time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" mapstructure:"updated_at"`
	OwnerID       string    `json:"owner_id" mapstructure:"owner_id"`
	ParentStoreID *string   `json:"parent_store_id" mapstructure:"parent_store_id"`
	Theme         Theme     `json:"theme" mapstructure:"theme"`
}

// PublicURL is the customer facing address of the store.
func (s Store) PublicURL() string {
	domain := s.QRCode
	if custom := utils.Value(s.CustomDomain); custom != "" {
		domain = custom
	}
	if domain == "" && s.Subdomain != "" {
		domain = fmt.Sprintf("%s.%s", s.Subdomain, PublicDomain)
	}
	if domain == "" {
		return ""
	}
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// CurrencySymbol returns the narrow symbol of the store currency ("₹", "$"), or the code itself when unknown.
func (s Store) CurrencySymbol() string {
	unit, err := currency.ParseISO(s.Currency)
	if err != nil {
		return s.Currency
	}
	return fmt.Sprint(currency.NarrowSymbol(unit))
}

// LanguageName returns the English name of the store language, defaulting to English.
func (s Store) LanguageName() string {
	if s.Language == "" {
		return "English"
	}
	tag, err := language.Parse(s.Language)
	if err != nil {
		return s.Language
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return s.Language
}
