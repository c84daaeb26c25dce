package restaurants

import (
	"regexp"
	"strings"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/internal/utils"
	"golang.org/x/net/idna"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

var (
	// SupportedCurrencies are offered on the registration form.
	SupportedCurrencies = []string{"USD", "INR", "EUR", "GBP"}
	// SupportedLanguages are offered on the registration form.
	SupportedLanguages = []string{"en", "hi", "es", "fr"}

	nonSlug = regexp.MustCompile(`[^a-z0-9]+`)
)

// Registration is the restaurant details form submitted after first sign-in.
type Registration struct {
	RestaurantName string
	// ParentStoreID links the new store as a branch of an existing one. Optional.
	ParentStoreID string
	Subdomain     string
	CustomDomain  string
	Currency      string
	Language      string
}

// CreateStoreRequest is the backend body for POST /store.
type CreateStoreRequest struct {
	Name          string  `json:"name"`
	Subdomain     string  `json:"subdomain"`
	Currency      string  `json:"currency"`
	Language      string  `json:"language"`
	CustomDomain  *string `json:"custom_domain"`
	ParentStoreID *string `json:"parent_store_id"`
}

// Slugify turns a restaurant name into a subdomain label.
func Slugify(name string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// FieldErrors maps a form field name to its message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	msgs := make([]string, 0, len(f))
	for field, msg := range f {
		msgs = append(msgs, field+": "+msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (f FieldErrors) Unwrap() error {
	return errors.ErrValidation
}

// Validate normalizes the form in place and returns FieldErrors for every invalid field.
func (r *Registration) Validate() error {
	fe := FieldErrors{}

	r.RestaurantName = strings.TrimSpace(r.RestaurantName)
	if r.RestaurantName == "" {
		fe["restaurantName"] = "restaurant name is required"
	}

	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if unit, err := currency.ParseISO(r.Currency); err != nil {
		fe["currency"] = "choose a valid currency"
	} else {
		r.Currency = unit.String()
	}

	if tag, err := language.Parse(strings.TrimSpace(r.Language)); err != nil || r.Language == "" {
		fe["language"] = "choose a valid language"
	} else {
		r.Language = tag.String()
	}

	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
	if r.Subdomain == "" {
		r.Subdomain = Slugify(r.RestaurantName)
	}
	if r.Subdomain != "" {
		if strings.Contains(r.Subdomain, ".") {
			fe["subdomain"] = "subdomain must be a single label"
		} else if ascii, err := idna.Registration.ToASCII(r.Subdomain + "." + PublicDomain); err != nil {
			fe["subdomain"] = "subdomain is not a valid host name"
		} else {
			r.Subdomain = strings.TrimSuffix(ascii, "."+PublicDomain)
		}
	}

	r.CustomDomain = strings.ToLower(strings.TrimSpace(r.CustomDomain))
	if r.CustomDomain != "" {
		ascii, err := idna.Registration.ToASCII(r.CustomDomain)
		if err != nil || !strings.Contains(ascii, ".") {
			fe["customDomain"] = "custom domain is not a valid host name"
		} else {
			r.CustomDomain = ascii
		}
	}

	r.ParentStoreID = strings.TrimSpace(r.ParentStoreID)

	if len(fe) > 0 {
		return fe
	}
	return nil
}

// Request builds the backend body. Call Validate first.
func (r Registration) Request() CreateStoreRequest {
	return CreateStoreRequest{
		Name:          r.RestaurantName,
		Subdomain:     r.Subdomain,
		Currency:      r.Currency,
		Language:      r.Language,
		CustomDomain:  utils.NonEmpty(r.CustomDomain),
		ParentStoreID: utils.NonEmpty(r.ParentStoreID),
	}
}
