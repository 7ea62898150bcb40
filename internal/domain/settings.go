package domain

import "time"

// PaymentSettings is the single administrative record controlling which
// providers are offered to donors. A provider toggled on here is still
// withheld unless its environment credentials are present.
type PaymentSettings struct {
	StripeEnabled   bool
	KhaltiEnabled   bool
	EsewaEnabled    bool
	PrimaryProvider string
	DefaultCurrency string
	AllowRecurring  bool
	UpdatedAt       time.Time
	UpdatedBy       string
}

// Enabled reports the administrative toggle for a provider name.
func (s *PaymentSettings) Enabled(provider string) bool {
	switch provider {
	case "stripe":
		return s.StripeEnabled
	case "khalti":
		return s.KhaltiEnabled
	case "esewa":
		return s.EsewaEnabled
	}
	return false
}

// DefaultPaymentSettings is used when no settings row has been written yet.
func DefaultPaymentSettings() *PaymentSettings {
	return &PaymentSettings{
		StripeEnabled:   true,
		KhaltiEnabled:   true,
		EsewaEnabled:    true,
		PrimaryProvider: "stripe",
		DefaultCurrency: "USD",
		AllowRecurring:  true,
	}
}
