package shipping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FallbackZone is the country wildcard matched when no zone lists the country.
const FallbackZone = "*"

// Method is a shipping method with its defaults.
type Method struct {
	Code string `json:"code"`
	Name string `json:"name"`
	// DefaultRate applies when the zone has no rate of its own.
	DefaultRate decimal.Decimal `json:"defaultRate"`
	// DefaultFreeThreshold applies when the zone has none. Nil means never free.
	DefaultFreeThreshold *decimal.Decimal `json:"defaultFreeThreshold,omitempty"`
	// PerKg is added for every started kilogram when a weight is supplied.
	PerKg   decimal.Decimal `json:"perKg"`
	MinDays int             `json:"minDays"`
	MaxDays int             `json:"maxDays"`
}

// ZoneRate overrides method defaults inside one zone.
type ZoneRate struct {
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	FreeThreshold *decimal.Decimal `json:"freeThreshold,omitempty"`
	MinDays       int              `json:"minDays,omitempty"`
	MaxDays       int              `json:"maxDays,omitempty"`
}

// Zone groups countries that share rates.
type Zone struct {
	Code      string              `json:"code"`
	Name      string              `json:"name"`
	Countries []string            `json:"countries"`
	Rates     map[string]ZoneRate `json:"rates"`
}

// Table is the complete rate table. It is loaded once and never mutated.
type Table struct {
	Methods []Method `json:"methods"`
	Zones   []Zone   `json:"zones"`
	// Holidays are recurring MM-DD dates that are not business days.
	Holidays []string `json:"holidays"`
}

// Validate checks the table is internally consistent.
func (t *Table) Validate() error {
	if len(t.Methods) == 0 {
		return errors.New("shipping table has no methods")
	}
	if len(t.Zones) == 0 {
		return errors.New("shipping table has no zones")
	}

	methods := make(map[string]bool, len(t.Methods))
	for _, m := range t.Methods {
		if m.Code == "" {
			return errors.New("shipping method code is required")
		}
		if methods[m.Code] {
			return fmt.Errorf("duplicate shipping method %q", m.Code)
		}
		if m.DefaultRate.IsNegative() || m.PerKg.IsNegative() {
			return fmt.Errorf("shipping method %q has a negative rate", m.Code)
		}
		if m.MinDays < 0 || m.MaxDays < m.MinDays {
			return fmt.Errorf("shipping method %q has an invalid lead time", m.Code)
		}
		methods[m.Code] = true
	}

	for _, z := range t.Zones {
		if z.Code == "" || len(z.Countries) == 0 {
			return fmt.Errorf("shipping zone %q must have a code and countries", z.Code)
		}
		for method, rate := range z.Rates {
			if !methods[method] {
				return fmt.Errorf("shipping zone %q references unknown method %q", z.Code, method)
			}
			if rate.Rate != nil && rate.Rate.IsNegative() {
				return fmt.Errorf("shipping zone %q has a negative %s rate", z.Code, method)
			}
			if rate.MaxDays < rate.MinDays {
				return fmt.Errorf("shipping zone %q has an invalid %s lead time", z.Code, method)
			}
		}
	}

	for _, h := range t.Holidays {
		if _, err := time.Parse("01-02", h); err != nil {
			return fmt.Errorf("invalid holiday %q: expected MM-DD", h)
		}
	}

	return nil
}

func (t *Table) method(code string) (Method, bool) {
	for _, m := range t.Methods {
		if m.Code == code {
			return m, true
		}
	}
	return Method{}, false
}

// zoneFor returns the first zone listing country, else the fallback zone.
func (t *Table) zoneFor(country string) (Zone, bool) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country != "" {
		for _, z := range t.Zones {
			for _, c := range z.Countries {
				if strings.EqualFold(c, country) {
					return z, true
				}
			}
		}
	}
	for _, z := range t.Zones {
		for _, c := range z.Countries {
			if c == FallbackZone {
				return z, true
			}
		}
	}
	return Zone{}, false
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

// DefaultTable returns the built-in rates used when no table file is configured.
func DefaultTable() *Table {
	return &Table{
		Methods: []Method{
			{
				Code:        "standard",
				Name:        "Standard delivery",
				DefaultRate: money("24.90"),
				PerKg:       money("0.50"),
				MinDays:     5,
				MaxDays:     10,
			},
			{
				Code:        "express",
				Name:        "Express delivery",
				DefaultRate: money("49.00"),
				PerKg:       money("1.00"),
				MinDays:     2,
				MaxDays:     4,
			},
		},
		Zones: []Zone{
			{
				Code:      "FR",
				Name:      "France",
				Countries: []string{"FR", "MC"},
				Rates: map[string]ZoneRate{
					"standard": {Rate: moneyPtr("4.90"), FreeThreshold: moneyPtr("0"), MinDays: 2, MaxDays: 3},
					"express":  {Rate: moneyPtr("12.00"), MinDays: 1, MaxDays: 1},
				},
			},
			{
				Code: "EU",
				Name: "European Union",
				Countries: []string{
					"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "GR", "HR", "HU",
					"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK",
				},
				Rates: map[string]ZoneRate{
					"standard": {Rate: moneyPtr("9.90"), FreeThreshold: moneyPtr("150"), MinDays: 3, MaxDays: 5},
					"express":  {Rate: moneyPtr("24.00"), MinDays: 1, MaxDays: 2},
				},
			},
			{
				Code:      "WORLD",
				Name:      "Rest of the world",
				Countries: []string{FallbackZone},
				Rates: map[string]ZoneRate{
					"standard": {Rate: moneyPtr("24.90"), FreeThreshold: moneyPtr("300")},
				},
			},
		},
		Holidays: []string{"01-01", "05-01", "05-08", "07-14", "08-15", "11-01", "11-11", "12-25"},
	}
}
