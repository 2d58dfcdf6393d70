package shipping

import (
	"fmt"
	"strings"
	"time"

	"atelier-checkout/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultMethod is used when a checkout does not name a shipping method.
const DefaultMethod = "standard"

// QuoteRequest is the input of a shipping quote.
type QuoteRequest struct {
	Method      string          `json:"method"`
	Country     string          `json:"country"`
	CartTotal   decimal.Decimal `json:"cartTotal"`
	WeightGrams *int            `json:"weightGrams,omitempty"`
}

// DeliveryRange is the earliest and latest expected delivery date.
type DeliveryRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Quote is the shipping cost and delivery estimate for one request.
type Quote struct {
	Method            string          `json:"method"`
	Zone              string          `json:"zone"`
	Cost              decimal.Decimal `json:"cost"`
	IsFree            bool            `json:"isFree"`
	EstimatedDelivery DeliveryRange   `json:"estimatedDelivery"`
}

// Calculator evaluates quotes against an immutable rate table.
type Calculator struct {
	table    *Table
	holidays map[string]struct{}
}

// NewCalculator validates table and returns a calculator for it.
func NewCalculator(table *Table) (*Calculator, error) {
	if table == nil {
		return nil, fmt.Errorf("shipping table is required")
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shipping table: %w", err)
	}

	holidays := make(map[string]struct{}, len(table.Holidays))
	for _, h := range table.Holidays {
		holidays[h] = struct{}{}
	}

	return &Calculator{table: table, holidays: holidays}, nil
}

// Quote prices req as of today. It has no side effects.
func (c *Calculator) Quote(req QuoteRequest, today time.Time) (*Quote, error) {
	code := strings.ToLower(strings.TrimSpace(req.Method))
	if code == "" {
		code = DefaultMethod
	}

	method, ok := c.table.method(code)
	if !ok {
		return nil, model.ErrUnknownMethod
	}

	zone, ok := c.table.zoneFor(req.Country)
	if !ok {
		return nil, model.ErrUnsupportedCountry
	}

	zoneRate, hasZoneRate := zone.Rates[code]

	base := method.DefaultRate
	threshold := method.DefaultFreeThreshold
	minDays, maxDays := method.MinDays, method.MaxDays
	if hasZoneRate {
		if zoneRate.Rate != nil {
			base = *zoneRate.Rate
		}
		if zoneRate.FreeThreshold != nil {
			threshold = zoneRate.FreeThreshold
		}
		if zoneRate.MaxDays > 0 {
			minDays, maxDays = zoneRate.MinDays, zoneRate.MaxDays
		}
	}

	quote := &Quote{
		Method: code,
		Zone:   zone.Code,
		EstimatedDelivery: DeliveryRange{
			Min: AddBusinessDays(today, minDays, c.holidays),
			Max: AddBusinessDays(today, maxDays, c.holidays),
		},
	}

	if threshold != nil && req.CartTotal.GreaterThanOrEqual(*threshold) {
		quote.Cost = decimal.Zero
		quote.IsFree = true
		return quote, nil
	}

	quote.Cost = base.Add(method.PerKg.Mul(decimal.NewFromInt(startedKilograms(req.WeightGrams)))).Round(2)
	return quote, nil
}

// startedKilograms rounds a weight up to whole kilograms. Missing or
// non-positive weights count as zero.
func startedKilograms(grams *int) int64 {
	if grams == nil || *grams <= 0 {
		return 0
	}
	return int64((*grams + 999) / 1000)
}

// AddBusinessDays returns the date n business days after start, skipping
// weekends and recurring MM-DD holidays. The result keeps start's location
// and is truncated to midnight.
func AddBusinessDays(start time.Time, n int, holidays map[string]struct{}) time.Time {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for added := 0; added < n; {
		day = day.AddDate(0, 0, 1)
		if !isBusinessDay(day, holidays) {
			continue
		}
		added++
	}
	return day
}

func isBusinessDay(day time.Time, holidays map[string]struct{}) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := holidays[day.Format("01-02")]
	return !holiday
}
