package alerts

import (
	"context"
	"fmt"

	"github.com/forecourtlabs/pos_backend/models"
	"github.com/shopspring/decimal"
)

// Alert type identifiers as stored in the alerts table. Downstream consumers
// filter on these, so they are part of the API surface.
const (
	TypeHighVoids       = "HighVoids"
	TypeZeroInsideSales = "ZeroInsideSales"
	TypeRefunds         = "Refunds"
	TypeLowSalesDrop    = "LowSalesDrop"
	TypeCashShort       = "CashShort"
)

const (
	highVoidThreshold = 5
	dipHistoryWindow  = 40
	dipSampleSize     = 4
	dipMinimumSamples = 3
)

// A shift more than 30% below its weekday average counts as a sales dip.
var dipRatio = decimal.NewFromFloat(0.7)

// RuleHit is one rule firing against a shift, before persistence.
type RuleHit struct {
	Severity models.AlertSeverity
	Type     string
	Title    string
	Message  string
}

// EvaluateShift runs every alert rule against the shift. History is the
// store's recent shifts with a known start time, newest first, not including
// the shift under evaluation; only the sales-dip rule consults it.
func EvaluateShift(shift *models.Shift, history []models.Shift) []RuleHit {
	var hits []RuleHit

	if shift.VoidCount >= highVoidThreshold {
		hits = append(hits, RuleHit{
			Severity: models.AlertSeverityCritical,
			Type:     TypeHighVoids,
			Title:    "High void count",
			Message:  fmt.Sprintf("Void count is %d, which exceeds the critical threshold.", shift.VoidCount),
		})
	}

	if shift.NonFuelSales.IsZero() && shift.TotalSales.IsPositive() {
		hits = append(hits, RuleHit{
			Severity: models.AlertSeverityWarn,
			Type:     TypeZeroInsideSales,
			Title:    "Zero inside sales",
			Message:  "Inside sales are zero while total sales are above zero.",
		})
	}

	if shift.Refunds.IsPositive() {
		hits = append(hits, RuleHit{
			Severity: models.AlertSeverityInfo,
			Type:     TypeRefunds,
			Title:    "Refunds recorded",
			Message:  fmt.Sprintf("Refunds total $%s for this shift.", shift.Refunds.StringFixed(2)),
		})
	}

	if hit, ok := evaluateSalesDip(shift, history); ok {
		hits = append(hits, hit)
	}

	return hits
}

// evaluateSalesDip compares the shift's total against the average of the most
// recent shifts that started on the same UTC weekday. Fewer than three
// comparable shifts means there is no baseline and the rule stays quiet.
func evaluateSalesDip(shift *models.Shift, history []models.Shift) (RuleHit, bool) {
	anchor := shift.CreatedAt
	if shift.StartAt != nil {
		anchor = *shift.StartAt
	}
	weekday := anchor.UTC().Weekday()

	var samples []models.Shift
	for _, past := range history {
		if past.StartAt == nil || past.StartAt.UTC().Weekday() != weekday {
			continue
		}
		samples = append(samples, past)
		if len(samples) == dipSampleSize {
			break
		}
	}
	if len(samples) < dipMinimumSamples {
		return RuleHit{}, false
	}

	sum := decimal.Zero
	for _, sample := range samples {
		sum = sum.Add(sample.TotalSales)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(samples))))

	if shift.TotalSales.GreaterThanOrEqual(average.Mul(dipRatio)) {
		return RuleHit{}, false
	}
	return RuleHit{
		Severity: models.AlertSeverityWarn,
		Type:     TypeLowSalesDrop,
		Title:    "Sales dip vs typical",
		Message: fmt.Sprintf("Total sales $%s are more than 30%% below the recent average of $%s.",
			shift.TotalSales.StringFixed(2), average.StringFixed(2)),
	}, true
}

// EvaluateAndPersist loads the store's recent history, evaluates the rules,
// and records one alert row per hit. Alerts created so far are returned even
// when a later insert fails.
func EvaluateAndPersist(ctx context.Context, shift *models.Shift) ([]models.Alert, error) {
	history, err := models.RecentShiftsWithStart(ctx, shift.StoreId, shift.ID, dipHistoryWindow)
	if err != nil {
		return nil, err
	}

	hits := EvaluateShift(shift, history)
	alerts := make([]models.Alert, 0, len(hits))
	for _, hit := range hits {
		shiftId := shift.ID
		alert, err := models.CreateAlert(ctx, &models.NewAlert{
			StoreId:  shift.StoreId,
			ShiftId:  &shiftId,
			Severity: hit.Severity,
			Type:     hit.Type,
			Title:    hit.Title,
			Message:  hit.Message,
		})
		if err != nil {
			return alerts, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

// CashShortHit builds the cash-short rule hit for a freshly parsed shift. The
// ingest path raises it directly because the short amount lives on the parsed
// payload, not the shift row.
func CashShortHit(amount decimal.Decimal) RuleHit {
	return RuleHit{
		Severity: models.AlertSeverityWarn,
		Type:     TypeCashShort,
		Title:    "Cash short detected",
		Message:  fmt.Sprintf("Cash short amount is $%s.", amount.StringFixed(2)),
	}
}
