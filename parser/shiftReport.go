package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoShiftData is returned when a payload contains no recognizable sales
// figures. The caller records the submission as a parse error; a record is
// never returned partially populated.
var ErrNoShiftData = errors.New("unable to parse shift data")

// ParsedShift is the canonical record recovered from one gateway export file.
type ParsedShift struct {
	ReportType      *string
	RegisterId      *string
	OperatorId      *string
	StartAt         *time.Time
	EndAt           *time.Time
	TotalSales      decimal.Decimal
	FuelSales       decimal.Decimal
	NonFuelSales    decimal.Decimal
	Refunds         decimal.Decimal
	VoidCount       int
	DiscountTotal   decimal.Decimal
	TaxTotal        decimal.Decimal
	CustomerCount   *int
	CashShort       decimal.Decimal
	DepartmentSales []DepartmentSale
}

type DepartmentSale struct {
	Name   string
	Amount decimal.Decimal
}

// Candidate name fragments per logical field, in priority order. Matching is
// case-insensitive substring over flattened tag/attribute names, so vendor
// variants like <ShiftTotalSales> or totalSalesAmount="..." all resolve.
// New vendor spellings are added here, not as new code paths.
var (
	reportTypeKeys = []string{"ReportType", "ReportName", "ShiftReport", "StoreSummary"}
	registerKeys   = []string{"Register", "RegisterId", "Till", "POS"}
	operatorKeys   = []string{"Operator", "Cashier", "Employee"}
	startKeys      = []string{"Start", "From", "Begin", "Open"}
	endKeys        = []string{"End", "To", "Close"}
	totalKeys      = []string{"TotalSales", "Total", "Gross"}
	fuelKeys       = []string{"FuelSales", "Fuel", "Gas"}
	nonFuelKeys    = []string{"InsideSales", "NonFuel", "Merchandise"}
	refundKeys     = []string{"Refund", "Return"}
	voidKeys       = []string{"Void", "Voids"}
	discountKeys   = []string{"Discount", "Markdown"}
	taxKeys        = []string{"Tax"}
	customerKeys   = []string{"CustomerCount", "Customers", "Transactions"}
	cashShortKeys  = []string{"CashShort", "Short"}
)

var departmentNamePattern = regexp.MustCompile(`(?i)dept|department|category|sales`)

// ParseShiftReport recovers a canonical shift record from markup of unknown
// schema, or reports ErrNoShiftData when nothing sales-like is found.
func ParseShiftReport(raw []byte) (*ParsedShift, error) {
	flat, allStrings, err := flatten(raw)
	if err != nil {
		return nil, err
	}

	totalSales := findNumberByKeys(flat, totalKeys)
	fuelSales := findNumberByKeys(flat, fuelKeys)
	nonFuelSales := findNumberByKeys(flat, nonFuelKeys)

	// A report where every sales figure is zero is indistinguishable from a
	// failed match; surface it for operator review instead of persisting a
	// zero-valued shift.
	if totalSales.IsZero() && fuelSales.IsZero() && nonFuelSales.IsZero() {
		return nil, ErrNoShiftData
	}

	voidCount := int(findNumberByKeys(flat, voidKeys).Round(0).IntPart())
	customerCount := int(findNumberByKeys(flat, customerKeys).Round(0).IntPart())

	parsed := &ParsedShift{
		ReportType:      findStringByKeys(flat, reportTypeKeys),
		RegisterId:      findStringByKeys(flat, registerKeys),
		OperatorId:      findStringByKeys(flat, operatorKeys),
		StartAt:         parseDate(findStringByKeys(flat, startKeys)),
		EndAt:           parseDate(findStringByKeys(flat, endKeys)),
		TotalSales:      totalSales,
		FuelSales:       fuelSales,
		NonFuelSales:    nonFuelSales,
		Refunds:         findNumberByKeys(flat, refundKeys),
		VoidCount:       voidCount,
		DiscountTotal:   findNumberByKeys(flat, discountKeys),
		TaxTotal:        findNumberByKeys(flat, taxKeys),
		CashShort:       findNumberByKeys(flat, cashShortKeys),
		DepartmentSales: inferDepartmentSales(allStrings),
	}
	if customerCount != 0 {
		parsed.CustomerCount = &customerCount
	}

	return parsed, nil
}

// flatMap is a name -> values multimap that remembers first-appearance order,
// since fragment resolution must be deterministic over document order.
type flatMap struct {
	keys   []string
	values map[string][]string
}

func (f *flatMap) add(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = append(f.values[key], value)
}

// flatten tokenizes the markup without assuming any schema. Every attribute
// value and every non-blank character-data run is recorded twice: under its
// tag/attribute name, and in a flat document-order string sequence used by
// department inference.
func flatten(raw []byte) (*flatMap, []string, error) {
	flat := &flatMap{values: map[string][]string{}}
	var allStrings []string

	decoder := xml.NewDecoder(bytes.NewReader(raw))
	decoder.Strict = false
	var stack []string
	sawElement := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			sawElement = true
			stack = append(stack, t.Name.Local)
			for _, attr := range t.Attr {
				value := strings.TrimSpace(attr.Value)
				if value == "" {
					continue
				}
				flat.add(attr.Name.Local, value)
				allStrings = append(allStrings, value)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			value := strings.TrimSpace(string(t))
			if value == "" || len(stack) == 0 {
				continue
			}
			flat.add(stack[len(stack)-1], value)
			allStrings = append(allStrings, value)
		}
	}

	if !sawElement {
		return nil, nil, ErrNoShiftData
	}
	return flat, allStrings, nil
}

// findStringByKeys returns the first non-empty value of the first flattened
// key containing a candidate fragment, in fragment priority order.
func findStringByKeys(flat *flatMap, fragments []string) *string {
	for _, fragment := range fragments {
		lower := strings.ToLower(fragment)
		for _, key := range flat.keys {
			if !strings.Contains(strings.ToLower(key), lower) {
				continue
			}
			for _, value := range flat.values[key] {
				if value != "" {
					v := value
					return &v
				}
			}
			// Only the first matching key is consulted per fragment.
			break
		}
	}
	return nil
}

func findNumberByKeys(flat *flatMap, fragments []string) decimal.Decimal {
	for _, fragment := range fragments {
		lower := strings.ToLower(fragment)
		for _, key := range flat.keys {
			if !strings.Contains(strings.ToLower(key), lower) {
				continue
			}
			for _, value := range flat.values[key] {
				if value == "" {
					continue
				}
				// Coercion failure falls back to the amount default; the
				// match itself already won the fragment priority.
				if n, ok := coerceNumber(value); ok {
					return n
				}
				return decimal.Zero
			}
			break
		}
	}
	return decimal.Zero
}

// coerceNumber strips everything except digits, sign, and decimal point
// before parsing. Vendors format currency symbols, thousands separators, and
// units inconsistently; leniency here is deliberate.
func coerceNumber(value string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}
	n, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return n, true
}

// dateLayouts covers the timestamp spellings seen across gateway vendors.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006/01/02 15:04:05",
	"20060102150405",
}

// parseDate attempts generic timestamp parsing; an unparseable value leaves
// the field absent rather than failing the record.
func parseDate(value *string) *time.Time {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// inferDepartmentSales scans every scalar in document order and pairs each
// department-looking name with the immediately following value when that
// value is numeric. Pairing is adjacency in flattened order, not tree
// structure; the fragility is known and the behavior is kept as-is because
// real vendor files depend on it.
func inferDepartmentSales(allStrings []string) []DepartmentSale {
	var departments []DepartmentSale
	for i := 0; i+1 < len(allStrings); i++ {
		name := allStrings[i]
		if !departmentNamePattern.MatchString(name) {
			continue
		}
		amount, ok := coerceNumber(allStrings[i+1])
		if !ok {
			continue
		}
		departments = append(departments, DepartmentSale{Name: name, Amount: amount})
	}
	return departments
}
