// Package codec converts ledger collections to and from their CSV and JSON
// transport forms.
package codec

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

const utf8BOM = "\ufeff"

// TimeLayout is the createdAt format written to CSV exports.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// CustomerColumns are the required CSV columns, in export order.
var CustomerColumns = []string{"id", "name", "phone", "createdAt", "balance"}

// WriteCustomersCSV writes customers as a BOM-prefixed CSV document.
// Fields containing a comma, quote or newline are quoted.
func WriteCustomersCSV(w io.Writer, customers []models.Customer) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CustomerColumns); err != nil {
		return err
	}
	for _, c := range customers {
		record := []string{
			c.ID,
			c.Name,
			c.Phone,
			c.CreatedAt.UTC().Format(TimeLayout),
			c.Balance.StringFixed(models.MoneyScale),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportOptions controls the values filled in for unusable CSV fields.
type ImportOptions struct {
	Now   time.Time
	NewID func() string
}

// ParseCustomersCSV reads a customer CSV. Columns are matched by header name;
// rows are split on every comma, so quoted fields with embedded commas are
// not supported. Each customer's balance also becomes its opening balance.
func ParseCustomersCSV(r io.Reader, opts ImportOptions) ([]models.Customer, error) {
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC().Truncate(time.Millisecond)
	}

	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(lines) < 2 {
		return nil, models.ErrEmptyFile
	}

	header := splitRow(strings.TrimPrefix(lines[0], utf8BOM))
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range CustomerColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Missing: missing}
	}

	field := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	seen := make(map[string]int)
	customers := make([]models.Customer, 0, len(lines)-1)
	for n, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := splitRow(line)

		id := field(row, "id")
		if id == "" {
			id = opts.NewID()
		}
		if first, dup := seen[id]; dup {
			return nil, models.Invalid("line %d: duplicate customer id %q (first on line %d)", n+2, id, first)
		}
		seen[id] = n + 2

		created, err := time.Parse(time.RFC3339Nano, field(row, "createdAt"))
		if err != nil {
			created = opts.Now
		}
		balance := parseBalance(field(row, "balance"))

		customers = append(customers, models.Customer{
			ID:             id,
			Name:           field(row, "name"),
			Phone:          field(row, "phone"),
			CreatedAt:      created.UTC(),
			Balance:        balance,
			OpeningBalance: balance,
		})
	}
	if len(customers) == 0 {
		return nil, models.ErrEmptyFile
	}
	return customers, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, models.Invalid("read csv line %d: %v", len(lines)+1, err)
	}
	return lines, nil
}

func splitRow(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// parseBalance reads a float, falling back to zero, rounded to cents.
// Values too large to store in minor units also read as zero.
func parseBalance(s string) decimal.Decimal {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	d := decimal.NewFromFloat(f).Round(models.MoneyScale)
	if !models.InMinorRange(d) {
		return decimal.Zero
	}
	return d
}
