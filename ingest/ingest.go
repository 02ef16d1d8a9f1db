// Package ingest reads listing batches from spreadsheet files. Headers are
// matched case-insensitively with spaces and underscores ignored, so
// "Min Order", "min_order" and "MinOrder" all land on the same attribute.
package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"phone_lister/models"
)

// ReadBatch dispatches on the file extension. The platform column is
// optional; rows without one fall back to defaultPlatform.
func ReadBatch(path, defaultPlatform string) ([]BatchRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, defaultPlatform)
	case ".csv":
		return ReadCSV(path, defaultPlatform)
	}
	return nil, fmt.Errorf("unsupported batch format %q", filepath.Ext(path))
}

// BatchRow pairs a listing with its target platform.
type BatchRow struct {
	Platform string
	Listing  models.ListingRecord
}

func ReadXLSX(path, defaultPlatform string) ([]BatchRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rowsIter, err := f.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	defer func() { _ = rowsIter.Close() }()

	var (
		headers []string
		out     []BatchRow
		rowIdx  int
	)
	for rowsIter.Next() {
		rowIdx++
		cols, err := rowsIter.Columns()
		if err != nil {
			return nil, err
		}
		if rowIdx == 1 {
			headers = cols
			continue
		}
		if blank(cols) {
			continue
		}
		row, err := buildRow(headers, cols, defaultPlatform)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIdx, err)
		}
		out = append(out, row)
	}
	if headers == nil {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return out, nil
}

func ReadCSV(path, defaultPlatform string) ([]BatchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	headers := records[0]
	var out []BatchRow
	for i, cols := range records[1:] {
		if blank(cols) {
			continue
		}
		row, err := buildRow(headers, cols, defaultPlatform)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, "_", "")
	return h
}

func buildRow(headers, cols []string, defaultPlatform string) (BatchRow, error) {
	row := BatchRow{Platform: defaultPlatform}
	l := &row.Listing
	var parseErr error

	num := func(s string) float64 {
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("bad number %q", s)
		}
		return v
	}
	integer := func(s string) int {
		return int(num(s))
	}
	list := func(s string) []string {
		var out []string
		for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	for i, h := range headers {
		if i >= len(cols) {
			break
		}
		val := strings.TrimSpace(cols[i])
		if val == "" {
			continue
		}
		switch normalizeHeader(h) {
		case "platform", "site", "marketplace":
			row.Platform = strings.ToLower(val)
		case "producttype", "type":
			l.ProductType = models.ProductType(strings.ToLower(val))
		case "brand", "manufacturer":
			l.Brand = val
		case "model":
			l.Model = val
		case "modelcode", "sku":
			l.ModelCode = val
		case "memory", "storage", "capacity":
			l.Memory = models.NormalizeMemory(val)
		case "color", "colour":
			l.Color = val
		case "condition":
			l.Condition = models.Condition(val)
		case "conditiongrade", "grade":
			l.ConditionGrade = strings.ToUpper(val)
		case "lcddefects":
			l.LCDDefects = val
		case "simlock", "lockstatus":
			l.SimLock = models.SimLock(val)
		case "carrier", "operator":
			l.Carrier = val
		case "marketspec", "spec", "region":
			l.MarketSpec = val
		case "price":
			l.Price = num(val)
		case "currency":
			l.Currency = strings.ToUpper(val)
		case "quantity", "qty":
			l.Quantity = integer(val)
		case "minorder", "minimumorder", "moq":
			l.MinOrder = integer(val)
		case "packaging":
			l.Packaging = val
		case "weight":
			l.Weight = num(val)
		case "weightunit":
			l.WeightUnit = val
		case "incoterm", "incoterms":
			l.Incoterm = strings.ToUpper(val)
		case "localpickup", "pickup":
			l.LocalPickup = truthy(val)
		case "deliverydays", "leadtime":
			l.DeliveryDays = integer(val)
		case "country":
			l.Country = val
		case "state", "province":
			l.State = val
		case "description", "comments":
			l.Description = val
		case "keywords", "tags":
			l.Keywords = list(val)
		case "payments", "acceptedpayments", "paymentmethods":
			l.Payments = list(val)
		case "availablefrom", "available":
			if t, err := parseDate(val); err == nil {
				l.AvailableFrom = t
			} else if parseErr == nil {
				parseErr = err
			}
		}
	}
	if parseErr != nil {
		return row, parseErr
	}
	if l.ProductType == "" {
		l.ProductType = models.ProductPhone
	}
	if l.Quantity > 0 && l.MinOrder == 0 {
		l.MinOrder = 1
	}
	if row.Platform == "" {
		return row, fmt.Errorf("no platform column and no -platform flag")
	}
	return row, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "01/02/2006", "2 Jan 2006"}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}
