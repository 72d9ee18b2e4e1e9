package campaign

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

var (
	ErrEmptyCSV           = fmt.Errorf("%w: CSV file is empty", domain.ErrInvalidInput)
	ErrMissingPhoneColumn = fmt.Errorf("%w: CSV must contain a phone number column (header containing \"phone\" or \"number\")", domain.ErrInvalidInput)
)

// ParseCSV parses recipient rows from raw CSV text.
func ParseCSV(text string) (*domain.CSVParseResult, error) {
	return ParseCSVReader(strings.NewReader(text))
}

// ParseCSVReader parses recipient rows from r. The first record is the
// header. Bad rows are collected in the result's Errors and skipped; only an
// empty input or a header without a phone column fails the whole parse.
//
// Row numbers follow the file: the header is row 1, the first data row is
// row 2. Blank lines are skipped by the reader and do not count as rows.
func ParseCSVReader(r io.Reader) (*domain.CSVParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if len(header) == 1 && header[0] == "" {
		return nil, ErrEmptyCSV
	}

	phoneIdx, nameIdx := -1, -1
	for i, h := range header {
		lower := strings.ToLower(h)
		if phoneIdx == -1 && (strings.Contains(lower, "phone") || strings.Contains(lower, "number")) {
			phoneIdx = i
			continue
		}
		if nameIdx == -1 && lower == "name" {
			nameIdx = i
		}
	}
	if phoneIdx == -1 {
		return nil, ErrMissingPhoneColumn
	}

	result := &domain.CSVParseResult{
		Recipients: []domain.Recipient{},
		Errors:     []domain.CSVRowError{},
	}

	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		result.TotalRows++

		if err != nil {
			result.Errors = append(result.Errors, domain.CSVRowError{Row: row, Error: err.Error()})
			continue
		}

		if len(record) != len(header) {
			result.Errors = append(result.Errors, domain.CSVRowError{
				Row:   row,
				Error: fmt.Sprintf("column count mismatch: expected %d, got %d", len(header), len(record)),
			})
			continue
		}

		phone := strings.TrimSpace(record[phoneIdx])
		if !IsValidPhoneNumber(phone) {
			result.Errors = append(result.Errors, domain.CSVRowError{
				Row:   row,
				Error: fmt.Sprintf("invalid phone number: %q", phone),
			})
			continue
		}

		recipient := domain.Recipient{
			PhoneNumber: NormalizePhoneNumber(phone),
			Variables:   make(map[string]string, len(header)),
		}
		for i, value := range record {
			switch i {
			case phoneIdx:
			case nameIdx:
				recipient.Name = strings.TrimSpace(value)
			default:
				recipient.Variables[header[i]] = strings.TrimSpace(value)
			}
		}

		result.Recipients = append(result.Recipients, recipient)
		result.ValidRows++
	}

	return result, nil
}
