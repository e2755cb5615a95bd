package cities

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tspga/internal/model"
)

// ReadCSV parses city records of the form "name,x,y" or "x,y". A leading row
// whose coordinate fields are all non-numeric is treated as a header.
func ReadCSV(r io.Reader) ([]model.City, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var out []model.City
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &MalformedInputError{Line: parseErr.Line, Reason: "unreadable record", Err: parseErr.Err}
			}
			return nil, &MalformedInputError{Reason: "read city records", Err: err}
		}
		line, _ := reader.FieldPos(0)

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		city, err := parseRecord(record, len(out), line)
		if err != nil {
			return nil, err
		}
		out = append(out, city)
	}

	if len(out) < MinCities {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("need at least %d city records, got %d", MinCities, len(out))}
	}
	return out, nil
}

// LoadFile reads a city CSV file and builds its table.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedInputError{Reason: "open city file", Err: err}
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Load(records)
}

func parseRecord(record []string, index, line int) (model.City, error) {
	var name, xField, yField string
	switch len(record) {
	case 2:
		name, xField, yField = strconv.Itoa(index), record[0], record[1]
	case 3:
		name, xField, yField = strings.TrimSpace(record[0]), record[1], record[2]
	default:
		return model.City{}, &MalformedInputError{Line: line, Reason: fmt.Sprintf("expected 2 or 3 fields, got %d", len(record))}
	}
	if name == "" {
		name = strconv.Itoa(index)
	}

	x, err := parseCoordinate(xField)
	if err != nil {
		return model.City{}, &MalformedInputError{Line: line, Field: "x", Reason: fmt.Sprintf("non-numeric coordinate %q", xField), Err: err}
	}
	y, err := parseCoordinate(yField)
	if err != nil {
		return model.City{}, &MalformedInputError{Line: line, Field: "y", Reason: fmt.Sprintf("non-numeric coordinate %q", yField), Err: err}
	}
	return model.City{ID: index, Name: name, X: x, Y: y}, nil
}

func parseCoordinate(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, fmt.Errorf("coordinate must be finite")
	}
	return v, nil
}

func isHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	for _, field := range record[len(record)-2:] {
		if _, err := parseCoordinate(field); err == nil {
			return false
		}
	}
	return true
}
