package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"backend/internal/apperrors"
	"backend/internal/models"
)

type typeFamily int

const (
	familyOther typeFamily = iota
	familyInteger
	familyDecimal
	familyFloat
	familyBoolean
	familyDate
	familyTimestamp
	familyTimestampTZ
	familyTime
	familyUUID
	familyJSON
	familyEnum
	familyText
	familyBinary
)

var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05Z07",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		time.DateOnly,
	}
	timeLayouts = []string{"15:04:05", "15:04"}

	booleanWords = map[string]bool{
		"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true,
		"false": false, "f": false, "0": false, "no": false, "n": false, "off": false,
	}
)

func familyOf(col *models.ColumnDescriptor) typeFamily {
	if len(col.EnumValues) > 0 {
		return familyEnum
	}
	switch col.Type {
	case "smallint", "integer", "bigint":
		return familyInteger
	case "numeric":
		return familyDecimal
	case "real", "double precision":
		return familyFloat
	case "boolean":
		return familyBoolean
	case "date":
		return familyDate
	case "timestamp without time zone":
		return familyTimestamp
	case "timestamp with time zone":
		return familyTimestampTZ
	case "time without time zone":
		return familyTime
	case "uuid":
		return familyUUID
	case "json", "jsonb":
		return familyJSON
	case "text", "character varying", "character", "name", `"char"`, "citext":
		return familyText
	case "bytea":
		return familyBinary
	}
	return familyOther
}

// isTextual reports whether an empty string is a legitimate value for col.
func isTextual(col *models.ColumnDescriptor) bool {
	return familyOf(col) == familyText
}

// coerceValue converts a raw form or JSON value toward the column's type
// family. The result is bound as a statement parameter; strings are sent in
// text format and parsed by the store.
func coerceValue(col *models.ColumnDescriptor, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch familyOf(col) {
	case familyInteger:
		return coerceInteger(col, raw)
	case familyDecimal:
		return coerceDecimal(col, raw)
	case familyFloat:
		return coerceFloat(col, raw)
	case familyBoolean:
		return coerceBoolean(col, raw)
	case familyDate:
		t, err := coerceTime(col, raw, timestampLayouts, "a date (YYYY-MM-DD)")
		if err != nil {
			return nil, err
		}
		return t.Format(time.DateOnly), nil
	case familyTimestamp:
		t, err := coerceTime(col, raw, timestampLayouts, "a timestamp")
		if err != nil {
			return nil, err
		}
		return t.Format("2006-01-02 15:04:05.999999999"), nil
	case familyTimestampTZ:
		t, err := coerceTime(col, raw, timestampLayouts, "a timestamp")
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339Nano), nil
	case familyTime:
		t, err := coerceTime(col, raw, timeLayouts, "a time of day (HH:MM[:SS])")
		if err != nil {
			return nil, err
		}
		return t.Format("15:04:05.999999"), nil
	case familyUUID:
		return coerceUUID(col, raw)
	case familyJSON:
		return coerceJSON(col, raw)
	case familyEnum:
		return coerceEnum(col, raw)
	case familyText:
		return coerceText(col, raw)
	case familyBinary:
		return coerceBinary(col, raw)
	default:
		return coerceOther(col, raw)
	}
}

func invalid(col *models.ColumnDescriptor, raw any, reason string) error {
	return apperrors.NewInvalidFieldType(col.Name, raw, reason)
}

// scalarText renders a JSON scalar as the text a form would have sent.
func scalarText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

func coerceInteger(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "expected an integer")
	}

	bits := 64
	switch col.Type {
	case "smallint":
		bits = 16
	case "integer":
		bits = 32
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if errors.Is(err, strconv.ErrRange) {
		return nil, invalid(col, raw, "out of range for "+col.Type)
	}
	if err != nil {
		return nil, invalid(col, raw, "expected an integer")
	}
	return n, nil
}

func coerceDecimal(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "expected a decimal number")
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return "NaN", nil
	}
	if strings.Contains(s, "/") {
		return nil, invalid(col, raw, "expected a decimal number")
	}
	if _, ok := new(big.Rat).SetString(s); !ok {
		return nil, invalid(col, raw, "expected a decimal number")
	}
	return s, nil
}

func coerceFloat(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "expected a number")
	}

	bits := 64
	if col.Type == "real" {
		bits = 32
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if errors.Is(err, strconv.ErrRange) {
		return nil, invalid(col, raw, "out of range for "+col.Type)
	}
	if err != nil {
		return nil, invalid(col, raw, "expected a number")
	}
	return f, nil
}

func coerceBoolean(col *models.ColumnDescriptor, raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "expected a boolean")
	}
	b, ok := booleanWords[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return nil, invalid(col, raw, "expected a boolean")
	}
	return b, nil
}

func coerceTime(col *models.ColumnDescriptor, raw any, layouts []string, want string) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, invalid(col, raw, "expected "+want)
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid(col, raw, "expected "+want)
}

func coerceUUID(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(col, raw, "expected a UUID")
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, invalid(col, raw, "expected a UUID")
	}
	return id.String(), nil
}

func coerceJSON(col *models.ColumnDescriptor, raw any) (any, error) {
	if s, ok := raw.(string); ok {
		if !json.Valid([]byte(s)) {
			return nil, invalid(col, raw, "expected valid JSON")
		}
		return s, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, invalid(col, raw, "expected valid JSON")
	}
	return string(encoded), nil
}

func coerceEnum(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := scalarText(raw)
	if !ok || !slices.Contains(col.EnumValues, s) {
		return nil, invalid(col, raw, "expected one of "+strings.Join(col.EnumValues, ", "))
	}
	return s, nil
}

func coerceText(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "expected text")
	}
	if col.MaxLength != nil && utf8.RuneCountInString(s) > *col.MaxLength {
		return nil, invalid(col, raw, fmt.Sprintf("longer than %d characters", *col.MaxLength))
	}
	return s, nil
}

func coerceBinary(col *models.ColumnDescriptor, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(col, raw, "expected base64-encoded bytes")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, invalid(col, raw, "expected base64-encoded bytes")
}

// coerceOther passes text through for types without a dedicated family
// (intervals, network addresses, arrays). The store has the final word.
// Arrays are shown as JSON text, so that form is accepted back as well as
// the store's own {a,b} literal.
func coerceOther(col *models.ColumnDescriptor, raw any) (any, error) {
	if s, ok := raw.(string); ok && col.Type == "ARRAY" && strings.HasPrefix(strings.TrimSpace(s), "[") {
		items, err := decodeJSONArray(s)
		if err != nil {
			return nil, invalid(col, raw, "expected a JSON array")
		}
		raw = items
	}

	switch v := raw.(type) {
	case []any:
		if col.Type == "ARRAY" {
			literal, err := arrayLiteral(v)
			if err != nil {
				return nil, invalid(col, raw, err.Error())
			}
			return literal, nil
		}
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, invalid(col, raw, "unsupported value")
		}
		return string(encoded), nil
	}

	s, ok := scalarText(raw)
	if !ok {
		return nil, invalid(col, raw, "unsupported value for "+col.Type)
	}
	return s, nil
}

func decodeJSONArray(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after array")
	}
	return items, nil
}

// arrayLiteral renders a JSON array as a postgres array literal.
func arrayLiteral(items []any) (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		switch v := item.(type) {
		case nil:
			b.WriteString("NULL")
		case []any:
			nested, err := arrayLiteral(v)
			if err != nil {
				return "", err
			}
			b.WriteString(nested)
		default:
			s, ok := scalarText(v)
			if !ok {
				return "", errors.New("array elements must be scalars")
			}
			b.WriteByte('"')
			b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s))
			b.WriteByte('"')
		}
	}
	b.WriteByte('}')
	return b.String(), nil
}

// isBlobPlaceholder reports whether raw is the {"$blob": n} marker a client
// echoes back for a binary value it never saw.
func isBlobPlaceholder(raw any) bool {
	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	_, ok = m["$blob"]
	return ok
}
