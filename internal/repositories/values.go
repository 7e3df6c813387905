package repositories

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"backend/internal/models"
)

const timestampLayout = "2006-01-02T15:04:05.999999999"

// scanRows collects every row into models.Row keyed by the result's field
// names, which are always the quoted schema columns the caller selected.
func scanRows(rows pgx.Rows) ([]models.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]models.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		raw := rows.RawValues()
		row := make(models.Row, len(fields))
		for i, fd := range fields {
			if fd.DataTypeOID == pgtype.JSONOID || fd.DataTypeOID == pgtype.JSONBOID {
				row[fd.Name] = jsonValue(raw[i], fd.DataTypeOID, fd.Format)
				continue
			}
			row[fd.Name] = toValue(values[i], fd.DataTypeOID)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// toValue converts a value decoded by pgx into the wire-safe union.
func toValue(v any, oid uint32) models.Value {
	switch t := v.(type) {
	case nil:
		return models.Null()
	case string:
		return models.String(t)
	case bool:
		return models.Bool(t)
	case int16:
		return models.Number(json.Number(strconv.FormatInt(int64(t), 10)))
	case int32:
		return models.Number(json.Number(strconv.FormatInt(int64(t), 10)))
	case int64:
		return models.Number(json.Number(strconv.FormatInt(t, 10)))
	case float32:
		return floatValue(float64(t), 32)
	case float64:
		return floatValue(t, 64)
	case pgtype.Numeric:
		return numericValue(t)
	case time.Time:
		return models.String(formatTime(t, oid))
	case pgtype.Time:
		if !t.Valid {
			return models.Null()
		}
		return models.String(formatTimeOfDay(t.Microseconds))
	case [16]byte:
		return models.String(uuid.UUID(t).String())
	case []byte:
		return models.Blob(len(t))
	case []any:
		// a decoded empty array may come back as a nil slice
		if t == nil {
			return models.String("[]")
		}
		return marshalledValue(t)
	case map[string]any:
		return marshalledValue(t)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil || dv == nil {
			return models.Null()
		}
		return toValue(dv, oid)
	case fmt.Stringer:
		return models.String(t.String())
	default:
		return models.String(fmt.Sprint(t))
	}
}

// jsonValue returns json and jsonb columns as the store's own text, compacted.
// Going through the decoded Go value would unquote scalar strings and round
// large numbers through float64.
func jsonValue(raw []byte, oid uint32, format int16) models.Value {
	if raw == nil {
		return models.Null()
	}
	// binary jsonb carries a one-byte version header
	if oid == pgtype.JSONBOID && format == pgtype.BinaryFormatCode && len(raw) > 0 {
		raw = raw[1:]
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return models.String(string(raw))
	}
	return models.String(compact.String())
}

func marshalledValue(v any) models.Value {
	encoded, err := json.Marshal(v)
	if err != nil {
		return models.String(fmt.Sprint(v))
	}
	return models.String(string(encoded))
}

func floatValue(f float64, bits int) models.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return models.String(strconv.FormatFloat(f, 'f', -1, bits))
	}
	return models.Number(json.Number(strconv.FormatFloat(f, 'f', -1, bits)))
}

func numericValue(n pgtype.Numeric) models.Value {
	if !n.Valid {
		return models.Null()
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		dv, err := n.Value()
		if err != nil {
			return models.Null()
		}
		return models.String(fmt.Sprint(dv))
	}
	dv, err := n.Value()
	if err != nil {
		return models.Null()
	}
	s, ok := dv.(string)
	if !ok {
		return models.String(fmt.Sprint(dv))
	}
	return models.Number(json.Number(s))
}

func formatTime(t time.Time, oid uint32) string {
	switch oid {
	case pgtype.DateOID:
		return t.Format(time.DateOnly)
	case pgtype.TimestampOID:
		return t.Format(timestampLayout)
	default:
		return t.Format(time.RFC3339Nano)
	}
}

func formatTimeOfDay(micros int64) string {
	d := time.Duration(micros) * time.Microsecond
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	if d == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, d/time.Microsecond)
}
