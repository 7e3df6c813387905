package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValueKind tags the wire-safe representation of a column value.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "boolean"
	KindBlob   ValueKind = "blob"
)

// Value is a single cell converted from the store's native type.
// Binary data is never carried; a blob only reports its length.
type Value struct {
	Kind ValueKind
	Str  string
	Num  json.Number
	Bool bool
	Size int
}

func Null() Value                { return Value{Kind: KindNull} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Number(n json.Number) Value { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Blob(size int) Value        { return Value{Kind: KindBlob, Size: size} }

func (v Value) IsNull() bool {
	return v.Kind == KindNull || v.Kind == ""
}

// Text returns the value as it would be typed into a form field.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindBlob:
		return fmt.Sprintf("[%d bytes]", v.Size)
	default:
		return ""
	}
}

// Interface returns the plain Go value used when a value is sent back as input.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return []byte(v.Num.String()), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindBlob:
		return json.Marshal(map[string]int{"$blob": v.Size})
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case json.Number:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	case map[string]any:
		size, ok := t["$blob"].(json.Number)
		if !ok {
			return fmt.Errorf("unsupported object value %s", string(data))
		}
		n, err := size.Int64()
		if err != nil {
			return fmt.Errorf("invalid blob size: %w", err)
		}
		*v = Blob(int(n))
	default:
		return fmt.Errorf("unsupported value %s", string(data))
	}
	return nil
}
