package firestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Fields is a decoded document: field name to native value. Native values
// are nil, bool, int64, float64, string, Fields and []interface{};
// timestampValue decodes to its RFC3339 string form so that encoding and
// decoding are exact inverses.
type Fields map[string]interface{}

// EncodeValue maps a native value to the store's tagged wire form.
// Integers are string-encoded to preserve 64-bit precision; strings that
// parse as RFC3339 become timestampValue.
func EncodeValue(v interface{}) (map[string]interface{}, error) {
	switch val := v.(type) {
	case nil:
		return map[string]interface{}{"nullValue": nil}, nil
	case bool:
		return map[string]interface{}{"booleanValue": val}, nil
	case int:
		return map[string]interface{}{"integerValue": strconv.FormatInt(int64(val), 10)}, nil
	case int32:
		return map[string]interface{}{"integerValue": strconv.FormatInt(int64(val), 10)}, nil
	case int64:
		return map[string]interface{}{"integerValue": strconv.FormatInt(val, 10)}, nil
	case uint:
		return map[string]interface{}{"integerValue": strconv.FormatUint(uint64(val), 10)}, nil
	case float32:
		return map[string]interface{}{"doubleValue": float64(val)}, nil
	case float64:
		return map[string]interface{}{"doubleValue": val}, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return map[string]interface{}{"integerValue": strconv.FormatInt(i, 10)}, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, &DecodeError{Reason: "numeric value " + val.String(), Err: err}
		}
		return map[string]interface{}{"doubleValue": f}, nil
	case time.Time:
		return map[string]interface{}{"timestampValue": val.UTC().Format(time.RFC3339Nano)}, nil
	case string:
		if _, err := time.Parse(time.RFC3339, val); err == nil {
			return map[string]interface{}{"timestampValue": val}, nil
		}
		return map[string]interface{}{"stringValue": val}, nil
	case Fields:
		fields, err := EncodeFields(val)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"mapValue": map[string]interface{}{"fields": fields}}, nil
	case map[string]interface{}:
		fields, err := EncodeFields(val)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"mapValue": map[string]interface{}{"fields": fields}}, nil
	case []interface{}:
		values := make([]interface{}, 0, len(val))
		for _, item := range val {
			enc, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, enc)
		}
		return map[string]interface{}{"arrayValue": map[string]interface{}{"values": values}}, nil
	case []string:
		values := make([]interface{}, 0, len(val))
		for _, item := range val {
			enc, err := EncodeValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, enc)
		}
		return map[string]interface{}{"arrayValue": map[string]interface{}{"values": values}}, nil
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

// EncodeFields encodes every field of a document recursively.
func EncodeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		enc, err := EncodeValue(v)
		if err != nil {
			return nil, err
		}
		out[name] = enc
	}
	return out, nil
}

// DecodeValue maps a tagged wire value back to its native form.
func DecodeValue(raw map[string]interface{}) (interface{}, error) {
	if len(raw) != 1 {
		return nil, &DecodeError{Reason: fmt.Sprintf("value must carry exactly one type tag, got %d", len(raw))}
	}
	for tag, v := range raw {
		switch tag {
		case "nullValue":
			return nil, nil
		case "booleanValue":
			b, ok := v.(bool)
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("booleanValue holds %T", v)}
			}
			return b, nil
		case "integerValue":
			s, ok := v.(string)
			if !ok {
				// Some encoders send bare JSON numbers.
				if f, isNum := v.(float64); isNum {
					return int64(f), nil
				}
				return nil, &DecodeError{Reason: fmt.Sprintf("integerValue holds %T", v)}
			}
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, &DecodeError{Reason: "integerValue " + s, Err: err}
			}
			return i, nil
		case "doubleValue":
			f, ok := v.(float64)
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("doubleValue holds %T", v)}
			}
			return f, nil
		case "stringValue":
			s, ok := v.(string)
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("stringValue holds %T", v)}
			}
			return s, nil
		case "timestampValue":
			s, ok := v.(string)
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("timestampValue holds %T", v)}
			}
			return s, nil
		case "mapValue":
			m, ok := v.(map[string]interface{})
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("mapValue holds %T", v)}
			}
			inner, _ := m["fields"].(map[string]interface{})
			return DecodeFields(inner)
		case "arrayValue":
			m, ok := v.(map[string]interface{})
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("arrayValue holds %T", v)}
			}
			rawValues, _ := m["values"].([]interface{})
			out := make([]interface{}, 0, len(rawValues))
			for _, rv := range rawValues {
				tagged, ok := rv.(map[string]interface{})
				if !ok {
					return nil, &DecodeError{Reason: fmt.Sprintf("array element holds %T", rv)}
				}
				dec, err := DecodeValue(tagged)
				if err != nil {
					return nil, err
				}
				out = append(out, dec)
			}
			return out, nil
		default:
			return nil, &DecodeError{Reason: "unknown type tag " + tag}
		}
	}
	return nil, &DecodeError{Reason: "empty value"}
}

// DecodeFields decodes a full "fields" object.
func DecodeFields(raw map[string]interface{}) (Fields, error) {
	out := make(Fields, len(raw))
	for name, v := range raw {
		tagged, ok := v.(map[string]interface{})
		if !ok {
			return nil, &DecodeError{Reason: fmt.Sprintf("field %s holds %T", name, v)}
		}
		dec, err := DecodeValue(tagged)
		if err != nil {
			return nil, err
		}
		out[name] = dec
	}
	return out, nil
}

// String returns fields[name] as a string when present and string-typed.
func (f Fields) String(name string) (string, bool) {
	v, ok := f[name].(string)
	return v, ok
}

// Int returns fields[name] as an int64. Doubles that carry whole numbers
// are accepted too; mobile clients are not strict about numeric tags.
func (f Fields) Int(name string) (int64, bool) {
	switch v := f[name].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Float returns fields[name] as a float64, accepting integer-tagged values.
func (f Fields) Float(name string) (float64, bool) {
	switch v := f[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool returns fields[name] as a bool.
func (f Fields) Bool(name string) (bool, bool) {
	v, ok := f[name].(bool)
	return v, ok
}

// Map returns fields[name] as a nested document.
func (f Fields) Map(name string) (Fields, bool) {
	v, ok := f[name].(Fields)
	return v, ok
}

// Time parses fields[name] as an RFC3339 timestamp.
func (f Fields) Time(name string) (time.Time, bool) {
	s, ok := f[name].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
