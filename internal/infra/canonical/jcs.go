package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ProofOptions serializes proof metadata into its canonical JSON form:
// object keys sorted by code point, a fixed escape table for control
// characters, non-finite numbers rejected, arrays kept in order.
func ProofOptions(options any) ([]byte, error) {
	return JSON(options)
}

// JSON canonicalizes any JSON-marshalable value.
func JSON(v any) ([]byte, error) {
	switch value := v.(type) {
	case nil, bool, string, json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, map[string]any, []any:
		buf := &bytes.Buffer{}
		if err := encodeValue(buf, value); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case json.RawMessage:
		return JSONBytes([]byte(value))
	case []byte:
		return JSONBytes(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return JSONBytes(b)
	}
}

// JSONBytes canonicalizes an encoded JSON document.
func JSONBytes(input []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := encodeValue(buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func expectEOF(dec *json.Decoder) error {
	var extra any
	if err := dec.Decode(&extra); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return errors.New("invalid JSON: trailing data")
}

func encodeValue(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case string:
		encodeString(buf, v)
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return fmt.Errorf("invalid JSON number: %w", err)
		}
		return encodeNumber(buf, f)
	case float64:
		return encodeNumber(buf, v)
	case float32:
		return encodeNumber(buf, float64(v))
	case int:
		return encodeNumber(buf, float64(v))
	case int8:
		return encodeNumber(buf, float64(v))
	case int16:
		return encodeNumber(buf, float64(v))
	case int32:
		return encodeNumber(buf, float64(v))
	case int64:
		return encodeNumber(buf, float64(v))
	case uint:
		return encodeNumber(buf, float64(v))
	case uint8:
		return encodeNumber(buf, float64(v))
	case uint16:
		return encodeNumber(buf, float64(v))
	case uint32:
		return encodeNumber(buf, float64(v))
	case uint64:
		return encodeNumber(buf, float64(v))
	case map[string]any:
		return encodeObject(buf, v)
	case []any:
		return encodeArray(buf, v)
	default:
		return fmt.Errorf("unsupported JSON type %T", value)
	}
	return nil
}

func encodeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encodeValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")

// encodeNumber writes the shortest round-trippable decimal form per the
// ECMAScript number-to-string rules that canonical JSON relies on.
func encodeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("invalid JSON number")
	}
	if f == 0 {
		buf.WriteString("0")
		return nil
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = math.Abs(f)
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	parts := strings.SplitN(sci, "e", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid float format: %q", sci)
	}
	exp, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("invalid float exponent: %w", err)
	}
	digits := strings.ReplaceAll(parts[0], ".", "")

	switch {
	case exp <= -7 || exp >= 21:
		if len(digits) == 1 {
			buf.WriteString(sign + digits + "e" + strconv.Itoa(exp))
		} else {
			buf.WriteString(sign + digits[:1] + "." + digits[1:] + "e" + strconv.Itoa(exp))
		}
	default:
		point := exp + 1
		switch {
		case point >= len(digits):
			buf.WriteString(sign + digits + strings.Repeat("0", point-len(digits)))
		case point <= 0:
			buf.WriteString(sign + "0." + strings.Repeat("0", -point) + digits)
		default:
			buf.WriteString(sign + digits[:point] + "." + digits[point:])
		}
	}
	return nil
}
