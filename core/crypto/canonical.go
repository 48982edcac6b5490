package crypto

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize encodes v as canonical JSON: object keys sorted, strings NFC
// normalized, no insignificant whitespace. Two values that differ only in
// map ordering or Unicode composition encode identically.
func Canonicalize(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type mapEntry struct {
	key   string
	value any
}

func writeValue(buf *bytes.Buffer, v any) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}

	if n, ok := v.(json.Number); ok {
		return writeJSONNumber(buf, n)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return writeString(buf, rv.String())
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(rv.Bool()))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return writeNumber(buf, strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return writeNumber(buf, strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidNumber
		}
		return writeNumber(buf, strconv.FormatFloat(f, 'g', -1, 64))
	case reflect.Map:
		return writeMap(buf, rv)
	case reflect.Slice, reflect.Array:
		return writeSlice(buf, rv)
	case reflect.Invalid:
		buf.WriteString("null")
		return nil
	default:
		return ErrUnsupportedType
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

func writeJSONNumber(buf *bytes.Buffer, n json.Number) error {
	return writeNumber(buf, n.String())
}

// maxExponent bounds the decimal exponent a number may carry.
const maxExponent = 1 << 20

// writeNumber writes the JSON number literal s in a canonical form without
// going through a float, so every distinct value keeps a distinct encoding.
// The value is reduced to sign, significant digits and a decimal exponent,
// then printed plainly for exponents up to 21 and in e-notation beyond.
func writeNumber(buf *bytes.Buffer, s string) error {
	neg, digits, exp, err := parseNumber(s)
	if err != nil {
		return err
	}
	if digits == "" {
		buf.WriteByte('0')
		return nil
	}
	if neg {
		buf.WriteByte('-')
	}
	// point is where the decimal point falls: value = 0.digits * 10^point.
	n := len(digits)
	point := exp + n
	switch {
	case n <= point && point <= 21:
		buf.WriteString(digits)
		buf.WriteString(strings.Repeat("0", point-n))
	case 0 < point && point <= 21:
		buf.WriteString(digits[:point])
		buf.WriteByte('.')
		buf.WriteString(digits[point:])
	case -6 < point && point <= 0:
		buf.WriteString("0.")
		buf.WriteString(strings.Repeat("0", -point))
		buf.WriteString(digits)
	default:
		buf.WriteByte(digits[0])
		if n > 1 {
			buf.WriteByte('.')
			buf.WriteString(digits[1:])
		}
		buf.WriteByte('e')
		if point-1 >= 0 {
			buf.WriteByte('+')
		}
		buf.WriteString(strconv.Itoa(point - 1))
	}
	return nil
}

// parseNumber splits a JSON number literal into its sign, its significant
// digits without leading or trailing zeros, and the power of ten the digits
// are scaled by. Zero has no digits.
func parseNumber(s string) (neg bool, digits string, exp int, err error) {
	if !json.Valid([]byte(s)) || s == "" {
		return false, "", 0, ErrInvalidNumber
	}
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	mantissa := s
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa = s[:i]
		e, convErr := strconv.Atoi(strings.TrimPrefix(s[i+1:], "+"))
		if convErr != nil || e > maxExponent || e < -maxExponent {
			return false, "", 0, ErrInvalidNumber
		}
		exp = e
	}
	if dot := strings.IndexByte(mantissa, '.'); dot >= 0 {
		exp -= len(mantissa) - dot - 1
		mantissa = mantissa[:dot] + mantissa[dot+1:]
	}
	if strings.IndexFunc(mantissa, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return false, "", 0, ErrInvalidNumber
	}
	mantissa = strings.TrimLeft(mantissa, "0")
	trimmed := strings.TrimRight(mantissa, "0")
	exp += len(mantissa) - len(trimmed)
	if trimmed == "" {
		return false, "", 0, nil
	}
	return neg, trimmed, exp, nil
}

func writeMap(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	if rv.Type().Key().Kind() != reflect.String {
		return ErrNonStringMapKey
	}

	entries := make([]mapEntry, 0, rv.Len())
	seen := make(map[string]struct{}, rv.Len())
	for _, key := range rv.MapKeys() {
		keyStr := norm.NFC.String(key.String())
		if _, dup := seen[keyStr]; dup {
			return ErrKeyCollision
		}
		seen[keyStr] = struct{}{}
		entries = append(entries, mapEntry{key: keyStr, value: rv.MapIndex(key).Interface()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})

	buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, entry.key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, entry.value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeSlice(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		buf.WriteString("null")
		return nil
	}

	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
