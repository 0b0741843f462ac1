// Package persist moves matrix settings in and out of a key-value store and
// a portable, type-tagged JSON file.
package persist

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

// Type tags a stored value.
type Type string

const (
	Uint8  Type = "uint8"
	Uint16 Type = "uint16"
	Uint32 Type = "uint32"
	Int8   Type = "int8"
	Int16  Type = "int16"
	Int32  Type = "int32"
	Float  Type = "float"
	Bool   Type = "bool"
	String Type = "string"
	Blob   Type = "blob"
)

// Value is a tagged scalar. V holds the Go type matching T: uint8, uint16,
// uint32, int8, int16, int32, float64, bool, string or []byte.
type Value struct {
	T Type
	V any
}

func U8(v uint8) Value { return Value{T: Uint8, V: v} }
func U16(v uint16) Value { return Value{T: Uint16, V: v} }
func U32(v uint32) Value { return Value{T: Uint32, V: v} }
func I8(v int8) Value { return Value{T: Int8, V: v} }
func I16(v int16) Value { return Value{T: Int16, V: v} }
func I32(v int32) Value { return Value{T: Int32, V: v} }
func F64(v float64) Value { return Value{T: Float, V: v} }
func B(v bool) Value { return Value{T: Bool, V: v} }
func S(v string) Value { return Value{T: String, V: v} }
func Bytes(v []byte) Value { return Value{T: Blob, V: append([]byte(nil), v...)} }

// Check reports whether V has the Go type that T promises.
func (v Value) Check() error {
	ok := false
	switch v.T {
	case Uint8:
		_, ok = v.V.(uint8)
	case Uint16:
		_, ok = v.V.(uint16)
	case Uint32:
		_, ok = v.V.(uint32)
	case Int8:
		_, ok = v.V.(int8)
	case Int16:
		_, ok = v.V.(int16)
	case Int32:
		_, ok = v.V.(int32)
	case Float:
		var f float64
		f, ok = v.V.(float64)
		if ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return errs.E(errs.InvalidArgument, "Value.Check", "float %v not representable", f)
		}
	case Bool:
		_, ok = v.V.(bool)
	case String:
		_, ok = v.V.(string)
	case Blob:
		_, ok = v.V.([]byte)
	default:
		return errs.E(errs.InvalidArgument, "Value.Check", "unknown type %q", v.T)
	}
	if !ok {
		return errs.E(errs.InvalidArgument, "Value.Check", "%T is not %s", v.V, v.T)
	}
	return nil
}

// plain is the value as it goes into a text encoding. Blobs become base64.
func (v Value) plain() any {
	if b, ok := v.V.([]byte); ok {
		return base64.StdEncoding.EncodeToString(b)
	}
	return v.V
}

// parse converts a decoded text value into a typed Value, range checking
// integers. raw may come from encoding/json (json.Number) or yaml.v3.
func parse(t Type, raw any) (Value, error) {
	const op = "persist.parse"
	bad := func() (Value, error) {
		return Value{}, errs.E(errs.InvalidArgument, op, "%v (%T) is not a valid %s", raw, raw, t)
	}

	switch t {
	case Uint8, Uint16, Uint32:
		bits := map[Type]int{Uint8: 8, Uint16: 16, Uint32: 32}[t]
		s, ok := integerText(raw)
		if !ok {
			return bad()
		}
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return bad()
		}
		switch t {
		case Uint8:
			return U8(uint8(n)), nil
		case Uint16:
			return U16(uint16(n)), nil
		default:
			return U32(uint32(n)), nil
		}
	case Int8, Int16, Int32:
		bits := map[Type]int{Int8: 8, Int16: 16, Int32: 32}[t]
		s, ok := integerText(raw)
		if !ok {
			return bad()
		}
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return bad()
		}
		switch t {
		case Int8:
			return I8(int8(n)), nil
		case Int16:
			return I16(int16(n)), nil
		default:
			return I32(int32(n)), nil
		}
	case Float:
		var f float64
		switch x := raw.(type) {
		case json.Number:
			var err error
			if f, err = x.Float64(); err != nil {
				return bad()
			}
		case float64:
			f = x
		case int:
			f = float64(x)
		default:
			return bad()
		}
		v := F64(f)
		return v, v.Check()
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return bad()
		}
		return B(b), nil
	case String:
		s, ok := raw.(string)
		if !ok {
			return bad()
		}
		return S(s), nil
	case Blob:
		s, ok := raw.(string)
		if !ok {
			return bad()
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return bad()
		}
		return Value{T: Blob, V: b}, nil
	}
	return Value{}, errs.E(errs.InvalidArgument, op, "unknown type %q", t)
}

func integerText(raw any) (string, bool) {
	switch x := raw.(type) {
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	}
	return "", false
}

type wireValue struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v.plain())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.T, Value: raw})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var w wireValue
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return errs.Wrap(errs.InvalidArgument, "Value.UnmarshalJSON", err)
	}
	if w.Type == "" || len(w.Value) == 0 {
		return errs.E(errs.InvalidArgument, "Value.UnmarshalJSON", "entry needs both type and value")
	}
	var raw any
	vd := json.NewDecoder(bytes.NewReader(w.Value))
	vd.UseNumber()
	if err := vd.Decode(&raw); err != nil {
		return errs.Wrap(errs.InvalidArgument, "Value.UnmarshalJSON", err)
	}
	parsed, err := parse(w.Type, raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.T, v.plain())
}
