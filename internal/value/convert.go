package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Level is a rung of the four-level conversion lattice:
// identity > castable > coercible > ambiguous.
type Level uint8

const (
	LevelIdentity Level = iota
	LevelCastable
	LevelCoercible
	LevelAmbiguous
)

// lattice[from][to] is the static type×type conversion table. Unlisted
// pairs default to LevelAmbiguous (never succeeds via Cast or Coerce).
var lattice = map[Kind]map[Kind]Level{
	KindBool: {
		KindBool: LevelIdentity, KindInt: LevelCastable, KindDouble: LevelCastable, KindString: LevelCastable,
	},
	KindInt: {
		KindInt: LevelIdentity, KindBool: LevelCastable, KindDouble: LevelCastable, KindString: LevelCastable,
	},
	KindDouble: {
		KindDouble: LevelIdentity, KindBool: LevelCastable, KindInt: LevelCoercible, KindString: LevelCastable,
	},
	KindString: {
		KindString: LevelIdentity, KindBool: LevelCastable, KindInt: LevelCoercible, KindDouble: LevelCoercible,
	},
	KindData: {
		KindData: LevelIdentity,
	},
	KindArray: {
		KindArray: LevelIdentity, KindBool: LevelCoercible,
	},
	KindDictionary: {
		KindDictionary: LevelIdentity, KindBool: LevelCoercible,
	},
	KindVoid: {
		KindVoid: LevelIdentity, KindBool: LevelCastable,
	},
}

// Lattice reports the conversion level from one Kind to another.
func Lattice(from, to Kind) Level {
	if row, ok := lattice[from]; ok {
		if lvl, ok := row[to]; ok {
			return lvl
		}
	}
	return LevelAmbiguous
}

// Cast converts v to the target Kind, succeeding only at LevelIdentity or
// LevelCastable.
func (v Value) Cast(to Kind) (Value, bool) {
	if Lattice(v.kind, to) > LevelCastable {
		return Value{}, false
	}
	return v.convert(to)
}

// Coerce converts v to the target Kind, succeeding at any non-ambiguous
// level.
func (v Value) Coerce(to Kind) (Value, bool) {
	if Lattice(v.kind, to) >= LevelAmbiguous {
		return Value{}, false
	}
	return v.convert(to)
}

func (v Value) convert(to Kind) (Value, bool) {
	v = v.Evaluate()
	if v.kind == to {
		return v, true
	}
	switch to {
	case KindBool:
		return v.toBool()
	case KindInt:
		return v.toInt()
	case KindDouble:
		return v.toDouble()
	case KindString:
		return v.toStringValue()
	default:
		return Value{}, false
	}
}

func (v Value) toBool() (Value, bool) {
	switch v.kind {
	case KindBool:
		return v, true
	case KindInt:
		return Bool(v.intVal != 0), true
	case KindDouble:
		return Bool(v.doubleVal != 0), true
	case KindString:
		s := strings.ToLower(strings.TrimSpace(v.stringVal))
		switch s {
		case "true", "yes":
			return Bool(true), true
		case "false", "no":
			return Bool(false), true
		default:
			return Bool(s != ""), true
		}
	case KindArray, KindDictionary:
		return Bool(true), true
	case KindVoid:
		return Bool(false), true
	default:
		return Value{}, false
	}
}

func (v Value) toInt() (Value, bool) {
	switch v.kind {
	case KindInt:
		return v, true
	case KindBool:
		if v.boolVal {
			return Int(1), true
		}
		return Int(0), true
	case KindDouble:
		// math.Round already rounds halves away from zero.
		return Int(int64(math.Round(v.doubleVal))), true
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.stringVal), 10, 64)
		if err != nil {
			return Value{}, false
		}
		return Int(i), true
	default:
		return Value{}, false
	}
}

func (v Value) toDouble() (Value, bool) {
	switch v.kind {
	case KindDouble:
		return v, true
	case KindBool:
		if v.boolVal {
			return Double(1), true
		}
		return Double(0), true
	case KindInt:
		return Double(float64(v.intVal)), true
	case KindString:
		d, err := strconv.ParseFloat(strings.TrimSpace(v.stringVal), 64)
		if err != nil {
			return Value{}, false
		}
		return Double(d), true
	default:
		return Value{}, false
	}
}

func (v Value) toStringValue() (Value, bool) {
	switch v.kind {
	case KindString:
		return v, true
	case KindBool:
		if v.boolVal {
			return String("true"), true
		}
		return String("false"), true
	case KindInt:
		return String(strconv.FormatInt(v.intVal, 10)), true
	case KindDouble:
		return String(strconv.FormatFloat(v.doubleVal, 'g', -1, 64)), true
	case KindVoid:
		return String(""), true
	default:
		return Value{}, false
	}
}

// AsBool() attempts to read v as a bool via the conversion lattice.
func (v Value) AsBool() (bool, bool) {
	c, ok := v.Coerce(KindBool)
	if !ok {
		return false, false
	}
	return c.boolVal, true
}

// AsInt() attempts to read v as an int64 via the conversion lattice.
func (v Value) AsInt() (int64, bool) {
	c, ok := v.Coerce(KindInt)
	if !ok {
		return 0, false
	}
	return c.intVal, true
}

// AsDouble() attempts to read v as a float64 via the conversion lattice.
func (v Value) AsDouble() (float64, bool) {
	c, ok := v.Coerce(KindDouble)
	if !ok {
		return 0, false
	}
	return c.doubleVal, true
}

// AsString() attempts to read v as a string via the conversion lattice.
func (v Value) AsString() (string, bool) {
	c, ok := v.Coerce(KindString)
	if !ok {
		return "", false
	}
	return c.stringVal, true
}

// AsData() returns the raw byte buffer of a data Value.
func (v Value) AsData() ([]byte, bool) {
	v = v.Evaluate()
	if v.kind != KindData {
		return nil, false
	}
	return v.dataVal, true
}

// AsArray() returns the elements of an array Value.
func (v Value) AsArray() ([]Value, bool) {
	v = v.Evaluate()
	if v.kind != KindArray {
		return nil, false
	}
	return v.arrayVal, true
}

// AsDictionary() returns the order and value map of a dictionary Value.
func (v Value) AsDictionary() ([]string, map[string]Value, bool) {
	v = v.Evaluate()
	if v.kind != KindDictionary {
		return nil, nil, false
	}
	m := make(map[string]Value, len(v.dictOrd))
	for k, idx := range v.dictKeys {
		m[k] = v.dictVals[idx]
	}
	return v.dictOrd, m, true
}

// Equals implements Value equality: both sides are evaluated first;
// matching kinds compare by payload (element-wise for arrays and
// dictionaries), falling back to a string comparison when both sides are
// non-nil.
func (v Value) Equals(other Value) bool {
	v, other = v.Evaluate(), other.Evaluate()
	if v.kind == other.kind {
		switch v.kind {
		case KindVoid:
			return true
		case KindBool:
			return v.boolVal == other.boolVal
		case KindInt:
			return v.intVal == other.intVal
		case KindDouble:
			return v.doubleVal == other.doubleVal
		case KindString:
			return v.stringVal == other.stringVal
		case KindData:
			return string(v.dataVal) == string(other.dataVal)
		case KindArray:
			if len(v.arrayVal) != len(other.arrayVal) {
				return false
			}
			for i := range v.arrayVal {
				if !v.arrayVal[i].Equals(other.arrayVal[i]) {
					return false
				}
			}
			return true
		case KindDictionary:
			if len(v.dictOrd) != len(other.dictOrd) {
				return false
			}
			for k, idx := range v.dictKeys {
				oidx, ok := other.dictKeys[k]
				if !ok || !v.dictVals[idx].Equals(other.dictVals[oidx]) {
					return false
				}
			}
			return true
		}
	}
	if !v.IsNil() && !other.IsNil() {
		ls, lok := v.AsString()
		rs, rok := other.AsString()
		if lok && rok {
			return ls == rs
		}
	}
	return false
}

func errKind(k Kind, format string, args ...interface{}) Value {
	return Errored(k, fmt.Errorf(format, args...))
}
