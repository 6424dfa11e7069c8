package compiler

import "fmt"

// Type is a resolved source-language type.
type Type int

const (
	TypeInvalid Type = iota // placeholder before analysis
	TypeInt                 // 64-bit signed integer
	TypeFloat               // IEEE double
	TypeString              // immutable string
	TypeBool
	TypeVoid // return type only
)

var typeNames = [...]string{
	TypeInvalid: "<invalid>",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeBool:    "bool",
	TypeVoid:    "void",
}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// IsNumeric reports whether t supports arithmetic and ordering.
func (t Type) IsNumeric() bool { return t == TypeInt || t == TypeFloat }

// Printable reports whether print() accepts a value of type t.
func (t Type) Printable() bool {
	return t == TypeInt || t == TypeFloat || t == TypeString || t == TypeBool
}

// typeForToken maps a type-keyword token to its Type. Returns TypeInvalid
// for non-type tokens.
func typeForToken(tt TokenType) Type {
	switch tt {
	case INT_TYPE:
		return TypeInt
	case FLOAT_TYPE:
		return TypeFloat
	case STRING_TYPE:
		return TypeString
	case BOOL_TYPE:
		return TypeBool
	case VOID_TYPE:
		return TypeVoid
	}
	return TypeInvalid
}
