package stream

// Type tags the scalar type stored in a stream buffer.
type Type int

const (
	Undef Type = iota
	Char
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	Float
	Double
	Struct
)

// Size returns the number of bytes of one scalar of type t. Opaque types
// (Undef, Struct) have no intrinsic size and report 0; their streams carry
// the element size in Stream.Byte.
func (t Type) Size() int {
	switch t {
	case Char, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt, Float:
		return 4
	case Long, ULong, Double:
		return 8
	case Undef, Struct:
		return 0
	}
	return 0
}

// Numeric reports whether values of type t can be converted to float64.
func (t Type) Numeric() bool {
	switch t {
	case Char, UChar, Short, UShort, Int, UInt, Long, ULong, Float, Double:
		return true
	case Undef, Struct:
		return false
	}
	return false
}

func (t Type) String() string {
	switch t {
	case Undef:
		return "undef"
	case Char:
		return "char"
	case UChar:
		return "uchar"
	case Short:
		return "short"
	case UShort:
		return "ushort"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Float:
		return "float"
	case Double:
		return "double"
	case Struct:
		return "struct"
	}
	return "unknown"
}

// ParseType maps a type name as printed by String back to its Type.
func ParseType(name string) (Type, bool) {
	for t := Undef; t <= Struct; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return Undef, false
}
