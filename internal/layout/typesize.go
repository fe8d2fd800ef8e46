package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// WordSize is the width of one storage slot in bytes.
const WordSize = 32

// UnknownTypeError reports a type string the resolver cannot size.
type UnknownTypeError struct {
	TypeString string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.TypeString)
}

// ErrStructType is returned for struct types, which are flattened rather
// than sized.
var ErrStructType = errors.New("struct types are flattened, not sized")

var locationSuffixes = []string{" storage ref", " storage pointer", " memory", " calldata", " storage"}

// Normalize strips data location suffixes from a type string.
func Normalize(typeString string) string {
	t := strings.TrimSpace(typeString)
	for _, s := range locationSuffixes {
		t = strings.TrimSuffix(t, s)
	}
	return t
}

// ByteWidth returns the number of bytes a value of the given type occupies
// in storage, between 1 and 32.
func ByteWidth(typeString string) (int, error) {
	t := Normalize(typeString)
	switch {
	case t == "":
		return 0, &UnknownTypeError{TypeString: typeString}
	case strings.HasPrefix(t, "mapping("):
		return WordSize, nil
	case strings.HasSuffix(t, "]"):
		return WordSize, nil
	case t == "string" || t == "bytes":
		return WordSize, nil
	case strings.HasPrefix(t, "struct "):
		return 0, ErrStructType
	case t == "bool":
		return 1, nil
	case t == "address" || t == "address payable":
		return 20, nil
	case strings.HasPrefix(t, "contract "):
		return 20, nil
	case strings.HasPrefix(t, "enum "):
		return 1, nil
	case strings.HasPrefix(t, "function "):
		if strings.Contains(t, ") external") || strings.HasSuffix(t, " external") {
			// address + selector
			return 24, nil
		}
		return 8, nil
	case strings.HasPrefix(t, "bytes"):
		n, ok := bitsOrBytes(t, "bytes")
		if !ok || n < 1 || n > WordSize {
			return 0, &UnknownTypeError{TypeString: typeString}
		}
		return n, nil
	case strings.HasPrefix(t, "uint"):
		return intWidth(t, "uint", typeString)
	case strings.HasPrefix(t, "int"):
		return intWidth(t, "int", typeString)
	case strings.HasPrefix(t, "ufixed"):
		return fixedWidth(t, "ufixed", typeString)
	case strings.HasPrefix(t, "fixed"):
		return fixedWidth(t, "fixed", typeString)
	}
	return 0, &UnknownTypeError{TypeString: typeString}
}

func bitsOrBytes(t, prefix string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(t, prefix))
	return n, err == nil
}

func intWidth(t, prefix, orig string) (int, error) {
	if t == prefix {
		return WordSize, nil
	}
	bits, ok := bitsOrBytes(t, prefix)
	if !ok || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, &UnknownTypeError{TypeString: orig}
	}
	return bits / 8, nil
}

// fixed<M>x<N>; bare fixed is fixed128x18.
func fixedWidth(t, prefix, orig string) (int, error) {
	rest := strings.TrimPrefix(t, prefix)
	if rest == "" {
		return 16, nil
	}
	m, _, ok := strings.Cut(rest, "x")
	if !ok {
		return 0, &UnknownTypeError{TypeString: orig}
	}
	bits, err := strconv.Atoi(m)
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, &UnknownTypeError{TypeString: orig}
	}
	return bits / 8, nil
}

// IsStruct reports whether the type is a (non-array) struct.
func IsStruct(typeString string) bool {
	t := Normalize(typeString)
	return strings.HasPrefix(t, "struct ") && !strings.HasSuffix(t, "]")
}

// IsDynamic reports whether the type keeps its contents at keccak256(slot):
// dynamic arrays, bytes and string. Mappings hash with a key and are not
// included.
func IsDynamic(typeString string) bool {
	t := Normalize(typeString)
	if t == "string" || t == "bytes" {
		return true
	}
	return !strings.HasPrefix(t, "mapping(") && strings.HasSuffix(t, "[]")
}

// FixedArrayLength returns the number of slot keys a fixed-size array type
// expands into: the product of its fixed dimensions from the outermost
// inward, stopping at the first dynamic one. ok is false for non-arrays and
// for arrays whose outermost dimension is dynamic.
func FixedArrayLength(typeString string) (n *uint256.Int, ok bool) {
	t := Normalize(typeString)
	if strings.HasPrefix(t, "mapping(") {
		return nil, false
	}
	n = uint256.NewInt(1)
	for strings.HasSuffix(t, "]") {
		open := strings.LastIndexByte(t, '[')
		if open < 0 {
			break
		}
		dim := t[open+1 : len(t)-1]
		t = t[:open]
		if dim == "" {
			break
		}
		d, err := uint256.FromDecimal(dim)
		if err != nil {
			return nil, false
		}
		if _, overflow := n.MulOverflow(n, d); overflow {
			return nil, false
		}
		ok = true
	}
	if !ok {
		return nil, false
	}
	return n, true
}
