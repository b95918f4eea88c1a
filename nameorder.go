package cfb

import (
	"unicode"
	"unicode/utf16"
)

// Ordering is the result of comparing two CFB directory-entry names.
type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
)

// foldName uppercases each UTF-16 code unit using the simple one-to-one
// case mapping ("towupper" semantics): not a locale case-fold, and not the
// full-mapping transforms that can change a name's length (ß to SS).
// Surrogate halves have no mapping and pass through untouched. Encapsulated
// here so no other file reaches for a platform case-fold.
func foldName(units []uint16) []uint16 {
	folded := make([]uint16, len(units))
	for i, u := range units {
		folded[i] = uint16(unicode.ToUpper(rune(u)))
	}
	return folded
}

// CompareNames implements the CFB red-black tree's name ordering ([MS-CFB]
// 2.6.4): shorter UTF-16 code-unit length sorts first; equal-length names
// compare code-unit by code-unit after uppercase folding. The comparison
// runs over the UTF-16 units, not Go strings: codepoint order ranks a
// supplementary character above the 0xE000-0xFFFF range, while its
// surrogate code units (0xD800-0xDFFF) rank below it.
func CompareNames(a, b string) Ordering {
	au := utf16.Encode([]rune(a))
	bu := utf16.Encode([]rune(b))

	if len(au) != len(bu) {
		if len(au) < len(bu) {
			return OrderLess
		}
		return OrderGreater
	}

	fa := foldName(au)
	fb := foldName(bu)
	for i := range fa {
		switch {
		case fa[i] < fb[i]:
			return OrderLess
		case fa[i] > fb[i]:
			return OrderGreater
		}
	}
	return OrderEqual
}
