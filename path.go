package cfb

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// maxNameLen is the longest name a directory entry can hold: the on-disk
// field is 64 bytes of UTF-16 including the terminating NUL, leaving 31
// code units for the name itself.
const maxNameLen = 31

// reservedNameChars are the characters [MS-CFB] forbids in storage and
// stream names.
const reservedNameChars = "/\\:!"

// ValidateName reports whether name could exist in a compound file: at most
// maxNameLen UTF-16 code units, none of the reserved characters. The length
// is measured in code units, not bytes or runes, because that is what the
// on-disk field constrains.
func ValidateName(name string) error {
	if n := len(utf16.Encode([]rune(name))); n > maxNameLen {
		return Diagnostic{Category: OutOfRange, Offset: -1,
			Message: fmt.Sprintf("name %q is %d UTF-16 code units, limit %d", name, n, maxNameLen)}
	}
	if i := strings.IndexAny(name, reservedNameChars); i >= 0 {
		return Diagnostic{Category: OutOfRange, Offset: -1,
			Message: fmt.Sprintf("name %q contains reserved character %q", name, name[i])}
	}
	return nil
}

// SplitPath splits a "/"-separated entity path into its component names.
// Empty components and "." are dropped, so "", "/", and "//" all address
// the root storage; ".." pops the previous component. A path that would
// climb above the root is an error rather than being silently clamped.
func SplitPath(p string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(names) == 0 {
				return nil, Diagnostic{Category: OutOfRange, Offset: -1,
					Message: fmt.Sprintf("path %q escapes the root storage", p)}
			}
			names = names[:len(names)-1]
		default:
			names = append(names, part)
		}
	}
	return names, nil
}
