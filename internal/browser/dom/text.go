// File: internal/browser/dom/text.go
package dom

import "unicode/utf16"

// UTF16Len returns the length of s in UTF-16 code units, the unit DOM
// selection offsets are expressed in.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// SpliceUTF16 replaces the [start, end) range of s, given in UTF-16 code
// units, with insert. Out of range offsets are clamped. It returns the new
// string and the caret offset just past the inserted text.
func SpliceUTF16(s string, start, end int, insert string) (string, int) {
	units := utf16.Encode([]rune(s))
	start = clamp(start, 0, len(units))
	end = clamp(end, start, len(units))

	ins := utf16.Encode([]rune(insert))
	out := make([]uint16, 0, len(units)-(end-start)+len(ins))
	out = append(out, units[:start]...)
	out = append(out, ins...)
	out = append(out, units[end:]...)
	return string(utf16.Decode(out)), start + len(ins)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
