package dom

import "unicode/utf16"

// Len16 returns the length of s in UTF-16 code units, the unit browsers use
// for selection offsets.
func Len16(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Splice16 replaces the UTF-16 range [start,end) of s with ins. Offsets are
// clamped to the string and swapped when reversed.
func Splice16(s string, start, end int, ins string) string {
	units := utf16.Encode([]rune(s))
	start, end = clamp16(start, len(units)), clamp16(end, len(units))
	if end < start {
		start, end = end, start
	}
	out := make([]uint16, 0, len(units)+Len16(ins))
	out = append(out, units[:start]...)
	out = append(out, utf16.Encode([]rune(ins))...)
	out = append(out, units[end:]...)
	return string(utf16.Decode(out))
}

func clamp16(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
