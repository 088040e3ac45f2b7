package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	hexRe  = regexp.MustCompile(`^[0-9A-F]+$`)
	rollRe = regexp.MustCompile(`^([A-Za-z]{2,5})-?(\d{4})-?(\d{1,4})$`)
)

// NormalizeUID canonicalizes an NFC tag UID as reported by readers. Readers
// disagree on separators and case ("04:A2:5F:1B" vs "04 a2 5f 1b"), so UIDs
// are stored as bare uppercase hex.
func NormalizeUID(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(":", "", "-", "", " ", "").Replace(s)
	if s == "" {
		return "", fmt.Errorf("empty tag uid")
	}
	if !hexRe.MatchString(s) || len(s)%2 != 0 {
		return "", fmt.Errorf("invalid tag uid: %q", raw)
	}
	return s, nil
}

// ParsedRoll holds the structured parts of a roll number like "CS-2021-042".
type ParsedRoll struct {
	Program string
	Year    int
	Seq     int
}

// ParseRollNumber splits a roll number into program code, admission year and
// sequence. Separators are optional; the program code is uppercased.
func ParseRollNumber(raw string) (ParsedRoll, error) {
	m := rollRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ParsedRoll{}, fmt.Errorf("unable to parse roll number: %q", raw)
	}

	var p ParsedRoll
	p.Program = strings.ToUpper(m[1])
	fmt.Sscanf(m[2], "%d", &p.Year)
	fmt.Sscanf(m[3], "%d", &p.Seq)
	return p, nil
}

// ValidISBN13 reports whether s is a well-formed ISBN-13 (checksum included).
func ValidISBN13(s string) bool {
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}
