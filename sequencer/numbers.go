package sequencer

import "math"

// ParseInt parses a whole field as a signed decimal integer. Surrounding
// spaces are ignored; anything else left over fails the parse.
func ParseInt(s string) (int, bool) {
	s = trimSpace(s)
	if len(s) == 0 {
		return 0, false
	}
	pos := 0
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}
	start := pos
	value := 0
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + int(s[pos]-'0')
		if value > math.MaxInt32 {
			return 0, false
		}
		pos++
	}
	if pos == start || pos != len(s) {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// ParseFloat parses a whole field as a decimal number with an optional
// fraction and exponent ("90", "-12.5", ".5", "1e3").
func ParseFloat(s string) (float64, bool) {
	s = trimSpace(s)
	if len(s) == 0 {
		return 0, false
	}
	pos := 0
	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	value := 0.0
	digits := 0
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		value = value*10 + float64(s[pos]-'0')
		pos++
		digits++
	}
	if pos < len(s) && s[pos] == '.' {
		pos++
		scale := 0.1
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			value += float64(s[pos]-'0') * scale
			scale /= 10
			pos++
			digits++
		}
	}
	if digits == 0 {
		return 0, false
	}

	if pos < len(s) && (s[pos] == 'e' || s[pos] == 'E') {
		pos++
		expNegative := false
		if pos < len(s) && (s[pos] == '-' || s[pos] == '+') {
			expNegative = s[pos] == '-'
			pos++
		}
		start := pos
		exp := 0
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			if exp < 400 {
				exp = exp*10 + int(s[pos]-'0')
			}
			pos++
		}
		if pos == start {
			return 0, false
		}
		if expNegative {
			exp = -exp
		}
		value *= math.Pow(10, float64(exp))
	}

	if pos != len(s) || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
