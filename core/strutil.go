package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	return string(buf[pos:])
}

// Itoa is the exported form of itoa for status lines built outside core
func Itoa(n int) string {
	return itoa(n)
}

// Ftoa formats a value with two decimals, rounding half away from zero.
func Ftoa(v float64) string {
	negative := v < 0
	if negative {
		v = -v
	}
	hundredths := uint64(v*100 + 0.5)
	whole := hundredths / 100
	frac := hundredths % 100

	s := utoa64(whole) + "."
	if frac < 10 {
		s += "0"
	}
	s += utoa64(frac)
	if negative && hundredths != 0 {
		s = "-" + s
	}
	return s
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
