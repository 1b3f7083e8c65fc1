package utils

import "strings"

// MadridSuffix is the Yahoo Finance exchange suffix for Bolsa de Madrid.
const MadridSuffix = ".MC"

// NormalizeTicker upper-cases a ticker and appends the ".MC" suffix when missing.
// "san" -> "SAN.MC", "SAN.MC" -> "SAN.MC".
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return ""
	}
	if strings.Contains(t, ".") || strings.HasPrefix(t, "^") {
		return t
	}
	return t + MadridSuffix
}

// BaseTicker strips the exchange suffix: "SAN.MC" -> "SAN".
func BaseTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if i := strings.IndexByte(t, '.'); i > 0 {
		return t[:i]
	}
	return t
}
