package logutil

import "strings"

// SanitizeForLog removes newlines and control characters from user-provided
// strings (bot names, owner numbers) so a caller cannot inject fake log
// entries by embedding newline characters.
func SanitizeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r >= 32 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
