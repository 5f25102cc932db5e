package utils

import (
	"strings"
)

// SanitizeTitle replaces every character outside [A-Za-z0-9.-] with an
// underscore so a product title can be embedded in a download filename.
func SanitizeTitle(title string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(title))

	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			sanitized.WriteRune(r)
		} else {
			sanitized.WriteRune('_')
		}
	}

	return sanitized.String()
}

// SanitizeForContentDisposition escapes a filename for the quoted form of
// the Content-Disposition header. Quotes and backslashes are escaped and
// control characters dropped to prevent header injection.
func SanitizeForContentDisposition(filename string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(filename))

	for _, r := range filename {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case r == '"' || r == '\\':
			sanitized.WriteRune('\\')
			sanitized.WriteRune(r)
		default:
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}

// AttachmentDisposition returns an attachment Content-Disposition value.
func AttachmentDisposition(filename string) string {
	return `attachment; filename="` + SanitizeForContentDisposition(filename) + `"`
}
