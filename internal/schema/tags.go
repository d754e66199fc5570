package schema

import "strings"

// stripRequired removes the "required" tag and makes the rest optional,
// so "required,email" becomes "omitempty,email".
func stripRequired(tag string) string {
	parts := strings.Split(tag, ",")
	kept := make([]string, 0, len(parts)+1)
	hasOmit := false
	for _, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "", "required":
			continue
		case "omitempty":
			hasOmit = true
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return ""
	}
	if !hasOmit {
		kept = append([]string{"omitempty"}, kept...)
	}
	return strings.Join(kept, ",")
}
