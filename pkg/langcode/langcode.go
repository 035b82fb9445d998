package langcode

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Normalize parses a language code ("EN", "tr-TR", "pt_BR") and returns its
// canonical base form ("en", "tr", "pt"). Capacity routing only cares about the
// base language, not the region.
func Normalize(code string) (string, error) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}

	base, _ := tag.Base()
	return base.String(), nil
}

// NormalizeAll normalizes a list of codes, rejecting duplicates after
// canonicalization.
func NormalizeAll(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one language code is required")
	}

	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		norm, err := Normalize(c)
		if err != nil {
			return nil, err
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out, nil
}
