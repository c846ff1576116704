package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	embeddedURL = regexp.MustCompile(`(?i)https?://\S+`)
	bareDomain  = regexp.MustCompile(`(?i)^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}(:\d{1,5})?(/\S*)?$`)
)

// NormalizeLink macht aus einem gespeicherten Link eine absolute http(s)-URL.
// Steht Text um die URL herum, wird die erste http(s)-URL genommen; "//host/…" wird
// zu https, "host.tld/…" bekommt https:// vorangestellt. Bereits normalisierte Links
// bleiben unverändert.
func NormalizeLink(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLink)
	}
	if !strings.ContainsFunc(s, unicode.IsSpace) && isAbsoluteHTTP(s) {
		return s, nil
	}

	switch {
	case embeddedURL.MatchString(s):
		// Altdaten: "Link: https://… Code: abcd" aus dem alten Editor.
		s = embeddedURL.FindString(s)
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case bareDomain.MatchString(s):
		s = "https://" + s
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}
	if !isAbsoluteHTTP(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}
	return s, nil
}

func isAbsoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}
