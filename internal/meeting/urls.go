package meeting

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"meetwatch/internal/services"
)

var (
	meetingCodePattern = regexp.MustCompile(`[a-z]{3}-[a-z]{4}-[a-z]{3}`)
	unsafeIDChars      = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ValidateURL checks raw against the configured link pattern.
func ValidateURL(pattern, raw string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return services.Wrap(services.ErrValidation, "meeting", "validate url", "url_pattern does not compile", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || !re.MatchString(raw) {
		return services.Wrap(services.ErrInvalidURL, "meeting", "validate url", fmt.Sprintf("%q", raw), nil)
	}
	return nil
}

// ExtractSessionID derives the session id from a meeting link. The meeting code
// (three hyphenated lowercase groups) wins; otherwise the final path segment
// is used; otherwise a random id is generated.
func ExtractSessionID(raw string) string {
	if code := meetingCodePattern.FindString(raw); code != "" {
		return code
	}
	if segment := lastPathSegment(raw); segment != "" {
		return segment
	}
	return "session-" + uuid.NewString()[:8]
}

func lastPathSegment(raw string) string {
	path := raw
	if parsed, err := url.Parse(strings.TrimSpace(raw)); err == nil {
		path = parsed.Path
	} else if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		cleaned := strings.Trim(unsafeIDChars.ReplaceAllString(parts[i], "-"), "-.")
		if cleaned != "" && cleaned != "current" {
			return cleaned
		}
	}
	return ""
}
