package service

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"dungeon-ledger/backend/internal/models"
)

func requiredText(field, value string, maxLen int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(value) > maxLen {
		return "", invalid(field, "must be at most %d characters", maxLen)
	}
	return value, nil
}

// optionalText trims value and maps blank input to nil
func optionalText(field string, value *string, maxLen int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return nil, invalid(field, "must be at most %d characters", maxLen)
	}
	return &trimmed, nil
}

// ValidateCharacterURL checks that raw is an absolute http or https URL.
// When allowedHosts is not empty the host must equal one of them or be a subdomain of one.
func ValidateCharacterURL(raw string, allowedHosts []string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("url", "is required")
	}
	if utf8.RuneCountInString(raw) > models.CharacterLinkURLMaxLen {
		return "", invalid("url", "must be at most %d characters", models.CharacterLinkURLMaxLen)
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", invalid("url", "please enter a valid http/https URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", invalid("url", "please enter a valid http/https URL")
	}

	if len(allowedHosts) > 0 && !hostAllowed(u.Hostname(), allowedHosts) {
		return "", invalid("url", "links must point to one of: %s", strings.Join(allowedHosts, ", "))
	}
	return raw, nil
}

func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// ParseLocalTime parses a wall-clock value entered by a user in loc
func ParseLocalTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	for _, layout := range []string{models.LocalTimeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("scheduled_at", "must look like 2026-03-01T18:00")
}

// ResolveLocation loads an IANA zone name, returning fallback when name is blank
func ResolveLocation(name string, fallback *time.Location) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if fallback == nil {
			return time.Local, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalid("timezone", "unknown time zone %q", name)
	}
	return loc, nil
}
