package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/drawpile/listform/db"
)

const maxNotesLength = 500

var expiryLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseExpiry reads an optional expiry date. An empty string means the
// ban never expires and gives a zero time.
func ParseExpiry(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ValidateHostBan checks a new host ban entered by an administrator.
// expires is the raw form value; now is the reference time for "in the past".
func ValidateHostBan(ban db.HostBan, expires string, now time.Time) *Errors {
	errs := NewErrors()

	host := strings.TrimSpace(ban.Host)
	if host == "" {
		errs.Add("host", "can't be blank")
	} else if strings.Contains(host, "://") || strings.ContainsAny(host, "/ ") {
		errs.Add("host", "must be a bare hostname or IP address")
	}

	if t, ok := ParseExpiry(expires); !ok {
		errs.Add("expires", "is not a valid date")
	} else if !t.IsZero() && !t.After(now) {
		errs.Add("expires", "must be in the future")
	}

	if utf8.RuneCountInString(ban.Notes) > maxNotesLength {
		errs.Add("notes", "is too long (maximum is 500 characters)")
	}

	return errs
}
