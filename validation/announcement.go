package validation

import (
	"net"
	"strings"
	"unicode/utf8"

	"github.com/drawpile/listform/db"
)

const (
	maxTitleLength = 100
	maxOwnerLength = 50
)

type AnnouncementValidationRules struct {
	ClientIP            net.IP
	AllowWellKnownPorts bool
	ProtocolWhitelist   []string
	Lookup              Resolver // nil uses net.LookupIP
}

// ValidateAnnouncement checks every field of a session announcement and
// returns all the problems found. The result has no errors if the
// announcement is acceptable.
func ValidateAnnouncement(session db.SessionInfo, rules AnnouncementValidationRules) *Errors {
	errs := NewErrors()

	// Hostname (if present) must be valid
	if err := ValidateHostname(session.Host, rules.ClientIP, rules.Lookup); err != nil {
		errs.AddError(*err)
	}

	// Port number must be in the valid range
	if session.Port < 0 || session.Port > 0xffff {
		errs.Add("port", "is not a valid port number")
	} else if !rules.AllowWellKnownPorts && session.Port != 0 && session.Port < 1024 {
		errs.Add("port", "must not be in the well-known range 1-1023")
	}

	if len(session.Id) == 0 {
		errs.Add("id", "can't be blank")
	} else {
		if len(session.Id) > 36 {
			errs.Add("id", "is too long (maximum is 36 characters)")
		}
		if !isValidSessionIdChars(session.Id) {
			errs.Add("id", "may only contain letters, numbers and dashes")
		}
	}

	// Protocol version number must be syntactically correct
	if !IsValidProtocol(session.Protocol, rules.ProtocolWhitelist) {
		errs.Add("protocol", "is not a supported protocol version")
	}

	title := strings.TrimSpace(session.Title)
	if title == "" {
		errs.Add("title", "can't be blank")
	} else if utf8.RuneCountInString(title) > maxTitleLength {
		errs.Add("title", "is too long (maximum is 100 characters)")
	}

	owner := strings.TrimSpace(session.Owner)
	if owner == "" {
		errs.Add("owner", "can't be blank")
	} else if utf8.RuneCountInString(owner) > maxOwnerLength {
		errs.Add("owner", "is too long (maximum is 50 characters)")
	}

	if session.Users < 0 {
		errs.Add("users", "must be greater than or equal to 0")
	}

	return errs
}

func isValidSessionIdChars(id string) bool {
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}
