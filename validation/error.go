package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// BaseField collects errors that concern the whole form rather than one field
const BaseField = "base"

// ValidationError is a single problem with one field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Errors is an ordered collection of validation messages keyed by field name.
// Fields keep the order in which they first received a message, and messages
// keep the order in which they were added.
//
// A nil *Errors is valid and reports no errors. feedback.Render still
// rejects it as a missing resource, so pages always carry a non-nil value.
type Errors struct {
	fields   []string
	messages map[string][]string
}

func NewErrors() *Errors {
	return &Errors{messages: make(map[string][]string)}
}

// Add records a message for a field
func (e *Errors) Add(field, message string) {
	if e.messages == nil {
		e.messages = make(map[string][]string)
	}
	if _, ok := e.messages[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.messages[field] = append(e.messages[field], message)
}

func (e *Errors) AddError(err ValidationError) {
	e.Add(err.Field, err.Message)
}

// Merge appends every message from other, keeping other's order
func (e *Errors) Merge(other *Errors) {
	if other == nil {
		return
	}
	for _, f := range other.fields {
		for _, m := range other.messages[f] {
			e.Add(f, m)
		}
	}
}

func (e *Errors) HasErrors() bool {
	return e != nil && len(e.fields) > 0
}

// HasKey reports whether the field has an entry in the collection
func (e *Errors) HasKey(field string) bool {
	if e == nil {
		return false
	}
	_, ok := e.messages[field]
	return ok
}

// ErrorsFor returns a copy of the messages recorded for a field
func (e *Errors) ErrorsFor(field string) []string {
	if e == nil {
		return []string{}
	}
	return append([]string{}, e.messages[field]...)
}

// Fields returns the names of fields with errors, in insertion order
func (e *Errors) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.fields...)
}

// Len is the total number of messages
func (e *Errors) Len() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, m := range e.messages {
		n += len(m)
	}
	return n
}

// FullMessagesFor prefixes each message with the humanized field name.
// Messages on BaseField are returned unprefixed.
func (e *Errors) FullMessagesFor(field string) []string {
	msgs := e.ErrorsFor(field)
	if field == BaseField {
		return msgs
	}
	name := Humanize(field)
	for i, m := range msgs {
		msgs[i] = name + " " + m
	}
	return msgs
}

func (e *Errors) FullMessages() []string {
	var all []string
	for _, f := range e.Fields() {
		all = append(all, e.FullMessagesFor(f)...)
	}
	return all
}

func (e *Errors) Error() string {
	return strings.Join(e.FullMessages(), "; ")
}

// Humanize turns a field identifier like "max_users" into "Max users"
func Humanize(field string) string {
	field = strings.TrimSuffix(field, "_id")
	field = strings.TrimSpace(strings.ReplaceAll(field, "_", " "))
	if field == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(field)
	return string(unicode.ToUpper(r)) + strings.ToLower(field[size:])
}
