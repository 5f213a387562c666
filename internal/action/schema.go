package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"sort"
	"strings"
)

// SchemaError reports parameters that do not match a kind's schema.
type SchemaError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s parameters: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s parameters: %s %s", e.Kind, e.Field, e.Reason)
}

// Parameters is the validated parameter set of one proposal.
type Parameters interface {
	Kind() Kind
}

// OpenURLParams are the parameters of an openUrl proposal.
type OpenURLParams struct {
	URL string `json:"url"`
}

// ComposeEmailParams are the parameters of a composeEmail proposal.
type ComposeEmailParams struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ScheduleEventParams are the parameters of a scheduleEvent proposal.
type ScheduleEventParams struct {
	Title           string   `json:"title"`
	When            string   `json:"when"`
	DurationMinutes *int     `json:"durationMinutes,omitempty"`
	Location        *string  `json:"location,omitempty"`
	Attendees       []string `json:"attendees,omitempty"`
}

// AdjustVolumeParams are the parameters of an adjustVolume proposal.
type AdjustVolumeParams struct {
	Level float64 `json:"level"`
}

// AskConfirmationParams are the parameters of an askForConfirmation proposal.
type AskConfirmationParams struct {
	Message string `json:"message"`
}

func (OpenURLParams) Kind() Kind         { return KindOpenURL }
func (ComposeEmailParams) Kind() Kind    { return KindComposeEmail }
func (ScheduleEventParams) Kind() Kind   { return KindScheduleEvent }
func (AdjustVolumeParams) Kind() Kind    { return KindAdjustVolume }
func (AskConfirmationParams) Kind() Kind { return KindAskConfirmation }

// Validate checks raw parameters against the schema of kind. It is pure:
// the same input always produces the same result.
func Validate(kind Kind, raw json.RawMessage) (Parameters, error) {
	def, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, &SchemaError{Kind: kind, Reason: "parameters must be a JSON object"}
	}

	allowed := def.Schema["properties"].(map[string]any)
	var unknown []string
	for name := range fields {
		if _, ok := allowed[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &SchemaError{Kind: kind, Field: unknown[0], Reason: "is not a known parameter"}
	}

	plain := make(map[string][]byte, len(fields))
	for name, value := range fields {
		if string(value) == "null" {
			return nil, &SchemaError{Kind: kind, Field: name, Reason: "must not be null"}
		}
		plain[name] = value
	}

	for _, name := range def.Schema["required"].([]string) {
		if _, ok := plain[name]; !ok {
			return nil, &SchemaError{Kind: kind, Field: name, Reason: "is required"}
		}
	}

	return def.validate(plain)
}

func decodeString(kind Kind, fields map[string][]byte, name string) (string, error) {
	var s string
	if err := json.Unmarshal(fields[name], &s); err != nil {
		return "", &SchemaError{Kind: kind, Field: name, Reason: "must be a string"}
	}
	return s, nil
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s, "@")
}

func validateOpenURL(fields map[string][]byte) (Parameters, error) {
	raw, err := decodeString(KindOpenURL, fields, "url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return nil, &SchemaError{Kind: KindOpenURL, Field: "url", Reason: "must be an absolute URL"}
	}
	return OpenURLParams{URL: raw}, nil
}

func validateComposeEmail(fields map[string][]byte) (Parameters, error) {
	var p ComposeEmailParams
	var err error
	if p.To, err = decodeString(KindComposeEmail, fields, "to"); err != nil {
		return nil, err
	}
	if !isEmail(p.To) {
		return nil, &SchemaError{Kind: KindComposeEmail, Field: "to", Reason: "must be an email address"}
	}
	if p.Subject, err = decodeString(KindComposeEmail, fields, "subject"); err != nil {
		return nil, err
	}
	if p.Body, err = decodeString(KindComposeEmail, fields, "body"); err != nil {
		return nil, err
	}
	return p, nil
}

func validateScheduleEvent(fields map[string][]byte) (Parameters, error) {
	var p ScheduleEventParams
	var err error
	if p.Title, err = decodeString(KindScheduleEvent, fields, "title"); err != nil {
		return nil, err
	}
	if p.When, err = decodeString(KindScheduleEvent, fields, "when"); err != nil {
		return nil, err
	}

	if raw, ok := fields["durationMinutes"]; ok {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, &SchemaError{Kind: KindScheduleEvent, Field: "durationMinutes", Reason: "must be a number"}
		}
		if n != math.Trunc(n) || n <= 0 || n > math.MaxInt32 {
			return nil, &SchemaError{Kind: KindScheduleEvent, Field: "durationMinutes", Reason: "must be a positive integer"}
		}
		d := int(n)
		p.DurationMinutes = &d
	}

	if _, ok := fields["location"]; ok {
		loc, err := decodeString(KindScheduleEvent, fields, "location")
		if err != nil {
			return nil, err
		}
		p.Location = &loc
	}

	if raw, ok := fields["attendees"]; ok {
		var attendees []string
		if err := json.Unmarshal(raw, &attendees); err != nil || attendees == nil {
			return nil, &SchemaError{Kind: KindScheduleEvent, Field: "attendees", Reason: "must be a list of strings"}
		}
		for i, a := range attendees {
			if !isEmail(a) {
				return nil, &SchemaError{
					Kind:   KindScheduleEvent,
					Field:  fmt.Sprintf("attendees[%d]", i),
					Reason: "must be an email address",
				}
			}
		}
		p.Attendees = attendees
	}

	return p, nil
}

func validateAdjustVolume(fields map[string][]byte) (Parameters, error) {
	var level float64
	if err := json.Unmarshal(fields["level"], &level); err != nil {
		return nil, &SchemaError{Kind: KindAdjustVolume, Field: "level", Reason: "must be a number"}
	}
	if level < 0 || level > 100 {
		return nil, &SchemaError{Kind: KindAdjustVolume, Field: "level", Reason: "must be between 0 and 100"}
	}
	return AdjustVolumeParams{Level: level}, nil
}

func validateAskConfirmation(fields map[string][]byte) (Parameters, error) {
	msg, err := decodeString(KindAskConfirmation, fields, "message")
	if err != nil {
		return nil, err
	}
	return AskConfirmationParams{Message: msg}, nil
}
