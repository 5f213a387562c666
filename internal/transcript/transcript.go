// Package transcript keeps the ordered, append-only record of one
// conversation's turns.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/ace-assistant/internal/action"
)

// Role is the author of an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// MaxTitleLength is the rune length DeriveTitle truncates to.
const MaxTitleLength = 80

// DefaultTitle is used when there is no text to derive a title from.
const DefaultTitle = "Conversation"

var (
	ErrInvalidRole = errors.New("invalid role")
	ErrInvalidPart = errors.New("invalid part")
)

// Part is one piece of an entry's content: *Text, *File or *Action.
type Part interface {
	partType() string
}

// Text is plain message text.
type Text struct {
	Text string
}

// File is an inline attachment. Data is always a data: URL, never a path.
type File struct {
	Data      string
	MediaType string
	Filename  string
}

// Action references a proposal. Status and Output capture the proposal at
// the moment the entry was appended.
type Action struct {
	ProposalID string
	Kind       action.Kind
	Input      json.RawMessage
	Status     action.Status
	Output     string
}

func (*Text) partType() string   { return "text" }
func (*File) partType() string   { return "file" }
func (*Action) partType() string { return "action" }

func (p *Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", p.Text})
}

func (p *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		Data      string `json:"data"`
		MediaType string `json:"media_type"`
		Filename  string `json:"filename,omitempty"`
	}{"file", p.Data, p.MediaType, p.Filename})
}

func (p *Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string          `json:"type"`
		ProposalID string          `json:"proposal_id"`
		Kind       action.Kind     `json:"kind"`
		Input      json.RawMessage `json:"input,omitempty"`
		Status     action.Status   `json:"status"`
		Output     string          `json:"output,omitempty"`
	}{"action", p.ProposalID, p.Kind, p.Input, p.Status, p.Output})
}

// Entry is one turn.
type Entry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// Text joins the entry's text parts with newlines.
func (e Entry) Text() string {
	var texts []string
	for _, p := range e.Parts {
		if t, ok := p.(*Text); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Row is the flattened form of an entry used for persistence.
type Row struct {
	Role    Role
	Content string
}

// Transcript is safe for concurrent use.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds an entry at the end. Earlier entries are never touched.
func (t *Transcript) Append(e Entry) (Entry, error) {
	if !e.Role.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidRole, e.Role)
	}
	parts := make([]Part, 0, len(e.Parts))
	for _, p := range e.Parts {
		c, err := clonePart(p)
		if err != nil {
			return Entry{}, err
		}
		parts = append(parts, c)
	}
	e.Parts = parts
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	return e, nil
}

func clonePart(p Part) (Part, error) {
	switch v := p.(type) {
	case *Text:
		c := *v
		return &c, nil
	case *File:
		if !strings.HasPrefix(v.Data, "data:") {
			return nil, fmt.Errorf("%w: file data must be a data URL", ErrInvalidPart)
		}
		c := *v
		return &c, nil
	case *Action:
		if v.ProposalID == "" {
			return nil, fmt.Errorf("%w: action without proposal id", ErrInvalidPart)
		}
		c := *v
		c.Input = append(json.RawMessage(nil), v.Input...)
		return &c, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidPart, p)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a snapshot of the entries in order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		parts := make([]Part, len(e.Parts))
		for j, p := range e.Parts {
			parts[j], _ = clonePart(p)
		}
		e.Parts = parts
		out[i] = e
	}
	return out
}

// ExportForPersistence flattens every entry to its text parts joined by
// newlines. Files and actions are dropped.
func (t *Transcript) ExportForPersistence() []Row {
	entries := t.Entries()
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Role: e.Role, Content: e.Text()}
	}
	return rows
}

// DeriveTitle returns the first user text, falling back to the first
// entry's text and then to DefaultTitle.
func (t *Transcript) DeriveTitle() string {
	return DeriveTitle(t.ExportForPersistence())
}

// DeriveTitle picks a title for a set of rows.
func DeriveTitle(rows []Row) string {
	for _, r := range rows {
		if r.Role == RoleUser && r.Content != "" {
			return truncate(r.Content, MaxTitleLength)
		}
	}
	if len(rows) > 0 && rows[0].Content != "" {
		return truncate(rows[0].Content, MaxTitleLength)
	}
	return DefaultTitle
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// LastAssistantText returns the text of the most recent assistant entry.
func (t *Transcript) LastAssistantText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Role == RoleAssistant {
			return t.entries[i].Text()
		}
	}
	return ""
}

// FrameUserText prefixes user input with the persona, if any.
func FrameUserText(persona, text string, voice bool) string {
	if persona == "" {
		return text
	}
	if voice {
		return fmt.Sprintf("System persona: %s\nUser (voice): %s", persona, text)
	}
	return fmt.Sprintf("System persona: %s\nUser: %s", persona, text)
}
