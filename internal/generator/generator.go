// internal/generator/generator.go
package generator

import "context"

// Draft is the generated email content for one recipient.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Prompt carries the campaign-level generation configuration.
type Prompt struct {
	Purpose       string `json:"purpose"`
	Tone          string `json:"tone"`
	Constraints   string `json:"constraints,omitempty"`
	CallToAction  string `json:"call_to_action,omitempty"`
	MaxWords      int    `json:"max_words,omitempty"`
	ReferenceText string `json:"reference_text,omitempty"`
}

// Context carries the per-recipient facts the generator writes against.
type Context struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// ContentGenerator produces a subject and plain-text body for one recipient.
type ContentGenerator interface {
	Generate(ctx context.Context, p Prompt, rc Context) (*Draft, error)
}
