// Package conventional parses conventional-commit subjects and footers, the
// shared input of the semver engine and the changelog engine.
//
// Grounded on the call shape the teacher's cmd/changelog.go expected from a
// sibling conventional-commit library (conventional.Parse / conventional.Commit);
// reimplemented locally since that library is private.
package conventional

import (
	"fmt"
	"regexp"
	"strings"
)

// Commit is a parsed conventional commit.
type Commit struct {
	Type        string // "feat", "fix", "chore", ...
	Scope       string // optional parenthesized scope
	Breaking    bool   // "!" marker or BREAKING CHANGE: footer
	Description string
	Body        string
	BreakingDescription string // text of the BREAKING CHANGE footer, if any
	Raw         string
}

var subjectRE = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_-]*)(\(([^)]*)\))?(!)?:\s*(.+)$`)
var breakingFooterRE = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:\s*(.+)$`)

// ErrNotConventional is returned by Parse when the message's subject line
// does not match `type(scope)?!?: description`.
var ErrNotConventional = fmt.Errorf("conventional: message does not conform")

// Parse parses a full commit message (subject + optional body/footers) into
// a Commit. Non-conforming messages return ErrNotConventional.
func Parse(message string) (*Commit, error) {
	message = strings.TrimRight(message, "\n")
	if message == "" {
		return nil, ErrNotConventional
	}

	lines := strings.SplitN(message, "\n", 2)
	subject := strings.TrimSpace(lines[0])
	var body string
	if len(lines) > 1 {
		body = strings.TrimSpace(lines[1])
	}

	m := subjectRE.FindStringSubmatch(subject)
	if m == nil {
		return nil, ErrNotConventional
	}

	c := &Commit{
		Type:        strings.ToLower(m[1]),
		Scope:       m[3],
		Breaking:    m[4] == "!",
		Description: strings.TrimSpace(m[5]),
		Body:        body,
		Raw:         message,
	}

	if fm := breakingFooterRE.FindStringSubmatch(body); fm != nil {
		c.Breaking = true
		c.BreakingDescription = strings.TrimSpace(fm[1])
	}

	return c, nil
}

// IsConventional reports whether message conforms, without returning the
// parsed structure.
func IsConventional(message string) bool {
	_, err := Parse(message)
	return err == nil
}
