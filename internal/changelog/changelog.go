// Package changelog parses and renders keep-a-changelog Markdown
// documents (spec.md §4.3): grouping conventional commits into
// categories, rendering a new release section through a configurable
// text/template, and splicing it into an existing document without
// disturbing anything already there.
//
// Grounded on crates/release_plz_core/src/changelog.rs in
// original_source/ (itself a thin wrapper around git-cliff's commit
// parser/template config) for the shape of CommitParser/LinkParser/
// template-driven rendering; reimplemented against Go's text/template
// since git-cliff's Tera templating has no Go equivalent in the
// example pack.
package changelog

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/grovetools/release-plz-go/internal/model"
)

// CommitParser is one entry of an ordered commit-classification table:
// the first parser whose Pattern matches a (preprocessed) commit
// message decides that commit's group, or skips it.
type CommitParser struct {
	Pattern *regexp.Regexp
	Group   string
	Skip    bool
}

// Preprocessor is a regex substitution applied to every commit message
// before classification and rendering (e.g. stripping issue-tracker
// prefixes).
type Preprocessor struct {
	Pattern *regexp.Regexp
	Replace string
}

// LinkParser finds references in a commit message (e.g. "#123") and
// turns them into Markdown links. HrefTemplate may contain "{{remote}}",
// substituted with Config.RemoteURL before submatch expansion; submatch
// references use Go's regexp "${1}"-style replacement syntax.
type LinkParser struct {
	Pattern      *regexp.Regexp
	HrefTemplate string
	TextTemplate string // defaults to the matched text when empty
}

// Config drives both classification and rendering.
type Config struct {
	Header   string // the static document header, ending in "## [Unreleased]\n"
	Body     string // text/template source for a single release section
	Preprocessors []Preprocessor
	CommitParsers []CommitParser
	LinkParsers   []LinkParser

	// BreakingBypassSkip lets a breaking-change commit surface even when
	// the parser that matched it marks Skip.
	BreakingBypassSkip bool
	BreakingGroup       string
}

// DefaultConfig mirrors the Conventional Commits -> Keep a Changelog
// mapping release-plz ships out of the box.
func DefaultConfig() Config {
	return Config{
		Header: "# Changelog\n\n" +
			"All notable changes to this project will be documented in this file.\n\n" +
			"The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.0.0/),\n" +
			"and this project adheres to [Semantic Versioning](https://semver.org/spec/v2.0.0.html).\n\n" +
			"## [Unreleased]\n",
		Body: defaultBodyTemplate,
		CommitParsers: []CommitParser{
			{Pattern: regexp.MustCompile(`(?i)^feat(\(.*\))?!?:`), Group: "Added"},
			{Pattern: regexp.MustCompile(`(?i)^fix(\(.*\))?!?:`), Group: "Fixed"},
			{Pattern: regexp.MustCompile(`(?i)^perf(\(.*\))?!?:`), Group: "Changed"},
			{Pattern: regexp.MustCompile(`(?i)^refactor(\(.*\))?!?:`), Group: "Changed"},
			{Pattern: regexp.MustCompile(`(?i)^revert(\(.*\))?!?:`), Group: "Removed"},
			{Pattern: regexp.MustCompile(`(?i)^docs(\(.*\))?!?:`), Skip: true},
			{Pattern: regexp.MustCompile(`(?i)^chore(\(.*\))?!?:`), Skip: true},
			{Pattern: regexp.MustCompile(`(?i)^test(\(.*\))?!?:`), Skip: true},
			{Pattern: regexp.MustCompile(`(?i)^ci(\(.*\))?!?:`), Skip: true},
			{Pattern: regexp.MustCompile(`(?i)^build(\(.*\))?!?:`), Skip: true},
			{Pattern: regexp.MustCompile(`.*`), Group: "Other"},
		},
		LinkParsers: []LinkParser{
			{Pattern: regexp.MustCompile(`#(\d+)`), HrefTemplate: "{{remote}}/issues/${1}"},
		},
		BreakingBypassSkip: true,
		BreakingGroup:       "Breaking changes",
	}
}

const defaultBodyTemplate = `## [{{.Version}}] - {{.Date}}
{{range .Groups}}
### {{.Name}}
{{range .Commits}}- {{if .Scope}}*({{.Scope}})* {{end}}{{.Message}}{{range .Links}} [{{.Text}}]({{.Href}}){{end}}
{{- if .Breaking}}
  - **BREAKING**: {{.BreakingDescription}}
{{- end}}
{{end}}{{end}}`

// Link is a single rendered Markdown link.
type Link struct {
	Text string
	Href string
}

// RenderedCommit is the per-commit data handed to the body template.
type RenderedCommit struct {
	Scope               string
	Message             string
	Links               []Link
	Breaking            bool
	BreakingDescription string
}

// Group is a named bucket of rendered commits, in first-seen order.
type Group struct {
	Name    string
	Commits []RenderedCommit
}

type releaseData struct {
	Version string
	Date    string
	Groups  []Group
}

// ReleaseInput is everything Render needs to produce one release
// section.
type ReleaseInput struct {
	Version   string
	Date      time.Time
	Commits   []model.Commit
	RemoteURL string // e.g. "https://github.com/owner/repo", used by LinkParsers
}

// Render classifies input.Commits per cfg's parsers and renders a
// single "## [version] - date" section.
func Render(cfg Config, input ReleaseInput) (string, error) {
	groups := groupCommits(cfg, input)

	tmpl, err := template.New("release").Parse(cfg.Body)
	if err != nil {
		return "", fmt.Errorf("changelog: parse body template: %w", err)
	}

	var buf bytes.Buffer
	data := releaseData{
		Version: input.Version,
		Date:    input.Date.Format("2006-01-02"),
		Groups:  groups,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("changelog: render body: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

func groupCommits(cfg Config, input ReleaseInput) []Group {
	order := make([]string, 0, len(cfg.CommitParsers)+1)
	byGroup := make(map[string][]RenderedCommit)

	addTo := func(name string, rc RenderedCommit) {
		if _, ok := byGroup[name]; !ok {
			order = append(order, name)
		}
		byGroup[name] = append(byGroup[name], rc)
	}

	for _, c := range input.Commits {
		message := c.Message
		for _, pp := range cfg.Preprocessors {
			message = pp.Pattern.ReplaceAllString(message, pp.Replace)
		}
		firstLine := strings.SplitN(strings.TrimSpace(message), "\n", 2)[0]

		group, skip := classify(cfg, firstLine)
		breaking, breakingDesc := isBreaking(message)

		if skip && !(breaking && cfg.BreakingBypassSkip) {
			continue
		}

		rc := RenderedCommit{
			Message:             stripConventionalPrefix(firstLine),
			Links:               links(cfg, firstLine, input.RemoteURL),
			Breaking:            breaking,
			BreakingDescription: breakingDesc,
		}

		if breaking && cfg.BreakingGroup != "" {
			addTo(cfg.BreakingGroup, rc)
			continue
		}
		addTo(group, rc)
	}

	out := make([]Group, 0, len(order))
	for _, name := range order {
		out = append(out, Group{Name: name, Commits: byGroup[name]})
	}
	return out
}

func classify(cfg Config, message string) (group string, skip bool) {
	for _, p := range cfg.CommitParsers {
		if p.Pattern.MatchString(message) {
			return p.Group, p.Skip
		}
	}
	return "Other", false
}

var conventionalPrefixRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*(\([^)]*\))?!?:\s*`)

func stripConventionalPrefix(message string) string {
	return conventionalPrefixRE.ReplaceAllString(message, "")
}

var breakingFooterRE = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:\s*(.+)$`)

func isBreaking(message string) (bool, string) {
	if strings.Contains(strings.SplitN(message, "\n", 2)[0], "!:") {
		return true, ""
	}
	if m := breakingFooterRE.FindStringSubmatch(message); m != nil {
		return true, strings.TrimSpace(m[1])
	}
	return false, ""
}

func links(cfg Config, message, remoteURL string) []Link {
	var out []Link
	for _, lp := range cfg.LinkParsers {
		textTemplate := lp.TextTemplate
		if textTemplate == "" {
			textTemplate = "${0}"
		}
		hrefTemplate := []byte(strings.ReplaceAll(lp.HrefTemplate, "{{remote}}", remoteURL))

		for _, loc := range lp.Pattern.FindAllStringSubmatchIndex(message, -1) {
			text := lp.Pattern.ExpandString(nil, textTemplate, message, loc)
			href := lp.Pattern.ExpandString(nil, string(hrefTemplate), message, loc)
			out = append(out, Link{Text: string(text), Href: string(href)})
		}
	}
	return out
}
