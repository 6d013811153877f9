package charter

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// section names the parser recognizes as "^#{1,6}\s+<NAME>\b" headers.
type section int

const (
	sectionNone section = iota
	sectionGoals
	sectionScope
	sectionConstraints
)

// scopeSub tracks which "### In Scope" / "### Out of Scope" subsection
// (if any) the parser is currently inside.
type scopeSub int

const (
	scopeSubNone scopeSub = iota
	scopeSubIn
	scopeSubOut
)

var (
	headerRe     = regexp.MustCompile(`(?i)^#{1,6}\s+(goals|scope|constraints)\b`)
	scopeSubInRe = regexp.MustCompile(`(?i)^#{1,6}\s+in\s+scope\b`)
	scopeSubOutRe = regexp.MustCompile(`(?i)^#{1,6}\s+out\s+of\s+scope\b`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]|\d+\.)\s+(.*)$`)
	hruleRe      = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	boldMarkRe   = regexp.MustCompile(`\*\*|__`)
	italicMarkRe = regexp.MustCompile(`(?:^|[^*])\*([^*]+)\*(?:[^*]|$)`)
	// leadingEmojiRe strips a run of emoji/symbol code points (and any
	// following whitespace) from the start of a bullet's text.
	leadingEmojiRe = regexp.MustCompile(`^[\x{1F000}-\x{1FFFF}\x{2190}-\x{2BFF}\x{2600}-\x{27BF}\x{FE0F}\x{200D}\s]+`)
)

const (
	markerIn  = "✅"
	markerOut = "❌"
)

// Parse reads path and extracts the charter record. Returns
// ErrCharterMissing if the file does not exist, ErrCharterUnparseable if
// no GOALS/SCOPE/CONSTRAINTS section can be located.
func Parse(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCharterMissing, path)
		}
		return nil, fmt.Errorf("charter: failed to read %s: %w", path, err)
	}
	return ParseText(string(data))
}

// ParseText extracts the charter record from raw markdown text. Input is
// normalized to NFC first: charter files edited on different platforms can
// carry the ✅/❌ scope markers as decomposed Unicode sequences, which would
// otherwise fail the literal prefix match in extractScopeMarker.
func ParseText(text string) (*Record, error) {
	text = norm.NFC.String(text)
	rec := &Record{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	current := sectionNone
	sub := scopeSubNone
	sawSectionHeader := false
	sawScopeInItem := false
	seenScopeIn := map[string]bool{}
	seenScopeOut := map[string]bool{}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || hruleRe.MatchString(trimmed) {
			continue
		}

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			sawSectionHeader = true
			sub = scopeSubNone
			sawScopeInItem = false
			switch strings.ToLower(m[1]) {
			case "goals":
				current = sectionGoals
			case "scope":
				current = sectionScope
			case "constraints":
				current = sectionConstraints
			}
			continue
		}

		if current == sectionScope {
			if scopeSubInRe.MatchString(trimmed) {
				sub = scopeSubIn
				continue
			}
			if scopeSubOutRe.MatchString(trimmed) {
				sub = scopeSubOut
				continue
			}
		}

		// Any other "#" heading (bold-only headers, unrelated markdown
		// headings) resets section tracking until the next recognized header.
		if strings.HasPrefix(trimmed, "#") {
			current = sectionNone
			continue
		}

		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		switch current {
		case sectionGoals:
			if item := cleanItem(m[1]); item != "" {
				rec.Goals = append(rec.Goals, item)
			}
		case sectionConstraints:
			if item := cleanItem(m[1]); item != "" {
				rec.Constraints = append(rec.Constraints, item)
			}
		case sectionScope:
			// Scope markers (✅/❌) must be read off the raw bullet text
			// before cleanItem's emoji stripping removes them.
			marker, rest := extractScopeMarker(m[1])
			item := cleanItem(rest)
			if item == "" {
				continue
			}
			assignScopeItem(rec, item, marker, sub, seenScopeIn, seenScopeOut, &sawScopeInItem)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("charter: failed to scan charter text: %w", err)
	}

	if !sawSectionHeader {
		return nil, ErrCharterUnparseable
	}
	return rec, nil
}

// extractScopeMarker splits a leading ✅/❌ marker (and any following
// whitespace) off a raw scope bullet, before emoji-stripping in cleanItem
// would otherwise destroy it.
func extractScopeMarker(raw string) (scopeSub, string) {
	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, markerIn):
		return scopeSubIn, strings.TrimSpace(strings.TrimPrefix(text, markerIn))
	case strings.HasPrefix(text, markerOut):
		return scopeSubOut, strings.TrimSpace(strings.TrimPrefix(text, markerOut))
	default:
		return scopeSubNone, text
	}
}

// assignScopeItem implements spec.md §4.1's scope sub-partition: items
// prefixed with a marker (or under an explicit subsection) go to the
// matching set; unmarked items default to scope_in only while no in-scope
// item has been seen yet in the section, and are otherwise ignored.
func assignScopeItem(rec *Record, item string, itemMarker, sub scopeSub, seenIn, seenOut map[string]bool, sawScopeInItem *bool) {
	marker := itemMarker
	if marker == scopeSubNone {
		marker = sub
	}

	switch marker {
	case scopeSubIn:
		addToSet(&rec.ScopeIn, seenIn, item)
		*sawScopeInItem = true
	case scopeSubOut:
		addToSet(&rec.ScopeOut, seenOut, item)
	default:
		if !*sawScopeInItem {
			addToSet(&rec.ScopeIn, seenIn, item)
			*sawScopeInItem = true
		}
		// else: ignored, per spec.md §4.1.
	}
}

func addToSet(set *[]string, seen map[string]bool, item string) {
	if seen[item] {
		return
	}
	seen[item] = true
	*set = append(*set, item)
}

// cleanItem strips bold/italic markers, leading emoji runs, and a
// trailing " - explanation" remainder, keeping the head of the item.
func cleanItem(raw string) string {
	text := strings.TrimSpace(raw)
	text = leadingEmojiRe.ReplaceAllString(text, "")
	text = boldMarkRe.ReplaceAllString(text, "")
	text = stripItalics(text)
	text = stripTrailingExplanation(text)
	return strings.TrimSpace(text)
}

func stripItalics(text string) string {
	// Remove every underscore (which covers underscore italics markers), then
	// strip single-asterisk italics markers that bulletRe's leading "*"
	// consumption didn't already remove.
	text = strings.ReplaceAll(text, "_", "")
	for {
		loc := italicMarkRe.FindStringSubmatchIndex(text)
		if loc == nil {
			break
		}
		text = text[:loc[2]-1] + text[loc[2]:loc[3]] + text[loc[3]+1:]
	}
	return text
}

// stripTrailingExplanation cuts a " - explanation" remainder, keeping the
// head. Only matches a hyphen surrounded by spaces so hyphenated words are
// left alone.
func stripTrailingExplanation(text string) string {
	idx := strings.Index(text, " - ")
	if idx == -1 {
		return text
	}
	return strings.TrimSpace(text[:idx])
}
