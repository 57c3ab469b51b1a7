package ai

import (
	"regexp"
	"strings"
)

// ParseMode selects how generator output is interpreted.
type ParseMode string

const (
	ModeStructured ParseMode = "structured"
	ModeFreeform   ParseMode = "freeform"
)

// Parse converts generator output into a typed Response. Structured mode
// looks for delimited sections; when none are found it falls back to
// free-form heuristics rather than failing, preserving the raw output
// either way.
func Parse(raw string, mode ParseMode) *Response {
	resp := &Response{Raw: raw, Success: strings.TrimSpace(raw) != ""}
	if !resp.Success {
		return resp
	}

	if mode != ModeFreeform {
		if parseStructured(raw, resp) {
			return resp
		}
	}
	parseFreeform(raw, resp)
	return resp
}

var sectionRe = regexp.MustCompile(`(?i)^(?:#{1,4}\s*|\*\*)(summary|files modified|commands to run|notes)(?:\*\*)?:?\s*$`)

// parseStructured extracts the Summary / Files Modified / Commands to Run /
// Notes sections. Returns false when no recognized section was present.
func parseStructured(raw string, resp *Response) bool {
	sections := make(map[string][]string)
	var current string

	for _, line := range strings.Split(raw, "\n") {
		if m := sectionRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = strings.ToLower(m[1])
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
		}
	}

	if len(sections) == 0 {
		return false
	}

	resp.Summary = strings.TrimSpace(strings.Join(sections["summary"], "\n"))
	resp.Notes = strings.TrimSpace(strings.Join(sections["notes"], "\n"))

	for _, line := range sections["files modified"] {
		if fc, ok := parseFileLine(line); ok {
			resp.FileChanges = append(resp.FileChanges, fc)
		}
	}
	for _, line := range sections["commands to run"] {
		if cmd, ok := parseCommandLine(line); ok {
			resp.Commands = append(resp.Commands, cmd)
		}
	}
	return true
}

// parseFileLine parses `path - action - description?` with an optional
// leading bullet.
func parseFileLine(line string) (FileChange, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "- ")
	line = strings.TrimPrefix(line, "* ")
	if line == "" {
		return FileChange{}, false
	}

	parts := strings.SplitN(line, " - ", 3)
	fc := FileChange{Path: strings.Trim(strings.TrimSpace(parts[0]), "`")}
	if fc.Path == "" || strings.ContainsAny(fc.Path, " \t") {
		return FileChange{}, false
	}

	fc.Action = ActionModify
	if len(parts) >= 2 {
		fc.Action = normalizeAction(parts[1])
	}
	if len(parts) == 3 {
		fc.Description = strings.TrimSpace(parts[2])
	}
	return fc, true
}

func normalizeAction(s string) FileAction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "created", "add", "added", "new":
		return ActionCreate
	case "delete", "deleted", "remove", "removed":
		return ActionDelete
	default:
		return ActionModify
	}
}

var backtickRe = regexp.MustCompile("`([^`]+)`")

// toolRe matches plain lines that look like invocations of common tools.
var toolRe = regexp.MustCompile(`(?i)^(go|git|npm|npx|yarn|pnpm|make|pytest|python|pip|cargo|mvn|gradle|docker|kubectl|sh|bash)\b`)

// parseCommandLine extracts a command from a backtick-quoted line or a
// plain line matching a common tool pattern.
func parseCommandLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "- ")
	line = strings.TrimPrefix(line, "* ")
	if line == "" {
		return "", false
	}
	if m := backtickRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if toolRe.MatchString(line) {
		return line, true
	}
	return "", false
}

// pathRe matches tokens that look like file paths with a known extension.
var pathRe = regexp.MustCompile(`[\w./-]+\.(go|py|js|jsx|ts|tsx|rb|rs|java|c|h|cpp|hpp|cs|md|ya?ml|json|toml|sql|sh|proto|html|css)\b`)

// parseFreeform extracts file paths and commands from unstructured text.
func parseFreeform(raw string, resp *Response) {
	seen := make(map[string]bool)
	for _, p := range pathRe.FindAllString(raw, -1) {
		p = strings.Trim(p, ".")
		if seen[p] {
			continue
		}
		seen[p] = true
		resp.FileChanges = append(resp.FileChanges, FileChange{Path: p, Action: ActionModify})
	}

	seenCmd := make(map[string]bool)
	for _, m := range backtickRe.FindAllStringSubmatch(raw, -1) {
		token := strings.TrimSpace(m[1])
		if !toolRe.MatchString(token) || seenCmd[token] {
			continue
		}
		seenCmd[token] = true
		resp.Commands = append(resp.Commands, token)
	}

	// First non-empty line doubles as a summary for free-form output.
	for _, line := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			resp.Summary = s
			break
		}
	}
}
