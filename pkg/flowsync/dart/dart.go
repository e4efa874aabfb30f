// Package dart extracts the small amount of structure the engine needs
// from Dart source: top-level declaration names, and the function bodies of
// the aggregate custom-functions document. It is a line scanner with brace
// tracking, not a real parser; the rename heuristics only need names.
package dart

import (
	"regexp"
	"strings"
)

// Function is one top-level function of the aggregate document.
type Function struct {
	Name string
	Body string
}

var (
	// typeDeclPattern matches class-like top-level declarations.
	typeDeclPattern = regexp.MustCompile(`^(?:abstract\s+)?(?:class|mixin|enum|extension)\s+([A-Za-z_]\w*)`)

	// funcDeclPattern matches top-level function declarations: an optional
	// return type followed by a name and an argument list opener.
	funcDeclPattern = regexp.MustCompile(`^(?:[A-Za-z_][\w<>,\s\[\]?]*?\s+)?([a-zA-Z_]\w*)\s*(?:<[^>(]*>)?\s*\(`)
)

// reserved words that funcDeclPattern would otherwise misread as names.
var reserved = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "import": true, "export": true, "part": true,
}

// TopLevelDeclarations returns the names of all top-level class-like and
// function declarations in source order.
func TopLevelDeclarations(src string) []string {
	var names []string
	depth := 0
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if depth == 0 && trimmed != "" && !strings.HasPrefix(trimmed, "//") {
			if name, ok := declarationName(trimmed); ok {
				names = append(names, name)
			}
		}
		depth += braceDelta(trimmed)
		if depth < 0 {
			depth = 0
		}
	}
	return names
}

// ParseFunctions splits the aggregate functions document into its top-level
// functions, in source order. A duplicated name keeps its first position
// but the last body wins.
func ParseFunctions(src string) []Function {
	var (
		order  []string
		bodies = make(map[string]string)

		current string
		body    []string
		depth   = 0
	)

	flush := func() {
		if current == "" {
			return
		}
		if _, seen := bodies[current]; !seen {
			order = append(order, current)
		}
		bodies[current] = strings.Join(body, "\n")
		current, body = "", nil
	}

	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)

		if depth == 0 {
			if current != "" && len(body) > 0 {
				flush()
			}
			if trimmed == "" || strings.HasPrefix(trimmed, "//") ||
				strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
				continue
			}
			if name, ok := functionName(trimmed); ok {
				current = name
			}
		}

		if current != "" {
			body = append(body, line)
		}

		depth += braceDelta(trimmed)
		if depth < 0 {
			depth = 0
		}

		// Arrow-style one-liners never open a brace.
		if depth == 0 && current != "" && strings.HasSuffix(trimmed, ";") && !strings.Contains(strings.Join(body, ""), "{") {
			flush()
		}
	}
	flush()

	out := make([]Function, 0, len(order))
	for _, name := range order {
		out = append(out, Function{Name: name, Body: bodies[name]})
	}
	return out
}

// declarationName extracts a top-level declaration name from a line.
func declarationName(line string) (string, bool) {
	if m := typeDeclPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return functionName(line)
}

// functionName extracts a function declaration name from a line.
func functionName(line string) (string, bool) {
	m := funcDeclPattern.FindStringSubmatch(line)
	if m == nil || reserved[m[1]] {
		return "", false
	}
	return m[1], true
}

// braceDelta returns the net brace depth change of a line, ignoring braces
// inside string literals and line comments.
func braceDelta(line string) int {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	delta := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			delta++
		case c == '}':
			delta--
		}
	}
	return delta
}
