package robots

import (
	"bufio"
	"strings"
)

// Rules holds the Allow/Disallow patterns that apply to our user agent. The
// zero value allows everything.
type Rules struct {
	Allows    []string
	Disallows []string
}

// parse extracts the rule group for userAgent from a robots.txt body. A
// group whose User-agent token appears within our user agent string wins
// over the * group; groups for other agents are ignored.
func parse(body, userAgent string) *Rules {
	specific := &Rules{}
	wildcard := &Rules{}

	agentLower := strings.ToLower(userAgent)
	var current *Rules
	var sawSpecific bool

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		directive, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(strings.TrimSpace(directive))
		value = strings.TrimSpace(value)

		switch directive {
		case "user-agent":
			token := strings.ToLower(value)
			switch {
			case token == "*":
				current = wildcard
			case strings.Contains(agentLower, token):
				current = specific
				sawSpecific = true
			default:
				current = nil
			}

		case "disallow":
			// An empty Disallow means the whole site is allowed.
			if current != nil && value != "" {
				current.Disallows = append(current.Disallows, value)
			}

		case "allow":
			if current != nil && value != "" {
				current.Allows = append(current.Allows, value)
			}
		}
	}

	if sawSpecific {
		return specific
	}
	return wildcard
}

// isAllowed applies longest-match-wins over the Allow and Disallow patterns.
// No matching pattern allows the path.
func (r *Rules) isAllowed(path string) bool {
	if path == "" {
		path = "/"
	}

	var longest string
	allowed := true

	for _, pattern := range r.Allows {
		if matchesPath(path, pattern) && len(pattern) > len(longest) {
			longest = pattern
			allowed = true
		}
	}
	for _, pattern := range r.Disallows {
		if matchesPath(path, pattern) && len(pattern) > len(longest) {
			longest = pattern
			allowed = false
		}
	}
	return allowed
}

// matchesPath checks a path against a robots.txt pattern, supporting * and a
// trailing $ anchor.
func matchesPath(path, pattern string) bool {
	if strings.HasSuffix(pattern, "$") {
		pattern = strings.TrimSuffix(pattern, "$")
		if strings.Contains(pattern, "*") {
			return wildcardMatch(path, pattern, true)
		}
		return path == pattern
	}
	if strings.Contains(pattern, "*") {
		return wildcardMatch(path, pattern, false)
	}
	return strings.HasPrefix(path, pattern)
}

// wildcardMatch matches path against a pattern with * segments, optionally
// anchored at the end.
func wildcardMatch(path, pattern string, anchored bool) bool {
	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])

	for i := 1; i < len(parts); i++ {
		part := parts[i]
		if part == "" {
			continue
		}
		if anchored && i == len(parts)-1 {
			return strings.HasSuffix(path[pos:], part)
		}
		idx := strings.Index(path[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}
	return true
}
