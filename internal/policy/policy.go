// Package policy holds the access policy table: a static, total mapping from
// application area to the roles allowed to enter it, plus the home area each
// role is redirected to on a mismatch.
//
// A table can only be obtained through Build, which rejects any table that is
// not total over the areas the application exposes. Looking up an undeclared
// area afterwards is a programming error and surfaces as ConfigurationError.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"housing/pkg/domain"
	dErrors "housing/pkg/domain-errors"
)

// Entry is the policy for one area.
type Entry struct {
	Area   domain.Area
	Path   string
	Public bool
	roles  map[domain.Role]struct{}
}

// Allows reports whether role may enter the area. Public areas admit every
// role as well as anonymous callers.
func (e Entry) Allows(role domain.Role) bool {
	if e.Public {
		return true
	}
	_, ok := e.roles[role]
	return ok
}

// AllowedRoles returns the permitted roles in stable order.
func (e Entry) AllowedRoles() []domain.Role {
	out := make([]domain.Role, 0, len(e.roles))
	for _, r := range domain.Roles() {
		if _, ok := e.roles[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Rule is the declarative input for one area.
type Rule struct {
	Area   domain.Area   `yaml:"area"`
	Path   string        `yaml:"path"`
	Public bool          `yaml:"public"`
	Roles  []domain.Role `yaml:"roles"`
}

// Table is an immutable, validated policy table.
type Table struct {
	entries map[domain.Area]Entry
	homes   map[domain.Role]domain.Area
	paths   []pathEntry
}

type pathEntry struct {
	prefix string
	area   domain.Area
}

// ConfigurationError reports every totality problem found while building a
// table. It is the only error class allowed to abort the process.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "access policy misconfigured: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) DomainCode() dErrors.Code { return dErrors.CodeConfiguration }

// Build validates rules and home areas against the areas the application
// exposes and returns the table.
func Build(rules []Rule, homes map[domain.Role]domain.Area, exposed []domain.Area) (*Table, error) {
	var problems []string
	t := &Table{
		entries: make(map[domain.Area]Entry, len(rules)),
		homes:   make(map[domain.Role]domain.Area, len(homes)),
	}
	seenPaths := map[string]domain.Area{}

	for _, rule := range rules {
		if rule.Area == "" {
			problems = append(problems, "rule with empty area")
			continue
		}
		if _, dup := t.entries[rule.Area]; dup {
			problems = append(problems, fmt.Sprintf("area %q declared twice", rule.Area))
			continue
		}
		entry := Entry{Area: rule.Area, Path: rule.Path, Public: rule.Public, roles: map[domain.Role]struct{}{}}
		for _, r := range rule.Roles {
			if !r.IsValid() {
				problems = append(problems, fmt.Sprintf("area %q: unknown role %q", rule.Area, r))
				continue
			}
			entry.roles[r] = struct{}{}
		}
		if !rule.Public && len(entry.roles) == 0 {
			problems = append(problems, fmt.Sprintf("area %q admits no role", rule.Area))
		}
		if rule.Path != "" {
			if !strings.HasPrefix(rule.Path, "/") {
				problems = append(problems, fmt.Sprintf("area %q: path %q must start with /", rule.Area, rule.Path))
			} else if other, dup := seenPaths[rule.Path]; dup {
				problems = append(problems, fmt.Sprintf("path %q bound to both %q and %q", rule.Path, other, rule.Area))
			} else {
				seenPaths[rule.Path] = rule.Area
				t.paths = append(t.paths, pathEntry{prefix: rule.Path, area: rule.Area})
			}
		}
		t.entries[rule.Area] = entry
	}

	for _, role := range domain.Roles() {
		home, ok := homes[role]
		if !ok {
			problems = append(problems, fmt.Sprintf("role %q has no home area", role))
			continue
		}
		entry, declared := t.entries[home]
		if !declared {
			problems = append(problems, fmt.Sprintf("home area %q of role %q is not declared", home, role))
			continue
		}
		if !entry.Allows(role) {
			problems = append(problems, fmt.Sprintf("home area %q does not admit role %q", home, role))
			continue
		}
		t.homes[role] = home
	}

	for _, area := range exposed {
		if _, ok := t.entries[area]; !ok {
			problems = append(problems, fmt.Sprintf("exposed area %q has no policy entry", area))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &ConfigurationError{Problems: problems}
	}

	// Longest prefix first so Resolve picks the most specific area.
	sort.Slice(t.paths, func(i, j int) bool { return len(t.paths[i].prefix) > len(t.paths[j].prefix) })
	return t, nil
}

// PolicyFor returns the entry for area. An undeclared area is a configuration
// fault, never an access decision.
func (t *Table) PolicyFor(area domain.Area) (Entry, error) {
	entry, ok := t.entries[area]
	if !ok {
		return Entry{}, &ConfigurationError{Problems: []string{fmt.Sprintf("area %q has no policy entry", area)}}
	}
	return entry, nil
}

// HomeArea is the redirect target for role. Build guarantees every valid role
// has one.
func (t *Table) HomeArea(role domain.Role) (domain.Area, bool) {
	area, ok := t.homes[role]
	return area, ok
}

// Declared reports whether the area has an entry.
func (t *Table) Declared(area domain.Area) bool {
	_, ok := t.entries[area]
	return ok
}

// Areas lists declared areas in sorted order.
func (t *Table) Areas() []domain.Area {
	out := make([]domain.Area, 0, len(t.entries))
	for a := range t.entries {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve maps a request path to an area by longest segment-aligned prefix.
// The root path only matches exactly.
func (t *Table) Resolve(path string) (domain.Area, bool) {
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	for _, p := range t.paths {
		if p.prefix == "/" {
			if path == "/" {
				return p.area, true
			}
			continue
		}
		if path == p.prefix || strings.HasPrefix(path, p.prefix+"/") {
			return p.area, true
		}
	}
	return "", false
}
