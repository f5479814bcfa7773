package advice

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Requirement names an advice package and the extras requested from it,
// written as "name" or "name[extra1,extra2]".
type Requirement struct {
	Name   string
	Extras []string
}

// ParseRequirement parses value. Extras are returned sorted and
// de-duplicated.
func ParseRequirement(value string) (Requirement, error) {
	v := strings.TrimSpace(value)
	name, rest, hasExtras := strings.Cut(v, "[")
	name = strings.TrimSpace(name)
	if !nameRe.MatchString(name) {
		return Requirement{}, fmt.Errorf("invalid advice package name %q", value)
	}
	req := Requirement{Name: name}
	if !hasExtras {
		return req, nil
	}
	inner, ok := strings.CutSuffix(strings.TrimSpace(rest), "]")
	if !ok || strings.ContainsAny(inner, "[]") {
		return Requirement{}, fmt.Errorf("invalid extras in advice package %q", value)
	}
	seen := map[string]struct{}{}
	for _, e := range strings.Split(inner, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !nameRe.MatchString(e) {
			return Requirement{}, fmt.Errorf("invalid extra %q in advice package %q", e, value)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		req.Extras = append(req.Extras, e)
	}
	sort.Strings(req.Extras)
	return req, nil
}

func (r Requirement) String() string {
	if len(r.Extras) == 0 {
		return r.Name
	}
	return r.Name + "[" + strings.Join(r.Extras, ",") + "]"
}
