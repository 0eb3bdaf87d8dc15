package permission

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

//go:embed roles.yaml
var defaultRoles []byte

const wildcard = "*"

// StaticSource answers from a role → permissions table. A role listed in the
// table gets a defined answer for every permission; unknown roles are undefined.
type StaticSource struct {
	roles map[domain.Role]map[string]struct{}
}

// NewStaticSource loads the embedded role defaults.
func NewStaticSource() (*StaticSource, error) {
	return ParseStaticSource(defaultRoles)
}

// ParseStaticSource builds a StaticSource from YAML of the form
// `role: [permission, ...]`.
func ParseStaticSource(data []byte) (*StaticSource, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("permission.ParseStaticSource: %w", err)
	}
	roles := make(map[domain.Role]map[string]struct{}, len(raw))
	for role, perms := range raw {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		roles[domain.Role(role)] = set
	}
	return &StaticSource{roles: roles}, nil
}

func (s *StaticSource) Lookup(_ context.Context, p domain.Principal, perm domain.Permission) (Result, error) {
	set, ok := s.roles[p.Role]
	if !ok {
		return undefined, nil
	}
	_, all := set[wildcard]
	_, one := set[string(perm)]
	return Result{Granted: all || one, Defined: true}, nil
}
