package relay

import (
	"context"
	"strings"

	"relay-bot-backend/internal/settings"
)

// Operators answers authorization questions. Primary operators come from the
// environment and are the only ones allowed into the config menu; authorized
// co-operators are maintained through the menu and stored in config.
type Operators struct {
	primary map[string]bool
	cfg     *settings.Resolver
}

func NewOperators(primaryIDs []string, cfg *settings.Resolver) *Operators {
	primary := make(map[string]bool, len(primaryIDs))
	for _, id := range primaryIDs {
		if id = strings.TrimSpace(id); id != "" {
			primary[id] = true
		}
	}
	return &Operators{primary: primary, cfg: cfg}
}

// IsPrimary reports whether id is in the environment allow-list.
func (o *Operators) IsPrimary(id string) bool { return o.primary[id] }

// IsOperator reports whether id is a primary operator or an authorized
// co-operator.
func (o *Operators) IsOperator(ctx context.Context, id string) bool {
	if o.primary[id] {
		return true
	}
	for _, a := range o.cfg.AuthorizedOperators(ctx) {
		if a == id {
			return true
		}
	}
	return false
}

// PrimaryIDs returns the environment allow-list, for menu display.
func (o *Operators) PrimaryIDs() []string {
	ids := make([]string, 0, len(o.primary))
	for id := range o.primary {
		ids = append(ids, id)
	}
	return ids
}
