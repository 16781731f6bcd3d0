package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixEvent    = "evt"
	PrefixElement  = "elem"
	PrefixGhost    = "ghost"
	PrefixHatch    = "hatch"
	PrefixHandler  = "mh"
	PrefixOperator = "op"
	PrefixSymbol   = "sym"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewEventID() string    { return New(PrefixEvent) }
func NewElementID() string  { return New(PrefixElement) }
func NewGhostID() string    { return New(PrefixGhost) }
func NewHatchID() string    { return New(PrefixHatch) }
func NewHandlerID() string  { return New(PrefixHandler) }
func NewOperatorID() string { return New(PrefixOperator) }
func NewSymbolID() string   { return New(PrefixSymbol) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}

// HasPrefix reports whether id parses as a typeid carrying prefix.
func HasPrefix(id, prefix string) bool {
	return Validate(id, prefix) == nil
}
