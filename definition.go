package awsbundle

import (
	"context"
	"fmt"
)

// FactoryCall instantiates a registration by calling Method on the service
// named by Service.
type FactoryCall struct {
	Service Reference
	Method  string
}

func (f FactoryCall) String() string {
	return fmt.Sprintf("%s::%s", f.Service, f.Method)
}

// Definition describes how a container builds one registration. Class may
// hold a %parameter% placeholder.
type Definition struct {
	Class       string
	Arguments   []any
	Factory     *FactoryCall
	Lazy        bool
	Constructor func(ctx context.Context, args []any) (any, error)
}

// NewDefinition constructs a definition for class with args.
func NewDefinition(class string, args ...any) *Definition {
	return &Definition{Class: class, Arguments: args}
}

// Argument returns the argument at index.
func (d *Definition) Argument(index int) (any, bool) {
	if d == nil || index < 0 || index >= len(d.Arguments) {
		return nil, false
	}
	return d.Arguments[index], true
}

// ReplaceArgument swaps the argument at index.
func (d *Definition) ReplaceArgument(index int, value any) error {
	if d == nil {
		return fmt.Errorf("awsbundle: replace argument on nil definition")
	}
	if index < 0 || index >= len(d.Arguments) {
		return fmt.Errorf("awsbundle: argument index %d out of range (%d arguments)", index, len(d.Arguments))
	}
	d.Arguments[index] = value
	return nil
}

// Container is the registry the extension writes into. Implementations own
// resolution; the extension never instantiates anything itself.
type Container interface {
	SetDefinition(id string, definition *Definition) error
	SetAlias(alias, id string) error
	Definition(id string) (*Definition, error)
	SetParameter(name string, value any)
}

// Remover is implemented by containers that can undo writes. A load that
// fails after writing uses it to restore the container.
type Remover interface {
	RemoveDefinition(id string)
	RemoveAlias(alias string)
	RemoveParameter(name string)
}
