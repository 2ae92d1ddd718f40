package awsbundle

// containerWrites records what a load wrote so a failure can undo it.
// Definitions that existed before the load are restored; everything else is
// removed.
type containerWrites struct {
	container   Container
	parameters  []priorParameter
	definitions []priorDefinition
	aliases     []string
}

type priorDefinition struct {
	id       string
	previous *Definition
}

type priorParameter struct {
	name     string
	previous any
	existed  bool
}

type parameterReader interface {
	Parameter(name string) (any, bool)
}

func newContainerWrites(container Container) *containerWrites {
	return &containerWrites{container: container}
}

func (w *containerWrites) setParameter(name string, value any) {
	prior := priorParameter{name: name}
	if reader, ok := w.container.(parameterReader); ok {
		prior.previous, prior.existed = reader.Parameter(name)
	}
	w.container.SetParameter(name, value)
	w.parameters = append(w.parameters, prior)
}

func (w *containerWrites) setDefinition(id string, definition *Definition) error {
	previous, err := w.container.Definition(id)
	if err != nil {
		previous = nil
	}
	if err := w.container.SetDefinition(id, definition); err != nil {
		return err
	}
	w.definitions = append(w.definitions, priorDefinition{id: id, previous: previous})
	return nil
}

// setAlias records alias for removal only when it did not resolve before the
// load, so aliases from an earlier load survive a rollback.
func (w *containerWrites) setAlias(alias, id string) error {
	_, err := w.container.Definition(alias)
	existed := err == nil
	if err := w.container.SetAlias(alias, id); err != nil {
		return err
	}
	if !existed {
		w.aliases = append(w.aliases, alias)
	}
	return nil
}

func (w *containerWrites) definitionIDs() []string {
	ids := make([]string, 0, len(w.definitions))
	for _, written := range w.definitions {
		ids = append(ids, written.id)
	}
	return ids
}

// rollback reverts recorded writes in reverse order. It reports false when
// the container cannot remove entries.
func (w *containerWrites) rollback() bool {
	remover, ok := w.container.(Remover)
	if !ok {
		return len(w.parameters) == 0 && len(w.definitions) == 0 && len(w.aliases) == 0
	}
	for i := len(w.aliases) - 1; i >= 0; i-- {
		remover.RemoveAlias(w.aliases[i])
	}
	for i := len(w.definitions) - 1; i >= 0; i-- {
		written := w.definitions[i]
		if written.previous != nil {
			_ = w.container.SetDefinition(written.id, written.previous)
			continue
		}
		remover.RemoveDefinition(written.id)
	}
	for i := len(w.parameters) - 1; i >= 0; i-- {
		prior := w.parameters[i]
		if prior.existed {
			w.container.SetParameter(prior.name, prior.previous)
			continue
		}
		remover.RemoveParameter(prior.name)
	}
	w.parameters, w.definitions, w.aliases = nil, nil, nil
	return true
}
