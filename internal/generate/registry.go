package generate

import (
	"errors"
	"fmt"
)

// ErrUnknownClass — для категории нет зарегистрированного генератора.
var ErrUnknownClass = errors.New("unknown generation class")

// Registry — неизменяемое сопоставление категория → Generator.
// Набор фиксируется при конструировании и передаётся в pipeline как
// конфигурация — процесс-wide мутируемого реестра нет.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry создаёт реестр из готового сопоставления.
func NewRegistry(generators map[string]Generator) *Registry {
	copied := make(map[string]Generator, len(generators))
	for class, g := range generators {
		copied[class] = g
	}
	return &Registry{generators: copied}
}

// Get возвращает генератор для категории.
func (r *Registry) Get(class string) (Generator, error) {
	g, ok := r.generators[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return g, nil
}

// Classes возвращает зарегистрированные категории.
func (r *Registry) Classes() []string {
	classes := make([]string, 0, len(r.generators))
	for class := range r.generators {
		classes = append(classes, class)
	}
	return classes
}
