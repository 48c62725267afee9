package ast

// Tuple is an ordered sequence of Parameters plus a label→index map. The
// Collection flag marks `[...]`/`[:]` literal syntax as opposed to a
// call's argument tuple.
type Tuple struct {
	Elements []Parameter
	Labels map[string]int
	Collection bool
}

// NewTuple() builds an empty, non-collection Tuple ready for appends.
func NewTuple() *Tuple {
	return &Tuple{Labels: map[string]int{}}
}

// Append adds a positional element.
func (t *Tuple) Append(p Parameter) {
	t.Elements = append(t.Elements, p)
}

// AppendLabeled adds a labeled element.
func (t *Tuple) AppendLabeled(label string, p Parameter) {
	t.Labels[label] = len(t.Elements)
	t.Elements = append(t.Elements, p)
}

// Label returns the element bound to a label, if present.
func (t *Tuple) Label(name string) (Parameter, bool) {
	idx, ok := t.Labels[name]
	if !ok {
		return Parameter{}, false
	}
	return t.Elements[idx], true
}

// IsEvaluable() reports whether the Tuple can render directly to a
// concrete Value: every element is valued and either all elements are
// labeled (dictionary) or none are (array).
func (t *Tuple) IsEvaluable() bool {
	for i := range t.Elements {
		if t.Elements[i].Kind != ParamValue {
			return false
		}
	}
	if len(t.Labels) == 0 {
		return true
	}
	return len(t.Labels) == len(t.Elements)
}

// LabelOrder() returns labels in element order, for stable dictionary
// construction.
func (t *Tuple) LabelOrder() []string {
	order := make([]string, 0, len(t.Labels))
	for i := range t.Elements {
		for name, idx := range t.Labels {
			if idx == i {
				order = append(order, name)
				break
			}
		}
	}
	return order
}
