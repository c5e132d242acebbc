package task

// ConstraintKind tags the variant of a Constraint node.
type ConstraintKind string

const (
	ConstraintAnd   ConstraintKind = "AND"
	ConstraintOr    ConstraintKind = "OR"
	ConstraintLabel ConstraintKind = "LABEL"
)

// Constraint is a tagged-variant tree over host labels. AND and OR nodes
// carry children; LABEL leaves carry a key/value requirement. Placement
// itself is an external concern, but configs carry constraints and the query
// surface exposes them, so evaluation lives here.
type Constraint struct {
	Kind     ConstraintKind `json:"kind"`
	Children []*Constraint  `json:"children,omitempty"`
	Key      string         `json:"key,omitempty"`
	Value    string         `json:"value,omitempty"`
}

// Evaluate walks the tree by structural recursion over the variant tag.
// A nil constraint matches everything.
func (c *Constraint) Evaluate(labels map[string]string) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case ConstraintLabel:
		return labels[c.Key] == c.Value
	case ConstraintAnd:
		for _, child := range c.Children {
			if !child.Evaluate(labels) {
				return false
			}
		}
		return true
	case ConstraintOr:
		for _, child := range c.Children {
			if child.Evaluate(labels) {
				return true
			}
		}
		return len(c.Children) == 0
	}
	return false
}

// Validate rejects malformed trees: unknown tags, LABEL leaves with
// children, composite nodes with label payloads.
func (c *Constraint) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case ConstraintLabel:
		if len(c.Children) > 0 {
			return errConstraintLeafChildren
		}
		if c.Key == "" {
			return errConstraintEmptyKey
		}
		return nil
	case ConstraintAnd, ConstraintOr:
		if c.Key != "" || c.Value != "" {
			return errConstraintCompositeLabel
		}
		for _, child := range c.Children {
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	return errConstraintUnknownKind
}
