package query

import (
	"fmt"
	"strings"
)

// Node is a node of the query syntax tree. The set of implementations is
// closed: TermNode, PhraseNode, NotNode, AndNode and OrNode. Trees are
// immutable once returned by the parser.
type Node interface {
	node()
	String() string
}

// TermNode is a bare word, optionally scoped to a field. Wildcard is set when
// Text contains '*'.
type TermNode struct {
	Field    string
	Text     string
	Wildcard bool
}

// PhraseNode is a quoted phrase, optionally scoped to a field.
type PhraseNode struct {
	Field string
	Text  string
}

// NotNode negates its operand.
type NotNode struct {
	Operand Node
}

// AndNode requires both sides to match. Implicit is set when the operands
// were juxtaposed without an AND keyword.
type AndNode struct {
	Left     Node
	Right    Node
	Implicit bool
}

// OrNode requires at least one side to match.
type OrNode struct {
	Left  Node
	Right Node
}

func (*TermNode) node()   {}
func (*PhraseNode) node() {}
func (*NotNode) node()    {}
func (*AndNode) node()    {}
func (*OrNode) node()     {}

func (n *TermNode) String() string {
	if n.Field != "" {
		return n.Field + ":" + n.Text
	}
	return n.Text
}

func (n *PhraseNode) String() string {
	quoted := `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(n.Text) + `"`
	if n.Field != "" {
		return n.Field + ":" + quoted
	}
	return quoted
}

func (n *NotNode) String() string {
	return "NOT " + n.Operand.String()
}

func (n *AndNode) String() string {
	return fmt.Sprintf("(%s AND %s)", n.Left, n.Right)
}

func (n *OrNode) String() string {
	return fmt.Sprintf("(%s OR %s)", n.Left, n.Right)
}

// Walk visits n and its descendants in post-order, left to right. A nil
// node is not visited.
func Walk(n Node, visit func(Node)) {
	switch v := n.(type) {
	case nil:
		return
	case *TermNode, *PhraseNode:
	case *NotNode:
		Walk(v.Operand, visit)
	case *AndNode:
		Walk(v.Left, visit)
		Walk(v.Right, visit)
	case *OrNode:
		Walk(v.Left, visit)
		Walk(v.Right, visit)
	default:
		panic(fmt.Sprintf("query: unexpected node type %T", n))
	}
	visit(n)
}
