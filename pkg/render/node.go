package render

import "strings"

// Attr is one ordered attribute of a node.
type Attr struct {
	Key   string
	Value string
}

// Node is the composition primitive for rendered context: a named element
// with ordered attributes, optional leaf text, and ordered children.
type Node struct {
	Name     string
	Text     string
	Attrs    []Attr
	Children []*Node
}

// Container builds a node intended to hold children.
func Container(name string, attrs ...Attr) *Node {
	return &Node{Name: name, Attrs: attrs}
}

// Leaf builds a node carrying text content.
func Leaf(name, text string, attrs ...Attr) *Node {
	return &Node{Name: name, Text: text, Attrs: attrs}
}

// Add appends children and returns the node for chaining.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// RenderText serializes the tree as an indentation-based layout: one line
// per node, children indented one level, lines joined by the separator.
// Output is deterministic for identical trees.
func (n *Node) RenderText(indent, separator string) string {
	var sb strings.Builder
	n.writeText(&sb, indent, separator, 0, true)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder, indent, separator string, depth int, first bool) {
	if !first {
		sb.WriteString(separator)
	}
	for i := 0; i < depth; i++ {
		sb.WriteString(indent)
	}
	sb.WriteString(n.Name)
	for _, a := range n.Attrs {
		sb.WriteString(" ")
		sb.WriteString(a.Key)
		sb.WriteString("=")
		sb.WriteString(a.Value)
	}
	if n.Text != "" {
		sb.WriteString(": ")
		sb.WriteString(n.Text)
	}
	for _, c := range n.Children {
		c.writeText(sb, indent, separator, depth+1, false)
	}
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// RenderMarkup serializes the tree as nested markup with escaped text and
// attribute values.
func (n *Node) RenderMarkup() string {
	var sb strings.Builder
	n.writeMarkup(&sb)
	return sb.String()
}

func (n *Node) writeMarkup(sb *strings.Builder) {
	sb.WriteString("<")
	sb.WriteString(n.Name)
	for _, a := range n.Attrs {
		sb.WriteString(" ")
		sb.WriteString(a.Key)
		sb.WriteString(`="`)
		sb.WriteString(markupEscaper.Replace(a.Value))
		sb.WriteString(`"`)
	}
	if n.Text == "" && len(n.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	sb.WriteString(markupEscaper.Replace(n.Text))
	for _, c := range n.Children {
		c.writeMarkup(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.Name)
	sb.WriteString(">")
}
