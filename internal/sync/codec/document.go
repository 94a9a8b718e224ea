package codec

import "strings"

// The remote macro's parser reads attribute values delimited by single
// quotes and chokes on raw double quotes anywhere in the document. The
// builder below exists because encoding/xml cannot emit that dialect.

type attribute struct {
	key   string
	value string
}

type element struct {
	name     string
	attrs    []attribute
	children []*element
}

func newElement(name string) *element {
	return &element{name: name}
}

// att appends an attribute and returns the element for chaining. Attribute
// order is preserved; the macro layer reads some blocks positionally.
func (e *element) att(key, value string) *element {
	e.attrs = append(e.attrs, attribute{key: key, value: value})
	return e
}

// child appends a child element and returns the child.
func (e *element) child(name string) *element {
	c := newElement(name)
	e.children = append(e.children, c)
	return c
}

var valueEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func (e *element) render(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.name)
	for _, a := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(a.key)
		b.WriteString("='")
		b.WriteString(valueEscaper.Replace(a.value))
		b.WriteByte('\'')
	}
	if len(e.children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range e.children {
		c.render(b)
	}
	b.WriteString("</")
	b.WriteString(e.name)
	b.WriteByte('>')
}
