package memdom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/promptdock/dom"
)

// textInputTypes are the input types that hold free text.
var textInputTypes = map[string]bool{
	"": true, "text": true, "search": true, "email": true, "url": true, "tel": true,
}

// Element is a handle on a node of a Document. It implements both
// dom.ValueControl and dom.EditableRoot; Kind tells which surface applies.
type Element struct {
	doc  *Document
	node *html.Node
	id   dom.NodeID

	// form control state, separate from the markup like a browser's value.
	value    *string
	selStart int
	selEnd   int
	hasSel   bool
}

var (
	_ dom.ValueControl = (*Element)(nil)
	_ dom.EditableRoot = (*Element)(nil)
)

func (e *Element) ID() dom.NodeID { return e.id }

func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, name)
}

// Kind implements dom.Element.
func (e *Element) Kind() dom.Kind {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.kind()
}

func (e *Element) kind() dom.Kind {
	n := e.node
	if n.Type != html.ElementNode {
		return dom.KindUnsupported
	}
	switch n.DataAtom {
	case atom.Textarea:
		return dom.KindTextControl
	case atom.Input:
		t, _ := attr(n, "type")
		if textInputTypes[strings.ToLower(t)] {
			return dom.KindTextControl
		}
		return dom.KindUnsupported
	}
	if isContentEditable(n) {
		return dom.KindContentEditable
	}
	return dom.KindUnsupported
}

// Connected implements dom.Element.
func (e *Element) Connected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return isAncestor(e.doc.root, e.node)
}

// ReadOnly implements dom.Element.
func (e *Element) ReadOnly() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	switch e.kind() {
	case dom.KindTextControl:
		_, ro := attr(e.node, "readonly")
		_, dis := attr(e.node, "disabled")
		return ro || dis
	case dom.KindContentEditable:
		return false
	default:
		return true
	}
}

// Contains implements dom.Element.
func (e *Element) Contains(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil || o.doc != e.doc {
		return false
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return isAncestor(e.node, o.node)
}

// Dispatch implements dom.Element.
func (e *Element) Dispatch(ev dom.Event) error {
	e.doc.dispatch(e.node, e.id, ev)
	return nil
}

// Value implements dom.ValueControl.
func (e *Element) Value() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.currentValue(), nil
}

func (e *Element) currentValue() string {
	if e.value != nil {
		return *e.value
	}
	if e.node.DataAtom == atom.Textarea {
		return textContent(e.node)
	}
	v, _ := attr(e.node, "value")
	return v
}

// SetValue implements dom.ValueControl. Like a browser, assigning the value
// moves the caret to the end.
func (e *Element) SetValue(v string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.value = &v
	n := dom.Len16(v)
	e.selStart, e.selEnd = n, n
	return nil
}

// Selection implements dom.ValueControl.
func (e *Element) Selection() (int, int, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.selStart, e.selEnd, e.hasSel, nil
}

// SetSelection implements dom.ValueControl.
func (e *Element) SetSelection(start, end int) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	n := dom.Len16(e.currentValue())
	e.selStart, e.selEnd = clamp(start, n), clamp(end, n)
	e.hasSel = true
	return nil
}

// Text implements dom.EditableRoot.
func (e *Element) Text() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textContent(e.node), nil
}

// ReplaceText implements dom.EditableRoot.
func (e *Element) ReplaceText(text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	e.doc.pending = true
	return nil
}

// InsertEdge implements dom.EditableRoot.
func (e *Element) InsertEdge(atStart bool, text string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	t := &html.Node{Type: html.TextNode, Data: text}
	if atStart && e.node.FirstChild != nil {
		e.node.InsertBefore(t, e.node.FirstChild)
	} else {
		e.node.AppendChild(t)
	}
	e.doc.pending = true
	return nil
}

// InsertAtSelection implements dom.EditableRoot. The selected text is
// removed from every text node it spans; element nodes stay in place.
func (e *Element) InsertAtSelection(text string) (bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	sel := e.doc.sel
	if sel == nil || !isAncestor(e.node, sel.root) {
		return false, nil
	}
	root := sel.root
	texts := textNodes(root)
	total := 0
	for _, t := range texts {
		total += dom.Len16(t.Data)
	}
	gs, ge := clamp(sel.start, total), clamp(sel.end, total)
	if ge < gs {
		gs, ge = ge, gs
	}

	inserted := false
	pos := 0
	for _, t := range texts {
		l := dom.Len16(t.Data)
		nodeStart, nodeEnd := pos, pos+l
		if a, b := max(gs, nodeStart), min(ge, nodeEnd); a < b {
			t.Data = dom.Splice16(t.Data, a-nodeStart, b-nodeStart, "")
		}
		if !inserted && gs >= nodeStart && gs <= nodeEnd {
			t.Data = dom.Splice16(t.Data, gs-nodeStart, gs-nodeStart, text)
			inserted = true
		}
		pos = nodeEnd
	}
	if !inserted {
		root.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		e.doc.pending = true
	}
	caret := gs + dom.Len16(text)
	e.doc.sel = &selection{root: root, start: caret, end: caret}
	return true, nil
}

// CaretToEnd implements dom.EditableRoot.
func (e *Element) CaretToEnd() error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	n := dom.Len16(textContent(e.node))
	e.doc.sel = &selection{root: e.node, start: n, end: n}
	return nil
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// isContentEditable follows the inheritance rule of the contenteditable
// attribute: the nearest ancestor carrying it decides.
func isContentEditable(n *html.Node) bool {
	for x := n; x != nil; x = x.Parent {
		if x.Type != html.ElementNode {
			continue
		}
		if v, ok := attr(x, "contenteditable"); ok {
			switch strings.ToLower(v) {
			case "", "true", "plaintext-only":
				return true
			case "false":
				return false
			}
		}
	}
	return false
}

func isAncestor(anc, n *html.Node) bool {
	for x := n; x != nil; x = x.Parent {
		if x == anc {
			return true
		}
	}
	return false
}

func textNodes(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				out = append(out, c)
			} else {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for _, t := range textNodes(n) {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
