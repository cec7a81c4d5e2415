package ofx

import (
	"fmt"
	"regexp"
	"strings"
)

// node is one element of the intermediate OFX parse tree. Leaf elements carry
// text; aggregate elements carry children. The tree mirrors the two known
// response shapes (bank statement, credit-card statement) without relying on
// structural any-typed access.
type node struct {
	name     string
	text     string
	children []*node
}

// child returns the first direct child with the given name, case-insensitive.
func (n *node) child(name string) *node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

// find walks the given path of element names from this node.
func (n *node) find(path ...string) *node {
	cur := n
	for _, name := range path {
		if cur = cur.child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// findDeep returns the first descendant with the given name, depth-first.
func (n *node) findDeep(name string) *node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
		if found := c.findDeep(name); found != nil {
			return found
		}
	}
	return nil
}

// text returns the trimmed text of the named direct child, or "".
func (n *node) childText(name string) string {
	if c := n.child(name); c != nil {
		return strings.TrimSpace(c.text)
	}
	return ""
}

// all returns every direct child with the given name. OFX files carry a
// single STMTTRN element and a repeated sequence with the same shape; both
// normalize to a slice here.
func (n *node) all(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			out = append(out, c)
		}
	}
	return out
}

var tagPattern = regexp.MustCompile(`<(/?)([A-Za-z0-9._:-]+)\s*/?>([^<]*)`)

// parseTree parses SGML- or XML-flavored OFX markup into a tag tree. SGML
// leaf elements have no closing tag: an element followed by non-empty text is
// a leaf, anything else opens an aggregate. Closing tags pop the open stack;
// a close with no matching open (the XML leaf case) is ignored.
func parseTree(content string) (*node, error) {
	normalized := normalizeContent(content)

	root := node{name: "document"}
	stack := []*node{&root}

	for _, m := range tagPattern.FindAllStringSubmatch(normalized, -1) {
		closing := m[1] == "/"
		name := m[2]
		text := strings.TrimSpace(m[3])

		if closing {
			// Pop to the matching open element, if any.
			for i := len(stack) - 1; i > 0; i-- {
				if strings.EqualFold(stack[i].name, name) {
					stack = stack[:i]
					break
				}
			}
			continue
		}

		top := stack[len(stack)-1]
		el := &node{name: name, text: text}
		top.children = append(top.children, el)
		if text == "" {
			stack = append(stack, el)
		}
	}

	ofxRoot := root.child("OFX")
	if ofxRoot == nil {
		return nil, fmt.Errorf("missing <OFX> root element")
	}
	return ofxRoot, nil
}

// normalizeContent strips the byte-order mark, normalizes line endings, trims
// any OFX 1.x header preamble before the <OFX> root, and collapses
// whitespace between tags.
func normalizeContent(content string) string {
	content = strings.TrimPrefix(content, "﻿")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	upper := strings.ToUpper(content)
	if idx := strings.Index(upper, "<OFX>"); idx > 0 {
		content = content[idx:]
	}

	return interTagSpace.ReplaceAllString(content, "><")
}

var interTagSpace = regexp.MustCompile(`>\s+<`)
