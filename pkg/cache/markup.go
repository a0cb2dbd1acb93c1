package cache

import (
	"fmt"
	"html"
	"strings"

	"github.com/antchfx/htmlquery"

	"github.com/b/tmux-tabtree/pkg/tree"
)

// attrOrder is the order attributes are written in.
var attrOrder = []string{
	tree.AttrID,
	tree.AttrTabID,
	tree.AttrWindowID,
	tree.AttrParent,
	tree.AttrChildren,
	tree.AttrClass,
}

// Encode serializes nodes as consecutive <li> fragments, one per node.
func Encode(nodes []*tree.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		attrs := n.Attrs()
		b.WriteString("<li")
		for _, name := range attrOrder {
			v, ok := attrs[name]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, ` %s="%s"`, name, html.EscapeString(v))
		}
		b.WriteString(">")
		title := singleLine(n.Title)
		if title == "" {
			// the trim pattern needs content between the tags
			title = n.ID
		}
		b.WriteString(html.EscapeString(title))
		b.WriteString("</li>")
	}
	return b.String()
}

// Decode parses cached markup back into nodes. Relations keep their cached
// (stale) identifiers until the nodes are fixed up.
func Decode(markup string) ([]*tree.Node, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, nil
	}
	doc, err := htmlquery.Parse(strings.NewReader("<ul>" + markup + "</ul>"))
	if err != nil {
		return nil, fmt.Errorf("parse cache markup: %w", err)
	}
	items, err := htmlquery.QueryAll(doc, "//li")
	if err != nil {
		return nil, fmt.Errorf("query cache markup: %w", err)
	}
	nodes := make([]*tree.Node, 0, len(items))
	for i, item := range items {
		n := &tree.Node{Attached: true, TabID: -1, WindowID: -1}
		for _, name := range attrOrder {
			v := htmlquery.SelectAttr(item, name)
			if v == "" {
				continue
			}
			if err := n.SetAttr(name, v); err != nil {
				return nil, fmt.Errorf("cache entry %d: %w", i, err)
			}
		}
		if n.ID == "" {
			return nil, fmt.Errorf("cache entry %d: missing id", i)
		}
		n.Title = htmlquery.InnerText(item)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
