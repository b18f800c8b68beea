package tables

import (
	"strings"

	"golang.org/x/net/html"
)

// Extract returns the outer HTML of every <table> element in body, in document
// order. Nested tables are not re-emitted separately; the outermost element
// already contains them. A body that fails to parse yields no tables; the
// x/net/html parser is tolerant, so this only happens on truly broken input.
func Extract(body string) []string {
	if body == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			var sb strings.Builder
			if err := html.Render(&sb, n); err == nil {
				out = append(out, sb.String())
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// WrapDocument wraps extracted table markup in a minimal standalone HTML page
// with visible cell borders, ready to be rendered and screenshotted.
func WrapDocument(tablesHTML []string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><meta charset='utf-8'>")
	sb.WriteString("<style>table{border-collapse:collapse;} td,th{border:1px solid #ccc;padding:4px;}</style>")
	sb.WriteString("</head><body>")
	sb.WriteString(strings.Join(tablesHTML, "\n"))
	sb.WriteString("</body></html>")
	return sb.String()
}

// WrapBody wraps an arbitrary HTML fragment in a standalone page without the
// table styling, for messages whose body has no <table> markup.
func WrapBody(body string) string {
	return "<html><head><meta charset='utf-8'></head><body>" + body + "</body></html>"
}
