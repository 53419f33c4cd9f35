package webfetch

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/net/html"
)

// noiseElements never carry lead evidence and are dropped before conversion.
var noiseElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"iframe":   true,
	"svg":      true,
	"form":     true,
	"template": true,
}

// extract reduces raw HTML to a page title and markdown body. Conversion
// failures fall back to plain text so a bad page never kills a fetch.
func (f *HTTPFetcher) extract(rawHTML, pageURL string) (title, content string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		md, convErr := f.conv.ConvertString(rawHTML, converter.WithDomain(pageURL))
		if convErr != nil {
			return "", strings.TrimSpace(rawHTML)
		}
		return "", strings.TrimSpace(md)
	}

	title = findTitle(doc)
	prune(doc)
	node := mainNode(doc)

	var sb strings.Builder
	if renderErr := html.Render(&sb, node); renderErr == nil {
		md, convErr := f.conv.ConvertString(sb.String(), converter.WithDomain(pageURL))
		if convErr == nil && strings.TrimSpace(md) != "" {
			return title, strings.TrimSpace(md)
		}
	}
	return title, textContent(node)
}

// prune removes noise elements in place.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && noiseElements[c.Data] {
			n.RemoveChild(c)
		} else {
			prune(c)
		}
		c = next
	}
}

// mainNode picks the subtree to convert: main, then article, then body,
// then the whole document.
func mainNode(doc *html.Node) *html.Node {
	for _, name := range []string{"main", "article", "body"} {
		if n := findElement(doc, name); n != nil {
			return n
		}
	}
	return doc
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(doc *html.Node) string {
	n := findElement(doc, "title")
	if n == nil {
		return ""
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// blockElements get a line break when flattening to plain text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "br": true, "li": true,
	"tr": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "blockquote": true, "pre": true,
}

// textContent flattens a subtree to whitespace-collapsed plain text.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
