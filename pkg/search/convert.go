package search

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// Pre-compiled to avoid recompiling per page.
var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Converter converts fetched HTML into markdown text usable as a search
// result snippet.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates an HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert transforms HTML content to a title and markdown body.
func (c *Converter) Convert(htmlContent []byte) (title, markdown string, err error) {
	title = extractHTMLTitle(htmlContent)

	cleaned := scriptRe.ReplaceAllString(string(htmlContent), "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	markdown, err = c.converter.ConvertString(cleaned)
	if err != nil {
		return "", "", err
	}

	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	markdown = strings.TrimSpace(markdown)
	return title, markdown, nil
}

// extractHTMLTitle returns the document's <title> text, if any.
func extractHTMLTitle(htmlContent []byte) string {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return title
}
