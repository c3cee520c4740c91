package extract

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// defaultBoundingSize applies when a vector element declares no usable
// viewable area.
const defaultBoundingSize = 24

// fallbackNames is the cyclic list of common semantic names assigned by
// position when nothing better can be derived.
var fallbackNames = []string{
	"home", "user", "settings", "search", "menu",
	"mail", "star", "heart", "plus", "close",
}

// collectIcons enumerates every vector element in the tree, in document
// order, assigning stable index-based ids.
func collectIcons(root *html.Node) []domain.IconArtifact {
	var icons []domain.IconArtifact

	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "svg" {
			index := len(icons)
			icons = append(icons, domain.IconArtifact{
				ID:           fmt.Sprintf("icon-%d", index),
				SemanticName: semanticName(n, index),
				RawMarkup:    renderNode(n),
				BoundingSize: boundingSize(n),
				Category:     inferCategory(n),
			})
			return false
		}
		return true
	})

	return icons
}

// semanticName derives a name for the vector element at the given position.
// Priority: explicit name attribute, short enclosing text, a class fragment
// after "icon-", then the cyclic fallback list.
func semanticName(n *html.Node, index int) string {
	for _, key := range []string{"name", "data-name", "aria-label"} {
		if value := attr(n, key); value != "" {
			return slugify(value)
		}
	}

	if text := enclosingText(n); text != "" && len(text) <= 32 {
		return slugify(text)
	}

	if fragment := iconClassFragment(n); fragment != "" {
		return fragment
	}

	return fallbackNames[index%len(fallbackNames)]
}

// enclosingText returns the trimmed text of the element's parent, excluding
// the vector subtree itself.
func enclosingText(n *html.Node) string {
	if n.Parent == nil {
		return ""
	}

	var out strings.Builder
	for child := n.Parent.FirstChild; child != nil; child = child.NextSibling {
		if child == n {
			continue
		}
		if child.Type == html.TextNode {
			out.WriteString(child.Data)
		}
	}

	return strings.TrimSpace(out.String())
}

// iconClassFragment looks for a class token containing "icon-" on the
// element or its parent and returns the part after the marker.
func iconClassFragment(n *html.Node) string {
	for _, node := range []*html.Node{n, n.Parent} {
		if node == nil || node.Type != html.ElementNode {
			continue
		}
		for _, token := range strings.Fields(attr(node, "class")) {
			if idx := strings.Index(token, "icon-"); idx >= 0 {
				fragment := token[idx+len("icon-"):]
				if fragment != "" {
					return fragment
				}
			}
		}
	}
	return ""
}

// boundingSize computes the icon's size from its declared viewable area:
// the max of parsed width and height, defaulting when absent or unparseable.
func boundingSize(n *html.Node) int {
	if viewBox := attr(n, "viewBox"); viewBox != "" {
		fields := strings.Fields(viewBox)
		if len(fields) == 4 {
			w, errW := strconv.ParseFloat(fields[2], 64)
			h, errH := strconv.ParseFloat(fields[3], 64)
			if errW == nil && errH == nil {
				return int(max(w, h))
			}
		}
	}

	w := parseDimension(attr(n, "width"))
	h := parseDimension(attr(n, "height"))
	if size := int(max(w, h)); size > 0 {
		return size
	}

	return defaultBoundingSize
}

// parseDimension parses a possibly unit-suffixed dimension ("24", "24px").
func parseDimension(value string) float64 {
	value = strings.TrimSuffix(strings.TrimSpace(value), "px")
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// inferCategory walks ancestor elements looking for a recognizable UI
// container, defaulting to general.
func inferCategory(n *html.Node) domain.IconCategory {
	for ancestor := n.Parent; ancestor != nil; ancestor = ancestor.Parent {
		if ancestor.Type != html.ElementNode {
			continue
		}

		switch ancestor.Data {
		case "nav":
			return domain.CategoryNavigation
		case "form":
			return domain.CategoryForm
		case "button":
			return domain.CategoryAction
		}

		classes := strings.ToLower(attr(ancestor, "class"))
		switch {
		case strings.Contains(classes, "social"):
			return domain.CategorySocial
		case strings.Contains(classes, "nav"):
			return domain.CategoryNavigation
		}
	}

	return domain.CategoryGeneral
}

// renderNode serializes the element subtree back to markup.
func renderNode(n *html.Node) string {
	var out strings.Builder
	if err := html.Render(&out, n); err != nil {
		return ""
	}
	return out.String()
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// slugify lowercases and hyphenates a derived name.
func slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(value), "-")
}
