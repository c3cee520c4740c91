package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/glyphsmith/glyphsmith-api/internal/domain"
)

// Extract parses raw generated markup into the typed artifact for the given
// target kind.
//
// For icon-pack output it enumerates every vector element plus the embedded
// stylesheet text. For ui-bundle output it splits stylesheet, script, and
// remaining markup, with icon extraction attached as a nested list. For
// component output it scans the source for import specifiers and an
// exported name; the source itself passes through untouched.
//
// Zero vector elements is not an error: it yields an empty icon list and
// the caller decides whether that is acceptable.
func Extract(rawMarkup string, kind domain.TargetKind) (*domain.Artifact, error) {
	switch kind {
	case domain.KindIconPack:
		return extractIconPack(rawMarkup)
	case domain.KindUIBundle:
		return extractBundle(rawMarkup)
	case domain.KindComponent:
		return extractComponent(rawMarkup), nil
	default:
		return nil, domain.ErrInvalidTargetKind
	}
}

// extractIconPack collects vector elements and stylesheet text.
func extractIconPack(rawMarkup string) (*domain.Artifact, error) {
	root, err := html.Parse(strings.NewReader(rawMarkup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	return &domain.Artifact{
		Kind:       domain.KindIconPack,
		Icons:      collectIcons(root),
		Stylesheet: collectText(root, "style"),
	}, nil
}

// extractBundle splits the markup into independent stylesheet, script, and
// markup fields. Icon extraction runs over the same tree.
func extractBundle(rawMarkup string) (*domain.Artifact, error) {
	root, err := html.Parse(strings.NewReader(rawMarkup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	icons := collectIcons(root)
	css := collectText(root, "style")
	js := collectText(root, "script")

	// Strip style and script elements so the markup field holds only the
	// document structure.
	removeElements(root, "style", "script")

	var markup strings.Builder
	if err := html.Render(&markup, root); err != nil {
		return nil, fmt.Errorf("failed to render markup: %w", err)
	}

	return &domain.Artifact{
		Kind: domain.KindUIBundle,
		Bundle: &domain.BundleArtifact{
			HTML:  markup.String(),
			CSS:   css,
			JS:    js,
			Icons: icons,
		},
	}, nil
}

var (
	importRe     = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w{},*\s]+\s+from\s+)?['"]([^'"]+)['"]`)
	exportNameRe = regexp.MustCompile(`export\s+(?:default\s+)?(?:function|const|class)\s+([A-Za-z_$][\w$]*)`)
)

// extractComponent scans component source for its exported name and import
// specifiers. The source passes through unmodified; the render layer owns
// real validation.
func extractComponent(source string) *domain.Artifact {
	name := "Component"
	if match := exportNameRe.FindStringSubmatch(source); match != nil {
		name = match[1]
	}

	var deps []string
	seen := make(map[string]bool)
	for _, match := range importRe.FindAllStringSubmatch(source, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			deps = append(deps, match[1])
		}
	}

	return &domain.Artifact{
		Kind: domain.KindComponent,
		Component: &domain.ComponentArtifact{
			Name:         name,
			SourceCode:   source,
			Dependencies: deps,
		},
	}
}

// collectText concatenates the text content of every element with the given
// tag, in document order.
func collectText(root *html.Node, tag string) string {
	var out strings.Builder
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					out.WriteString(child.Data)
				}
			}
			return false
		}
		return true
	})
	return strings.TrimSpace(out.String())
}

// removeElements detaches every element with one of the given tags.
func removeElements(root *html.Node, tags ...string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var doomed []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && tagSet[n.Data] {
			doomed = append(doomed, n)
			return false
		}
		return true
	})

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// walk runs fn over the tree depth-first. Returning false skips the node's
// children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, fn)
	}
}
