package domain

// IconCategory groups icons by the kind of UI container they were found in.
type IconCategory string

// Icon categories inferred from ancestor elements.
const (
	CategoryNavigation IconCategory = "navigation"
	CategoryForm       IconCategory = "form"
	CategorySocial     IconCategory = "social"
	CategoryAction     IconCategory = "action"
	CategoryGeneral    IconCategory = "general"
)

// IconArtifact is a single extracted vector icon.
type IconArtifact struct {
	ID           string       `json:"id"`
	SemanticName string       `json:"semantic_name"`
	RawMarkup    string       `json:"raw_markup"`
	BoundingSize int          `json:"bounding_size"`
	Category     IconCategory `json:"category"`
}

// BundleArtifact is generated markup split into its independent parts.
// Icons holds the vector elements found in the same markup.
type BundleArtifact struct {
	HTML  string         `json:"html"`
	CSS   string         `json:"css"`
	JS    string         `json:"js"`
	Icons []IconArtifact `json:"icons,omitempty"`
}

// ComponentArtifact describes a generated, self-contained component.
// PropsSchema is carried opaquely; the render layer validates the source.
type ComponentArtifact struct {
	Name         string            `json:"name"`
	PropsSchema  map[string]string `json:"props_schema,omitempty"`
	SourceCode   string            `json:"source_code"`
	Dependencies []string          `json:"dependencies,omitempty"`
}

// Artifact is the discriminated union of generation outputs. Exactly one of
// the pointer fields is set, matching Kind. Artifacts are immutable once
// produced by the extractor.
type Artifact struct {
	Kind       TargetKind         `json:"kind"`
	Icons      []IconArtifact     `json:"icons,omitempty"`
	Stylesheet string             `json:"stylesheet,omitempty"`
	Bundle     *BundleArtifact    `json:"bundle,omitempty"`
	Component  *ComponentArtifact `json:"component,omitempty"`
}
