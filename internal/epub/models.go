package epub

// OPF represents the parsed Open Package Format document.
// Manifest hrefs are archive paths (OPF directory already joined).
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	Guide         []GuideReference
	NCXPath       string
}

// Metadata represents the metadata section of the OPF.
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Description string
	Subjects    []string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book.
type Creator struct {
	Name string
	Role string // e.g., "aut" for author
}

// ManifestItem represents an item in the manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares the given manifest property.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem represents an item reference in the spine.
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference represents an EPUB 2 guide reference.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}

// Part is a manifest resource addressed by its name relative to the
// package document directory.
type Part struct {
	ID        string
	Name      string
	Path      string // archive path
	MediaType string
}

// NavEntry is one flattened navigation node. Href is relative to the package
// document directory and keeps its fragment.
type NavEntry struct {
	Title string
	Href  string
}
