// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ItemMetadata holds the catalog record for one item: the unit of
// digitization, typically a folder or the contents of a box.
type ItemMetadata struct {
	// Identifier is the item identifier (component_id), e.g. "UP001234_000005".
	Identifier string `json:"item_identifier" yaml:"item_identifier"`

	// Title is the descriptive title.
	Title string `json:"title" yaml:"title"`

	// Dates joins every non-empty date* column with ", ".
	Dates string `json:"dates" yaml:"dates"`

	// Box is the box number or label.
	Box string `json:"box" yaml:"box"`

	// Folder is the optional folder number or label.
	Folder string `json:"folder,omitempty" yaml:"folder,omitempty"`

	// URI links to the archival description.
	URI string `json:"uri" yaml:"uri"`
}

// Catalog is the parsed project metadata: one collection and its items in
// source order.
type Catalog struct {
	CollectionID string         `json:"collection_id" yaml:"collection_id"`
	Items        []ItemMetadata `json:"items" yaml:"items"`
}

// Identifiers returns the item identifiers in catalog order.
func (c *Catalog) Identifiers() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.Identifier
	}
	return ids
}

// Lookup returns the item with the given identifier.
func (c *Catalog) Lookup(id string) (ItemMetadata, bool) {
	for _, it := range c.Items {
		if it.Identifier == id {
			return it, true
		}
	}
	return ItemMetadata{}, false
}
