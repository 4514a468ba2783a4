package inventory

// Filters is the active query narrowing the item list. An empty string (or
// false for LowStock) means the dimension is unset, not "filter for empty".
type Filters struct {
	Type        string
	Category    string
	Status      string
	ContainerID string
	Search      string
	LowStock    bool
}

// FilterPatch is a partial update over Filters. A nil field leaves the
// dimension unchanged; a pointer to the zero value clears it.
type FilterPatch struct {
	Type        *string
	Category    *string
	Status      *string
	ContainerID *string
	Search      *string
	LowStock    *bool
}

// Apply merges the patch into f and returns the result.
func (p FilterPatch) Apply(f Filters) Filters {
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.ContainerID != nil {
		f.ContainerID = *p.ContainerID
	}
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.LowStock != nil {
		f.LowStock = *p.LowStock
	}
	return f
}
