package domain

// CatalogStore defines durable persistence for the catalog document
type CatalogStore interface {
	// Load reads the catalog, returning (nil, nil) when none exists yet
	Load() (*CatalogData, error)

	// Save durably replaces the stored catalog; a failed save leaves the previous one intact
	Save(data *CatalogData) error
}
