// ABOUTME: Version constants for the application
// ABOUTME: Single source of truth for product identity strings
package version

const (
	// Version is the application version
	Version = "0.1.0"

	// Product is the product name
	Product = "Parley"

	// Manufacturer is the producing organization
	Manufacturer = "Parley AI"
)
