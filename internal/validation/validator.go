package validation

// Validator checks catalog and draft documents before they reach the engine.
// Uses JSON Schema Draft 2020-12.
type Validator interface {
	// ValidateCatalog checks a decoded catalog document (YAML or JSON).
	ValidateCatalog(doc any) error
	// ValidateDraft checks a decoded draft document.
	ValidateDraft(doc any) error
}
