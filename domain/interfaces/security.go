package interfaces

// Redactor decides which values must not reach logs or reports
type Redactor interface {
	// IsSensitive checks whether the element addressed by path/selector holds a secret
	IsSensitive(path string, selector string) bool

	// Mask returns value as it may be logged for the given element
	Mask(path string, selector string, value string) string
}
