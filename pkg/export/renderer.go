package export

import "fmt"

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Registry maps format names to renderers.
type Registry map[string]Renderer

// NewRegistry registers the csv, pdf and xlsx renderers.
func NewRegistry() Registry {
	return Registry{
		"csv":  NewCSVExporter(),
		"pdf":  NewPDFExporter(),
		"xlsx": NewXLSXExporter(),
	}
}

// Get returns the renderer for format.
func (r Registry) Get(format string) (Renderer, error) {
	renderer, ok := r[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return renderer, nil
}
