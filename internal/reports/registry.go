package reports

import (
	"context"
	"fmt"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/exporter"
)

// Exporter is a registered report type. Preparing a run performs every store
// read up front; the returned source then streams sheets without further
// I/O against the platform data.
type Exporter interface {
	Identifier() string
	VerboseName() string
	FormFields(ctx context.Context, organizerID string, eventIDs []string) ([]FormField, error)
	Prepare(ctx context.Context, req RunRequest) (exporter.MultiSheetSource, error)
}

// Registry holds the available report types, keyed by identifier, in
// registration order.
type Registry struct {
	exporters map[string]Exporter
	order     []string
}

func NewRegistry(exporters ...Exporter) *Registry {
	r := &Registry{exporters: make(map[string]Exporter, len(exporters))}
	for _, e := range exporters {
		if _, dup := r.exporters[e.Identifier()]; dup {
			panic(fmt.Sprintf("duplicate report identifier %q", e.Identifier()))
		}
		r.exporters[e.Identifier()] = e
		r.order = append(r.order, e.Identifier())
	}
	return r
}

// Get looks up a report type by identifier.
func (r *Registry) Get(identifier string) (Exporter, bool) {
	e, ok := r.exporters[identifier]
	return e, ok
}

// List returns every registered report type in registration order.
func (r *Registry) List() []Exporter {
	out := make([]Exporter, len(r.order))
	for i, id := range r.order {
		out[i] = r.exporters[id]
	}
	return out
}
