package settings

// Default display schema. Paths mirror the control panel: one group per
// layer family, a toggle per family (or per standalone layer), and a style
// block per layer. Controls and layer-registry callbacks are both generated
// from these same paths.
var defaults = []struct {
	path  string
	value Value
}{
	// Primary selected geometry
	{".geometries.selected_wb_layer.toggle", true},
	{".geometries.selected_wb_layer.style.color", "#2e86ab"},
	{".geometries.selected_wb_layer.style.weight", 2.0},
	{".geometries.selected_wb_layer.style.opacity", 1.0},
	{".geometries.selected_wb_layer.style.fillColor", "#2e86ab"},
	{".geometries.selected_wb_layer.style.fillOpacity", 0.3},

	// Upstream contributing geometry
	{".geometries.upstream.toggle", true},
	{".geometries.upstream.merged_geometry.style.color", "#888888"},
	{".geometries.upstream.merged_geometry.style.weight", 1.0},
	{".geometries.upstream.merged_geometry.style.opacity", 0.8},
	{".geometries.upstream.merged_geometry.style.fillColor", "#aaaaaa"},
	{".geometries.upstream.merged_geometry.style.fillOpacity", 0.2},
	{".geometries.upstream.merged_tolines.style.color", "#4444aa"},
	{".geometries.upstream.merged_tolines.style.weight", 1.0},
	{".geometries.upstream.merged_tolines.style.opacity", 0.8},
	{".geometries.upstream.merged_from_nexus.style.color", "#44aa44"},
	{".geometries.upstream.merged_from_nexus.style.weight", 1.0},
	{".geometries.upstream.merged_from_nexus.style.opacity", 0.8},
	{".geometries.upstream.nexus_circles.style.color", "#aa4444"},
	{".geometries.upstream.nexus_circles.style.weight", 1.0},
	{".geometries.upstream.nexus_circles.style.opacity", 0.9},

	// Downstream flowlines
	{".flowlines.toggle", true},
	{".flowlines.to_wb.style.color", "#0055ff"},
	{".flowlines.to_wb.style.weight", 2.0},
	{".flowlines.to_wb.style.opacity", 1.0},
	{".flowlines.to_nexus.style.color", "#00aaff"},
	{".flowlines.to_nexus.style.weight", 2.0},
	{".flowlines.to_nexus.style.opacity", 1.0},
	{".flowlines.nexus.style.color", "#ff8800"},
	{".flowlines.nexus.style.weight", 1.0},
	{".flowlines.nexus.style.opacity", 0.9},

	// VPU bulk-selection boundaries
	{".vpu.boundaries.toggle", true},
	{".vpu.boundaries.style.color", "#333333"},
	{".vpu.boundaries.style.weight", 1.0},
	{".vpu.boundaries.style.opacity", 0.6},
	{".vpu.boundaries.style.fillOpacity", 0.0},
}

// NewDefaultStore creates a store populated with the static display schema.
// Values persist for the process lifetime only.
func NewDefaultStore() *Store {
	s := NewStore()
	for _, d := range defaults {
		s.Define(d.path, d.value)
	}
	return s
}
