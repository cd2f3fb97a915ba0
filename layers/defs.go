package layers

// Layer names. Derived layers are tracked per selected basin id; the
// selected and VPU boundary layers hold a single handle.
const (
	LayerSelected        = "selected"
	LayerMergedGeometry  = "merged_geometry"
	LayerMergedTolines   = "merged_tolines"
	LayerMergedFromNexus = "merged_from_nexus"
	LayerNexusCircles    = "nexus_circles"
	LayerToWB            = "to_wb"
	LayerToNexus         = "to_nexus"
	LayerNexus           = "nexus"
	LayerVPUBoundaries   = "vpu_boundaries"
)

// Def binds a layer name to its settings paths: Base anchors the style block
// (Base + ".style"), Toggle is the visibility switch. Layer families share a
// toggle.
type Def struct {
	Name   string
	Base   string
	Toggle string
}

var defs = map[string]Def{
	LayerSelected: {
		Name:   LayerSelected,
		Base:   ".geometries.selected_wb_layer",
		Toggle: ".geometries.selected_wb_layer.toggle",
	},
	LayerMergedGeometry: {
		Name:   LayerMergedGeometry,
		Base:   ".geometries.upstream.merged_geometry",
		Toggle: ".geometries.upstream.toggle",
	},
	LayerMergedTolines: {
		Name:   LayerMergedTolines,
		Base:   ".geometries.upstream.merged_tolines",
		Toggle: ".geometries.upstream.toggle",
	},
	LayerMergedFromNexus: {
		Name:   LayerMergedFromNexus,
		Base:   ".geometries.upstream.merged_from_nexus",
		Toggle: ".geometries.upstream.toggle",
	},
	LayerNexusCircles: {
		Name:   LayerNexusCircles,
		Base:   ".geometries.upstream.nexus_circles",
		Toggle: ".geometries.upstream.toggle",
	},
	LayerToWB: {
		Name:   LayerToWB,
		Base:   ".flowlines.to_wb",
		Toggle: ".flowlines.toggle",
	},
	LayerToNexus: {
		Name:   LayerToNexus,
		Base:   ".flowlines.to_nexus",
		Toggle: ".flowlines.toggle",
	},
	LayerNexus: {
		Name:   LayerNexus,
		Base:   ".flowlines.nexus",
		Toggle: ".flowlines.toggle",
	},
	LayerVPUBoundaries: {
		Name:   LayerVPUBoundaries,
		Base:   ".vpu.boundaries",
		Toggle: ".vpu.boundaries.toggle",
	},
}

// DefFor returns the settings binding for a layer name.
func DefFor(name string) (Def, bool) {
	d, ok := defs[name]
	return d, ok
}

// UpstreamLayers are the derived sub-layers returned by an upstream
// geometry fetch, in ascending draw priority.
var UpstreamLayers = []string{
	LayerNexusCircles,
	LayerMergedGeometry,
	LayerMergedTolines,
	LayerMergedFromNexus,
}

// FlowlineLayers are the derived sub-layers returned by a flowline fetch,
// in ascending draw priority.
var FlowlineLayers = []string{
	LayerNexus,
	LayerToWB,
	LayerToNexus,
}
