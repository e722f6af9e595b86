package recast

// Config holds every tunable parameter of the voxelization and polygon mesh
// build pipeline: grid resolution, agent dimensions, and the thresholds
// used by filtering, region partitioning and contour simplification. A
// host application typically builds one of these per agent profile; the
// yaml tags let it be loaded from a build-profile file without any parsing
// code living in this package.
type Config struct {
	// Width is the voxel grid's extent along the x-axis. [Limit: >= 0]
	Width int32 `yaml:"width"`

	// Height is the voxel grid's extent along the z-axis. [Limit: >= 0]
	Height int32 `yaml:"height"`

	// TileSize is the width/height of a tile on the xz-plane, in voxels.
	// [Limit: >= 0]
	TileSize int32 `yaml:"tile_size"`

	// BorderSize is the width of the non-navigable border painted around
	// the heightfield, in voxels. [Limit: >= 0]
	BorderSize int32 `yaml:"border_size"`

	// Cs is the xz-plane cell size. [Limit: > 0] [Units: world]
	Cs float32 `yaml:"cell_size"`

	// Ch is the y-axis cell size. [Limit: > 0] [Units: world]
	Ch float32 `yaml:"cell_height"`

	// BMin is the minimum corner of the build AABB.
	BMin [3]float32 `yaml:"bmin"`

	// BMax is the maximum corner of the build AABB.
	BMax [3]float32 `yaml:"bmax"`

	// WalkableSlopeAngle is the steepest slope, in degrees, still
	// considered walkable. [Limits: 0 <= value < 90]
	WalkableSlopeAngle float32 `yaml:"walkable_slope_angle"`

	// WalkableHeight is the minimum floor-to-ceiling clearance an agent
	// needs, in voxels. [Limit: >= 3]
	WalkableHeight int32 `yaml:"walkable_height"`

	// WalkableClimb is the largest ledge an agent can still step up, in
	// voxels. [Limit: >= 0]
	WalkableClimb int32 `yaml:"walkable_climb"`

	// WalkableRadius is the agent radius, used to erode the walkable
	// surface away from obstructions, in voxels. [Limit: >= 0]
	WalkableRadius int32 `yaml:"walkable_radius"`

	// MaxEdgeLen is the longest contour edge allowed along the mesh
	// border before it gets an extra tessellation vertex, in voxels.
	// [Limit: >= 0]
	MaxEdgeLen int32 `yaml:"max_edge_len"`

	// MaxSimplificationError bounds how far a simplified contour edge may
	// deviate from the raw traced contour, in voxels. [Limit: >= 0]
	MaxSimplificationError float32 `yaml:"max_simplification_error"`

	// MinRegionArea is the smallest span count an isolated region may
	// have before it is discarded, in voxels. [Limit: >= 0]
	MinRegionArea int32 `yaml:"min_region_area"`

	// MergeRegionArea is the span-count threshold below which a region is
	// merged into a larger neighbor when possible, in voxels.
	// [Limit: >= 0]
	MergeRegionArea int32 `yaml:"merge_region_area"`

	// MaxVertsPerPoly caps the vertex count of polygons produced by
	// contour-to-polygon conversion. [Limit: >= 3]
	MaxVertsPerPoly int32 `yaml:"max_verts_per_poly"`

	// DetailSampleDist is the sampling distance used when generating
	// detail-mesh height data. [Limits: 0 or >= 0.9] [Units: world]
	DetailSampleDist float32 `yaml:"detail_sample_dist"`

	// DetailSampleMaxError bounds how far the detail mesh surface may
	// deviate from the source heightfield. [Limit: >= 0] [Units: world]
	DetailSampleMaxError float32 `yaml:"detail_sample_max_error"`

	// NoFilterLowHangingObstacles skips the low-hanging obstacle filter.
	NoFilterLowHangingObstacles bool `yaml:"no_filter_low_hanging_obstacles"`

	// NoFilterLedgeSpans skips the ledge span filter.
	NoFilterLedgeSpans bool `yaml:"no_filter_ledge_spans"`

	// NoFilterWalkableLowHeightSpans skips the low-clearance filter.
	NoFilterWalkableLowHeightSpans bool `yaml:"no_filter_walkable_low_height_spans"`
}
