// internal/generator/config.go
package generator

// Stage mode discriminators. Every configurable stage carries a Mode field; an
// unknown mode is a config error surfaced before any placement happens.
const (
	FilterCategory   = "category"
	FilterDifficulty = "difficulty"

	TransformIdentity = "identity"

	LayoutRandom = "random"
	LayoutMagic  = "magic"
	LayoutStatic = "static"
	LayoutCustom = "custom"

	GroupDifficulty = "difficulty"
	GroupRandom     = "random"

	RestrictLineTypeExclusion = "line_type_exclusion"

	AdjustSynergize   = "synergize"
	AdjustCategoryMax = "category_max"
)

// FilterConfig prunes goals before layout. Category mode keeps goals carrying
// at least one of Categories; difficulty mode keeps goals whose difficulty
// falls in [MinDifficulty, MaxDifficulty] inclusive. Goals with no difficulty
// fail any difficulty filter.
type FilterConfig struct {
	Mode          string   `json:"mode"`
	Categories    []string `json:"categories,omitempty"`
	MinDifficulty int      `json:"minDifficulty,omitempty"`
	MaxDifficulty int      `json:"maxDifficulty,omitempty"`
}

// TransformConfig is reserved for per-goal rewriting; identity is the only
// mode today.
type TransformConfig struct {
	Mode string `json:"mode"`
}

// LayoutConfig selects how the 5x5 matrix of selection criteria is produced.
// Custom mode requires the caller-supplied matrix verbatim.
type LayoutConfig struct {
	Mode   string  `json:"mode"`
	Custom [][]int `json:"custom,omitempty"`
}

// GroupingConfig selects how the pruned pool is partitioned into buckets
// addressed by layout criteria.
type GroupingConfig struct {
	Mode string `json:"mode"`
}

// RestrictionConfig selects a placement restriction applied to each cell's
// candidate list.
type RestrictionConfig struct {
	Mode string `json:"mode"`
}

// AdjustmentConfig selects a global adjustment run after every placement.
type AdjustmentConfig struct {
	Mode string `json:"mode"`
}

// Config is one full generation request. Seed 0 means "choose a fresh seed";
// the seed actually used is returned with the result.
type Config struct {
	Filters      []FilterConfig      `json:"filters,omitempty"`
	Transforms   []TransformConfig   `json:"transforms,omitempty"`
	Layout       LayoutConfig        `json:"layout"`
	Grouping     GroupingConfig      `json:"grouping"`
	Restrictions []RestrictionConfig `json:"restrictions,omitempty"`
	Adjustments  []AdjustmentConfig  `json:"adjustments,omitempty"`
	Variant      string              `json:"variant,omitempty"`
	Seed         int64               `json:"seed,omitempty"`
}
