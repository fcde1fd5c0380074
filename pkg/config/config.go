// Package config holds the engine's policy configuration.
//
// This package is the single source of truth for engine defaults:
//
//	config.DefaultGridSize          // 10
//	config.DefaultZoomMin           // 0.1
//	config.DefaultStabilityDelay    // 50ms
//
// Configuration files are TOML. Only the keys present in a file are applied
// on top of [Default], so a file can be as small as:
//
//	[snapping]
//	enabled = true
//	grid_size = 20
//
//	[init]
//	timeout = "2s"
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowcore/pkg/errors"
)

// Defaults.
const (
	DefaultGridSize           = 10.0
	DefaultMinNodeWidth       = 20.0
	DefaultMinNodeHeight      = 20.0
	DefaultZoomMin            = 0.1
	DefaultZoomMax            = 10.0
	DefaultZoomStep           = 0.1
	DefaultPasteOffset        = 20.0
	DefaultStabilityDelay     = 50 * time.Millisecond
	DefaultMeasurementWait    = time.Second
	DefaultVirtualizationWait = 16 * time.Millisecond
	DefaultCellSize           = 100.0
)

// Edge routing names.
const (
	RoutingBezier     = "bezier"
	RoutingStraight   = "straight"
	RoutingOrthogonal = "orthogonal"
)

// Snapping aligns positions (and optionally sizes) to a grid.
type Snapping struct {
	Enabled  bool    `toml:"enabled" json:"enabled"`
	GridSize float64 `toml:"grid_size" json:"gridSize"`
}

// Grouping controls addToGroup.
type Grouping struct {
	Enabled     bool `toml:"enabled" json:"enabled"`
	AllowNested bool `toml:"allow_nested" json:"allowNested"`
}

// Resize bounds resizeNode.
type Resize struct {
	MinWidth  float64 `toml:"min_width" json:"minWidth"`
	MinHeight float64 `toml:"min_height" json:"minHeight"`
	Snap      bool    `toml:"snap" json:"snap"`
}

// Rotation controls rotateNodeTo. A positive SnapStep rounds angles to
// multiples of it.
type Rotation struct {
	SnapStep float64 `toml:"snap_step" json:"snapStep"`
}

// ZIndex controls stacking on selection.
type ZIndex struct {
	SelectedOnTop bool `toml:"selected_on_top" json:"selectedOnTop"`
	ElevateEdges  bool `toml:"elevate_edges" json:"elevateEdges"`
}

// EdgeRouting sets the routing given to new edges that have none.
type EdgeRouting struct {
	Default string `toml:"default" json:"default"`
}

// Zoom bounds the viewport scale.
type Zoom struct {
	Min  float64 `toml:"min" json:"min"`
	Max  float64 `toml:"max" json:"max"`
	Step float64 `toml:"step" json:"step"`
}

// Paste offsets pasted items from their originals.
type Paste struct {
	OffsetX float64 `toml:"offset_x" json:"offsetX"`
	OffsetY float64 `toml:"offset_y" json:"offsetY"`
}

// Init controls the startup measurement phase. A zero Timeout waits for
// measurements indefinitely. WaitTimeout bounds how long a transaction
// started with WaitForMeasurements waits for re-measurement.
type Init struct {
	StabilityDelay time.Duration `toml:"stability_delay" json:"stabilityDelay"`
	Timeout        time.Duration `toml:"timeout" json:"timeout"`
	WaitTimeout    time.Duration `toml:"wait_timeout" json:"waitTimeout"`
}

// Virtualization batches measurement updates across entities.
type Virtualization struct {
	Enabled    bool          `toml:"enabled" json:"enabled"`
	FlushDelay time.Duration `toml:"flush_delay" json:"flushDelay"`
}

// Spatial configures the spatial index.
type Spatial struct {
	CellSize float64 `toml:"cell_size" json:"cellSize"`
}

// Config is the complete engine configuration.
type Config struct {
	Snapping       Snapping       `toml:"snapping" json:"snapping"`
	Grouping       Grouping       `toml:"grouping" json:"grouping"`
	Resize         Resize         `toml:"resize" json:"resize"`
	Rotation       Rotation       `toml:"rotation" json:"rotation"`
	ZIndex         ZIndex         `toml:"z_index" json:"zIndex"`
	EdgeRouting    EdgeRouting    `toml:"edge_routing" json:"edgeRouting"`
	Zoom           Zoom           `toml:"zoom" json:"zoom"`
	Paste          Paste          `toml:"paste" json:"paste"`
	Init           Init           `toml:"init" json:"init"`
	Virtualization Virtualization `toml:"virtualization" json:"virtualization"`
	Spatial        Spatial        `toml:"spatial" json:"spatial"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Snapping:       Snapping{GridSize: DefaultGridSize},
		Grouping:       Grouping{Enabled: true, AllowNested: true},
		Resize:         Resize{MinWidth: DefaultMinNodeWidth, MinHeight: DefaultMinNodeHeight},
		ZIndex:         ZIndex{SelectedOnTop: true},
		EdgeRouting:    EdgeRouting{Default: RoutingBezier},
		Zoom:           Zoom{Min: DefaultZoomMin, Max: DefaultZoomMax, Step: DefaultZoomStep},
		Paste:          Paste{OffsetX: DefaultPasteOffset, OffsetY: DefaultPasteOffset},
		Init:           Init{StabilityDelay: DefaultStabilityDelay, WaitTimeout: DefaultMeasurementWait},
		Virtualization: Virtualization{FlushDelay: DefaultVirtualizationWait},
		Spatial:        Spatial{CellSize: DefaultCellSize},
	}
}

// Load reads a TOML file and applies it on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	cfg, err := Default().Merge(string(data))
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
	}
	return cfg, nil
}

// Merge applies the keys present in a TOML document on top of c and
// validates the result. c is not modified.
func (c Config) Merge(partial string) (Config, error) {
	out := c
	md, err := toml.Decode(partial, &out)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	switch {
	case c.Snapping.GridSize <= 0:
		return invalid("snapping.grid_size must be positive")
	case c.Resize.MinWidth < 0 || c.Resize.MinHeight < 0:
		return invalid("resize minimums must not be negative")
	case c.Rotation.SnapStep < 0 || c.Rotation.SnapStep > 360:
		return invalid("rotation.snap_step must be in [0, 360]")
	case c.Zoom.Min <= 0 || c.Zoom.Max < c.Zoom.Min:
		return invalid("zoom bounds must satisfy 0 < min <= max")
	case c.Zoom.Step <= 0:
		return invalid("zoom.step must be positive")
	case c.Init.StabilityDelay < 0 || c.Init.Timeout < 0 || c.Init.WaitTimeout < 0:
		return invalid("init durations must not be negative")
	case c.Virtualization.FlushDelay < 0:
		return invalid("virtualization.flush_delay must not be negative")
	case c.Spatial.CellSize <= 0:
		return invalid("spatial.cell_size must be positive")
	}
	switch c.EdgeRouting.Default {
	case RoutingBezier, RoutingStraight, RoutingOrthogonal:
	default:
		return invalid("unknown edge routing %q", c.EdgeRouting.Default)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidConfig, format, args...)
}

// ClampZoom limits scale to the configured zoom range.
func (c Config) ClampZoom(scale float64) float64 {
	return min(max(scale, c.Zoom.Min), c.Zoom.Max)
}

// SnapToGrid rounds v to the grid when snapping is enabled.
func (c Config) SnapToGrid(v float64) float64 {
	if !c.Snapping.Enabled || c.Snapping.GridSize <= 0 {
		return v
	}
	return roundTo(v, c.Snapping.GridSize)
}

// SnapAngle rounds angle to the rotation snap step when one is set.
func (c Config) SnapAngle(angle float64) float64 {
	if c.Rotation.SnapStep <= 0 {
		return angle
	}
	return roundTo(angle, c.Rotation.SnapStep)
}

func roundTo(v, step float64) float64 {
	q := v / step
	if q < 0 {
		return -float64(int64(-q+0.5)) * step
	}
	return float64(int64(q+0.5)) * step
}
