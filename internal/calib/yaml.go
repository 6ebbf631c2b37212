package calib

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sojez1/flightstate/internal/geom"
)

// anchorEntry matches one anchor record in an anchor_positions.yaml file:
//
//	0:
//	  x: 1.2
//	  y: -0.5
//	  z: 3.0
type anchorEntry struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// LoadAnchorPositions reads a ranging-anchor position table from a YAML
// file keyed by integer anchor id.
func LoadAnchorPositions(path string) (map[int]geom.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read anchor positions: %w", err)
	}

	raw := map[string]anchorEntry{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse anchor positions: %w", err)
	}

	anchors := make(map[int]geom.Vec3, len(raw))
	for key, e := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("anchor id %q is not an integer", key)
		}
		anchors[id] = geom.Vec3{X: e.X, Y: e.Y, Z: e.Z}
	}
	return anchors, nil
}

// geometryFile matches the base-station geometry/calibration file layout:
//
//	geos:
//	  '0':
//	    origin: [x, y, z]
//	    rotation:
//	    - [r00, r01, r02]
//	    - [r10, r11, r12]
//	    - [r20, r21, r22]
//	calibs:
//	  '0':
//	    sweeps:
//	    - phase: ...
//	      tilt: ...
type geometryFile struct {
	Geos   map[string]geoEntry   `yaml:"geos"`
	Calibs map[string]calibEntry `yaml:"calibs"`
}

type geoEntry struct {
	Origin   []float64   `yaml:"origin"`
	Rotation [][]float64 `yaml:"rotation"`
}

type calibEntry struct {
	Sweeps []SweepCalibration `yaml:"sweeps"`
}

// LoadBasestationGeometry reads base-station poses and per-sweep
// calibration models from a geometry YAML file.
func LoadBasestationGeometry(path string) (map[int]BasestationPose, map[int]map[int]SweepCalibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read base station geometry: %w", err)
	}

	var file geometryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse base station geometry: %w", err)
	}

	poses := make(map[int]BasestationPose, len(file.Geos))
	for key, g := range file.Geos {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, nil, fmt.Errorf("base station id %q is not an integer", key)
		}
		if len(g.Origin) != 3 {
			return nil, nil, fmt.Errorf("base station %d: origin must have 3 components, got %d", id, len(g.Origin))
		}
		if len(g.Rotation) != 3 {
			return nil, nil, fmt.Errorf("base station %d: rotation must have 3 rows, got %d", id, len(g.Rotation))
		}
		var rot geom.Mat33
		for i, row := range g.Rotation {
			if len(row) != 3 {
				return nil, nil, fmt.Errorf("base station %d: rotation row %d must have 3 columns, got %d", id, i, len(row))
			}
			copy(rot[i][:], row)
		}
		poses[id] = BasestationPose{
			Origin:   geom.Vec3{X: g.Origin[0], Y: g.Origin[1], Z: g.Origin[2]},
			Rotation: rot,
		}
	}

	calibrations := make(map[int]map[int]SweepCalibration, len(file.Calibs))
	for key, c := range file.Calibs {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, nil, fmt.Errorf("base station id %q is not an integer", key)
		}
		sweeps := make(map[int]SweepCalibration, len(c.Sweeps))
		for sweepID, cal := range c.Sweeps {
			sweeps[sweepID] = cal
		}
		calibrations[id] = sweeps
	}

	return poses, calibrations, nil
}

// AnchorIDs returns the sorted anchor ids in a position table. Mostly a
// convenience for summary logging.
func AnchorIDs(anchors map[int]geom.Vec3) []int {
	ids := make([]int, 0, len(anchors))
	for id := range anchors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
