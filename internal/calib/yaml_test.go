package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojez1/flightstate/internal/testutil"
)

func writeFixture(t *testing.T, name, content string) string {
	return testutil.WriteTempFile(t, name, content)
}

func TestLoadAnchorPositions(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "anchor_positions.yaml", `
0:
  x: 1.0
  y: 2.0
  z: 3.0
7:
  x: -0.5
  y: 0.0
  z: 2.25
`)

	anchors, err := LoadAnchorPositions(path)
	require.NoError(t, err)
	require.Len(t, anchors, 2)
	assert.Equal(t, 1.0, anchors[0].X)
	assert.Equal(t, 2.25, anchors[7].Z)
	assert.Equal(t, []int{0, 7}, AnchorIDs(anchors))
}

func TestLoadAnchorPositionsRejectsBadID(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "anchor_positions.yaml", `
north:
  x: 1.0
  y: 2.0
  z: 3.0
`)

	_, err := LoadAnchorPositions(path)
	assert.Error(t, err)
}

func TestLoadBasestationGeometry(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "geometry.yaml", `
geos:
  '0':
    origin: [-1.5, 0.0, 2.0]
    rotation:
    - [1.0, 0.0, 0.0]
    - [0.0, 1.0, 0.0]
    - [0.0, 0.0, 1.0]
calibs:
  '0':
    sweeps:
    - phase: 0.01
      tilt: -0.52
    - phase: -0.02
      tilt: 0.52
`)

	poses, calibrations, err := LoadBasestationGeometry(path)
	require.NoError(t, err)

	pose, ok := poses[0]
	require.True(t, ok)
	assert.Equal(t, -1.5, pose.Origin.X)
	assert.Equal(t, 1.0, pose.Rotation[2][2])

	ctx := NewContext(nil, poses, calibrations)
	cal, ok := ctx.SweepCalibration(0, 1)
	require.True(t, ok)
	assert.Equal(t, -0.02, cal.Phase)

	_, ok = ctx.SweepCalibration(0, 5)
	assert.False(t, ok)
	_, ok = ctx.SweepCalibration(3, 0)
	assert.False(t, ok)
}

func TestLoadBasestationGeometryRejectsMalformedRotation(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "geometry.yaml", `
geos:
  '0':
    origin: [0.0, 0.0, 0.0]
    rotation:
    - [1.0, 0.0]
    - [0.0, 1.0, 0.0]
    - [0.0, 0.0, 1.0]
`)

	_, _, err := LoadBasestationGeometry(path)
	assert.Error(t, err)
}

func TestContextLookups(t *testing.T) {
	t.Parallel()

	ctx := NewContext(nil, nil, nil)
	if _, ok := ctx.AnchorPosition(3); ok {
		t.Fatal("empty context returned an anchor")
	}
	if _, ok := ctx.BasestationPose(0); ok {
		t.Fatal("empty context returned a pose")
	}
}
