package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

func TestLightModeCycle(t *testing.T) {
	mode := metadata.LIGHT_TYPE_SPOTLIGHT
	mode = nextLightMode(mode)
	assert.Equal(t, metadata.LIGHT_TYPE_OMNI, mode)
	mode = nextLightMode(mode)
	assert.Equal(t, metadata.LIGHT_TYPE_DIRECTIONAL, mode)
	assert.Equal(t, metadata.LIGHT_TYPE_SPOTLIGHT, nextLightMode(mode))
}

func TestUpsampleCycleNeedsTemporalForBilateral(t *testing.T) {
	q := nextUpsample(metadata.UPSAMPLE_POINT, metadata.FILTER_NONE)
	assert.Equal(t, metadata.UPSAMPLE_BILINEAR, q)
	assert.Equal(t, metadata.UPSAMPLE_POINT, nextUpsample(q, metadata.FILTER_NONE))

	q = nextUpsample(q, metadata.FILTER_TEMPORAL)
	assert.Equal(t, metadata.UPSAMPLE_BILATERAL, q)
	assert.Equal(t, metadata.UPSAMPLE_POINT, nextUpsample(q, metadata.FILTER_TEMPORAL))
}
