package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRegisterFire(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()

	var got string
	listener := &struct{}{}
	onChange := func(code SystemEventCode, sender interface{}, inst interface{}, data EventContext) bool {
		got = data.Data.Path
		return true
	}

	assert.True(t, EventRegister(EVENT_CODE_CONFIG_CHANGED, listener, onChange))
	assert.False(t, EventRegister(EVENT_CODE_CONFIG_CHANGED, listener, onChange), "duplicate listener")

	ctx := EventContext{}
	ctx.Data.Path = "assets/config/scene.toml"
	assert.True(t, EventFire(EVENT_CODE_CONFIG_CHANGED, nil, ctx))
	assert.Equal(t, "assets/config/scene.toml", got)

	assert.False(t, EventFire(EVENT_CODE_SHADER_CHANGED, nil, ctx), "no listener")

	assert.True(t, EventUnregister(EVENT_CODE_CONFIG_CHANGED, listener))
	assert.False(t, EventFire(EVENT_CODE_CONFIG_CHANGED, nil, ctx))
}

func TestEventFirstHandlerWins(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()

	calls := 0
	handled := func(SystemEventCode, interface{}, interface{}, EventContext) bool { calls++; return true }
	a, b := &struct{ a int }{}, &struct{ b int }{}
	require.True(t, EventRegister(EVENT_CODE_RESIZED, a, handled))
	require.True(t, EventRegister(EVENT_CODE_RESIZED, b, handled))

	EventFire(EVENT_CODE_RESIZED, nil, EventContext{})
	assert.Equal(t, 1, calls)
}
