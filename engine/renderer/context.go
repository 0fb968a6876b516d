package renderer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief Position of a context in the accumulation cycle. */
type ContextState uint32

const (
	/** @brief Created, no frame started yet. */
	CONTEXT_STATE_UNINITIALIZED ContextState = iota
	/** @brief Between frames. */
	CONTEXT_STATE_READY
	/** @brief BeginAccumulation done, volumes may be rendered. */
	CONTEXT_STATE_ACCUMULATING
	/** @brief EndAccumulation done, waiting for ApplyLighting. */
	CONTEXT_STATE_ACCUMULATED
	/** @brief A device command failed mid-frame. The context must be recreated. */
	CONTEXT_STATE_FAILED
	CONTEXT_STATE_RELEASED
)

var contextStateNames = []string{"UNINITIALIZED", "READY", "ACCUMULATING", "ACCUMULATED", "FAILED", "RELEASED"}

func (s ContextState) String() string {
	if int(s) < len(contextStateNames) {
		return contextStateNames[s]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(s))
}

/**
 * @brief Double-buffered history indices. last is -1 until the first
 * temporal frame primes it.
 */
type frameParity struct {
	last int32
	next int32
}

func newFrameParity() frameParity {
	return frameParity{last: -1, next: 0}
}

func (p *frameParity) primed() bool { return p.last != -1 }

// prime makes the history slot the one not being written this frame.
func (p *frameParity) prime() { p.last = (p.next + 1) % 2 }

func (p *frameParity) advance() {
	p.last = p.next
	p.next = (p.next + 1) % 2
}

/** @brief Timings of the most recent completed frame. */
type Stats struct {
	Frames       uint64
	Volumes      uint32
	Accumulate   time.Duration
	RenderVolume time.Duration
	Apply        time.Duration
}

/**
 * @brief A volumetric lighting context: the resources sized for one
 * ContextDesc plus the accumulation state machine driving its Backend.
 * A context is driven by one goroutine at a time.
 */
type Context struct {
	ID uuid.UUID

	desc     metadata.ContextDesc
	platform string
	device   Device
	backend  Backend

	guard sync.Mutex
	state ContextState

	initialized  bool
	jitterIndex  uint32
	parity       frameParity
	lastViewProj math.Mat4
	nextViewProj math.Mat4
	debugFlags   metadata.DebugFlags
	viewer       metadata.ViewerDesc

	clock   *core.Clock
	stats   Stats
	current Stats
}

func newContext(desc metadata.ContextDesc, platform string, device Device) *Context {
	return &Context{
		desc:         desc,
		platform:     platform,
		device:       device,
		state:        CONTEXT_STATE_UNINITIALIZED,
		parity:       newFrameParity(),
		lastViewProj: math.NewMat4Identity(),
		nextViewProj: math.NewMat4Identity(),
		clock:        core.NewClock(),
	}
}

func (c *Context) Desc() metadata.ContextDesc { return c.desc }

func (c *Context) Platform() string { return c.platform }

func (c *Context) State() ContextState {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.state
}

// Stats returns the counters of the last frame that reached ApplyLighting.
func (c *Context) Stats() Stats {
	c.guard.Lock()
	defer c.guard.Unlock()
	return c.stats
}

// acquire takes the guard without blocking and checks the call order.
func (c *Context) acquire(op string, allowed ...ContextState) error {
	if c == nil {
		return fmt.Errorf("%s on nil context: %w", op, core.ErrInvalidParameter)
	}
	if !c.guard.TryLock() {
		err := fmt.Errorf("%s: context in use by another goroutine: %w", op, core.ErrInvalidParameter)
		core.LogError(err.Error())
		return err
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	c.guard.Unlock()
	err := fmt.Errorf("%s called in state %s: %w", op, c.state, core.ErrInvalidParameter)
	core.LogError(err.Error())
	return err
}

/**
 * @brief Records a hook failure. Hooks may have advanced per-frame state
 * before failing, so the context cannot be retried and must be recreated.
 * Arguments are validated before the first hook runs.
 */
func (c *Context) fail(op string, err error) error {
	c.state = CONTEXT_STATE_FAILED
	err = fmt.Errorf("%s: %w", op, err)
	core.LogError(err.Error())
	return err
}

func (c *Context) lap() time.Duration {
	c.clock.Update()
	d := c.clock.Elapsed()
	c.clock.Start()
	return d
}

/**
 * @brief Starts a frame: uploads per-frame parameters, bakes the phase
 * function LUT and downsamples the scene depth.
 */
func (c *Context) BeginAccumulation(rc metadata.RenderCtx, sceneDepth *metadata.Texture, viewer *metadata.ViewerDesc, medium *metadata.MediumDesc, debugFlags metadata.DebugFlags) error {
	if err := c.acquire("BeginAccumulation", CONTEXT_STATE_UNINITIALIZED, CONTEXT_STATE_READY); err != nil {
		return err
	}
	defer c.guard.Unlock()

	if sceneDepth == nil || viewer == nil || medium == nil {
		return fmt.Errorf("BeginAccumulation: missing scene depth, viewer or medium: %w", core.ErrInvalidParameter)
	}
	if err := medium.Validate(); err != nil {
		return fmt.Errorf("BeginAccumulation: %w", err)
	}

	c.clock.Start()
	c.current = Stats{Frames: c.stats.Frames}
	c.debugFlags = debugFlags
	c.viewer = *viewer

	c.device.BeginEvent(rc, "Volumetric::BeginAccumulation")
	defer c.device.EndEvent(rc)

	if err := c.backend.BeginAccumulationStart(rc, sceneDepth, viewer, medium); err != nil {
		return c.fail("BeginAccumulation", err)
	}
	if err := c.backend.BeginAccumulationUpdateMediumLUT(rc); err != nil {
		return c.fail("BeginAccumulation", err)
	}
	if err := c.backend.BeginAccumulationCopyDepth(rc, sceneDepth); err != nil {
		return c.fail("BeginAccumulation", err)
	}
	if err := c.backend.BeginAccumulationEnd(rc, sceneDepth, viewer, medium); err != nil {
		return c.fail("BeginAccumulation", err)
	}

	c.state = CONTEXT_STATE_ACCUMULATING
	c.current.Accumulate = c.lap()
	return nil
}

/** @brief Adds the in-scattering of one light to the accumulation buffer. */
func (c *Context) RenderVolume(rc metadata.RenderCtx, shadowMap *metadata.Texture, shadowMapDesc *metadata.ShadowMapDesc, light *metadata.LightDesc, volume *metadata.VolumeDesc) error {
	if err := c.acquire("RenderVolume", CONTEXT_STATE_ACCUMULATING); err != nil {
		return err
	}
	defer c.guard.Unlock()

	if shadowMap == nil || shadowMapDesc == nil || light == nil || volume == nil {
		return fmt.Errorf("RenderVolume: missing shadow map, light or volume: %w", core.ErrInvalidParameter)
	}
	if err := light.Validate(); err != nil {
		return fmt.Errorf("RenderVolume: %w", err)
	}
	if err := shadowMapDesc.Validate(); err != nil {
		return fmt.Errorf("RenderVolume: %w", err)
	}
	if light.Type == metadata.LIGHT_TYPE_DIRECTIONAL {
		if _, _, err := directionalShadowMap(shadowMapDesc); err != nil {
			return fmt.Errorf("RenderVolume: %w", err)
		}
	}

	in := &VolumeInput{ShadowMap: shadowMap, ShadowMapDesc: shadowMapDesc, Light: light, Volume: volume}

	c.device.BeginEvent(rc, "Volumetric::RenderVolume")
	defer c.device.EndEvent(rc)

	if err := c.backend.RenderVolumeStart(rc, in); err != nil {
		return c.fail("RenderVolume", err)
	}

	var err error
	switch light.Type {
	case metadata.LIGHT_TYPE_DIRECTIONAL:
		err = c.backend.RenderVolumeDirectional(rc, in)
	case metadata.LIGHT_TYPE_SPOTLIGHT:
		err = c.backend.RenderVolumeSpotlight(rc, in)
	case metadata.LIGHT_TYPE_OMNI:
		err = c.backend.RenderVolumeOmni(rc, in)
	default:
		err = fmt.Errorf("light type %s: %w", light.Type, core.ErrInvalidParameter)
	}
	if err != nil {
		return c.fail("RenderVolume", err)
	}

	if err := c.backend.RenderVolumeEnd(rc, in); err != nil {
		return c.fail("RenderVolume", err)
	}
	c.current.Volumes++
	return nil
}

func (c *Context) EndAccumulation(rc metadata.RenderCtx) error {
	if err := c.acquire("EndAccumulation", CONTEXT_STATE_ACCUMULATING); err != nil {
		return err
	}
	defer c.guard.Unlock()

	if err := c.backend.EndAccumulationImp(rc); err != nil {
		return c.fail("EndAccumulation", err)
	}
	c.state = CONTEXT_STATE_ACCUMULATED
	c.current.RenderVolume = c.lap()
	return nil
}

/**
 * @brief Resolves, filters and composites the accumulated light onto the
 * scene target, then advances the jitter and history indices.
 */
func (c *Context) ApplyLighting(rc metadata.RenderCtx, sceneTarget, sceneDepth *metadata.Texture, postprocess *metadata.PostprocessDesc) error {
	if err := c.acquire("ApplyLighting", CONTEXT_STATE_ACCUMULATED); err != nil {
		return err
	}
	defer c.guard.Unlock()

	if sceneTarget == nil || sceneDepth == nil || postprocess == nil {
		return fmt.Errorf("ApplyLighting: missing scene target, scene depth or postprocess: %w", core.ErrInvalidParameter)
	}
	in := &ApplyInput{SceneTarget: sceneTarget, SceneDepth: sceneDepth, Postprocess: postprocess}

	c.device.BeginEvent(rc, "Volumetric::ApplyLighting")
	defer c.device.EndEvent(rc)

	if err := c.backend.ApplyLightingStart(rc, in); err != nil {
		return c.fail("ApplyLighting", err)
	}
	if c.isTemporal() {
		if err := c.backend.ApplyLightingResolve(rc, postprocess); err != nil {
			return c.fail("ApplyLighting", err)
		}
		if err := c.backend.ApplyLightingTemporalFilter(rc, sceneDepth, postprocess); err != nil {
			return c.fail("ApplyLighting", err)
		}
	} else if c.isInternalMSAA() {
		if err := c.backend.ApplyLightingResolve(rc, postprocess); err != nil {
			return c.fail("ApplyLighting", err)
		}
	}
	if err := c.backend.ApplyLightingComposite(rc, in); err != nil {
		return c.fail("ApplyLighting", err)
	}
	if err := c.backend.ApplyLightingEnd(rc, in); err != nil {
		return c.fail("ApplyLighting", err)
	}

	c.jitterIndex = (c.jitterIndex + 1) % metadata.MAX_JITTER_STEPS
	c.parity.advance()

	c.state = CONTEXT_STATE_READY
	c.current.Apply = c.lap()
	c.current.Frames++
	c.stats = c.current
	c.clock.Stop()
	return nil
}
