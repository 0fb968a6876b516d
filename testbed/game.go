package testbed

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/volumetric/engine"
	"github.com/spaghettifunk/volumetric/engine/config"
	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/components"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
	"github.com/spaghettifunk/volumetric/engine/systems"
)

// Length of the omni light's wandering cycle, in seconds.
const OMNI_CYCLE_SECONDS = 60.0

// Colours the intensity toggle steps through.
var lightPower = []math.Vec3{
	math.NewVec3(1.00, 0.95, 0.90),
	math.NewVec3(0.50, 0.475, 0.45),
	math.NewVec3(1.50, 1.425, 1.35),
	math.NewVec3(1.00, 0.75, 0.50),
	math.NewVec3(0.75, 1.00, 0.75),
	math.NewVec3(0.50, 0.75, 1.00),
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	lightMode  metadata.LightType
	lightPower int
	medium     int
	viewpoint  int
	debugFlags metadata.DebugFlags
	paused     bool

	elapsed        float64
	lightTransform math.Mat4
	lastFPSLog     float64
}

func NewTestGame(cfg *engine.ApplicationConfig) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State: &gameState{
				lightMode:      metadata.LIGHT_TYPE_SPOTLIGHT,
				lightTransform: math.NewMat4Identity(),
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	state := g.State.(*gameState)

	camera, err := g.SystemManager.CameraSystem.Acquire(components.DEFAULT_CAMERA_NAME)
	if err != nil {
		return err
	}
	state.WorldCamera = camera
	systems.SetViewpoint(camera, state.viewpoint)

	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g, g.gameOnKey)
	core.LogInfo("keys: L light, V viewpoint, P intensity, O medium, D downsample, M msaa, T filter, U upsample, F fog, F1-F3 debug, space pause")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	if state.paused {
		return nil
	}
	state.elapsed += deltaTime

	if state.lightMode == metadata.LIGHT_TYPE_OMNI {
		// The omni light wanders along a Lissajous curve.
		phase := float32(math32.Mod(float32(state.elapsed), OMNI_CYCLE_SECONDS) / OMNI_CYCLE_SECONDS)
		state.lightTransform = math.NewMat4Scale(math.NewVec3(
			math32.Cos(2*math.K_PI*7*phase),
			math32.Cos(2*math.K_PI*3*phase),
			1,
		))
	} else {
		// The scene turns under the light at a quarter turn per second.
		angle := float32(deltaTime) * math.K_PI / 4
		state.lightTransform = state.lightTransform.Mul(math.NewMat4EulerY(-angle))
	}

	if state.elapsed-state.lastFPSLog >= 5 {
		state.lastFPSLog = state.elapsed
		if view, ok := g.SystemManager.RendererSystem.GetView(engine.MAIN_VIEW_NAME); ok && view.Context() != nil {
			stats := view.Context().Stats()
			core.LogInfo("%.1f fps (%.2f ms) accumulate %s volumes %s apply %s",
				view.Metrics.FPS(), view.Metrics.FrameTime(), stats.Accumulate, stats.RenderVolume, stats.Apply)
		}
	}
	return nil
}

func (g *TestGame) Render(packet *systems.FramePacket, deltaTime float64) error {
	state := g.State.(*gameState)

	scene := g.SystemManager.RendererSystem.Scene()
	for i := range scene.Lights {
		if scene.Lights[i].Type == state.lightMode {
			packet.Lights = []int{i}
			break
		}
	}
	if len(packet.Lights) == 0 {
		packet.Lights = []int{0}
	}
	packet.LightTransform = state.lightTransform
	packet.Tint = lightPower[state.lightPower].Mul(math.NewVec3(1/lightPower[0].X, 1/lightPower[0].Y, 1/lightPower[0].Z))
	packet.DebugFlags = state.debugFlags
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, g)
	return nil
}

// editScene applies a change to a copy of the running scene.
func (g *TestGame) editScene(edit func(s *config.Scene) bool) {
	rs := g.SystemManager.RendererSystem
	next := *rs.Scene()
	next.Lights = append([]config.LightConfig(nil), next.Lights...)
	if !edit(&next) {
		return
	}
	if err := rs.ApplyScene(&next); err != nil {
		core.LogError(err.Error())
	}
}

func (g *TestGame) gameOnKey(code core.SystemEventCode, sender, listenerInst any, context core.EventContext) bool {
	state := g.State.(*gameState)

	switch glfw.Key(context.Data.U32[0]) {
	case glfw.KeyF1:
		state.debugFlags = metadata.DEBUG_FLAG_NONE
	case glfw.KeyF2:
		state.debugFlags = metadata.DEBUG_FLAG_NO_BLENDING
	case glfw.KeyF3:
		state.debugFlags = metadata.DEBUG_FLAG_WIREFRAME
	case glfw.KeySpace:
		state.paused = !state.paused
	case glfw.KeyL:
		state.lightMode = nextLightMode(state.lightMode)
		state.lightTransform = math.NewMat4Identity()
		core.LogInfo("light: %s", state.lightMode)
	case glfw.KeyV:
		state.viewpoint = (state.viewpoint + 1) % len(systems.DefaultViewpoints)
		systems.SetViewpoint(state.WorldCamera, state.viewpoint)
	case glfw.KeyP:
		state.lightPower = (state.lightPower + 1) % len(lightPower)
	case glfw.KeyO:
		state.medium = (state.medium + 1) % config.MEDIUM_PRESET_COUNT
		g.editScene(func(s *config.Scene) bool {
			s.Medium = config.MediumPreset(state.medium)
			return true
		})
	case glfw.KeyD:
		g.editScene(func(s *config.Scene) bool {
			s.Context.Downsample = (s.Context.Downsample + 1) % (metadata.DOWNSAMPLE_QUARTER + 1)
			core.LogInfo("downsample: %s", s.Context.Downsample)
			return true
		})
	case glfw.KeyM:
		g.editScene(func(s *config.Scene) bool {
			if s.Context.Downsample == metadata.DOWNSAMPLE_FULL {
				return false
			}
			s.Context.Multisample = (s.Context.Multisample + 1) % (metadata.MULTISAMPLE_MSAA4 + 1)
			core.LogInfo("internal msaa: %s", s.Context.Multisample)
			return true
		})
	case glfw.KeyT:
		g.editScene(func(s *config.Scene) bool {
			if s.Context.Downsample == metadata.DOWNSAMPLE_FULL {
				return false
			}
			if s.Context.Filter == metadata.FILTER_TEMPORAL {
				s.Context.Filter = metadata.FILTER_NONE
			} else {
				s.Context.Filter = metadata.FILTER_TEMPORAL
			}
			core.LogInfo("filter: %s", s.Context.Filter)
			return true
		})
	case glfw.KeyU:
		g.editScene(func(s *config.Scene) bool {
			if s.Context.Downsample == metadata.DOWNSAMPLE_FULL {
				return false
			}
			s.Postprocess.UpsampleQuality = nextUpsample(s.Postprocess.UpsampleQuality, s.Context.Filter)
			core.LogInfo("upsample: %s", s.Postprocess.UpsampleQuality)
			return true
		})
	case glfw.KeyF:
		g.editScene(func(s *config.Scene) bool {
			s.Postprocess.DoFog = !s.Postprocess.DoFog
			return true
		})
	default:
		return false
	}
	return true
}

func nextLightMode(t metadata.LightType) metadata.LightType {
	switch t {
	case metadata.LIGHT_TYPE_DIRECTIONAL:
		return metadata.LIGHT_TYPE_SPOTLIGHT
	case metadata.LIGHT_TYPE_SPOTLIGHT:
		return metadata.LIGHT_TYPE_OMNI
	default:
		return metadata.LIGHT_TYPE_DIRECTIONAL
	}
}

// Bilateral upsampling needs the temporal filter's history.
func nextUpsample(q metadata.UpsampleQuality, filter metadata.FilterMode) metadata.UpsampleQuality {
	switch q {
	case metadata.UPSAMPLE_POINT:
		return metadata.UPSAMPLE_BILINEAR
	case metadata.UPSAMPLE_BILINEAR:
		if filter == metadata.FILTER_TEMPORAL {
			return metadata.UPSAMPLE_BILATERAL
		}
		return metadata.UPSAMPLE_POINT
	default:
		return metadata.UPSAMPLE_POINT
	}
}
