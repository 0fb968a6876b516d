package components

import (
	"github.com/spaghettifunk/volumetric/engine/math"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

const (
	DEFAULT_FOV_DEGREES float32 = 45.0
	DEFAULT_NEAR_CLIP   float32 = 0.5
	DEFAULT_FAR_CLIP    float32 = 50.0
)

/**
 * @brief A look-at camera. The view matrix is rebuilt lazily after the
 * position or the target moved.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	FovDegrees float32
	NearClip   float32
	FarClip    float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

type CameraLookup struct {
	ID             uint16
	ReferenceCount uint16
	Camera         *Camera
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, -17.5)
	c.Target = math.NewVec3Zero()
	c.Up = math.NewVec3Up()
	c.FovDegrees = DEFAULT_FOV_DEGREES
	c.NearClip = DEFAULT_NEAR_CLIP
	c.FarClip = DEFAULT_FAR_CLIP
	c.IsDirty = true
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

// LookAt points the camera at target with the given up vector.
func (c *Camera) LookAt(position, target, up math.Vec3) {
	c.Position = position
	c.Target = target
	c.Up = up
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAtLH(c.Position, c.Target, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) Projection(width, height uint32) math.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return math.NewMat4PerspectiveLH(math.DegToRad(c.FovDegrees), aspect, c.NearClip, c.FarClip)
}

func (c *Camera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalized()
}

/** @brief Camera state for a viewport of the given size. */
func (c *Camera) ViewerDesc(width, height uint32) metadata.ViewerDesc {
	proj := c.Projection(width, height)
	return metadata.ViewerDesc{
		Proj:           proj,
		ViewProj:       c.GetView().Mul(proj),
		EyePosition:    c.Position,
		ViewportWidth:  width,
		ViewportHeight: height,
	}
}
