package engine

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name string
	// Overrides the scene's log level when set.
	LogLevel string
	// Scene file, watched for changes while running.
	ScenePath string
	// Root of the config and shader assets.
	AssetsPath string
	// Overrides the scene's device platform when set.
	Platform string
	// Runs without a window.
	Headless bool
	// Stops the run loop after this many frames. 0 runs until quit.
	MaxFrames uint64
}
