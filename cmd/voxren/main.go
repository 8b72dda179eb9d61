package main

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"voxren/internal/config"
	"voxren/internal/graphics"
	"voxren/internal/graphics/blocks"
	"voxren/internal/graphics/renderer"
	"voxren/internal/lighting"
	"voxren/internal/meshing"
	"voxren/internal/profiling"
	"voxren/internal/voxel"
	"voxren/internal/worldgen"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
)

func init() {
	runtime.LockOSThread()
}

const (
	winW = 1280
	winH = 720
)

func main() {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("voxren: %v", err)
	}
	if err := graphics.VerifyGPULayouts(); err != nil {
		log.Fatalf("voxren: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("voxren: glfw init: %v", err)
	}
	closer.Bind(glfw.Terminate)

	window, err := setupWindow()
	if err != nil {
		log.Fatalf("voxren: window: %v", err)
	}
	if err := gl.Init(); err != nil {
		log.Fatalf("voxren: gl init: %v", err)
	}

	workers := meshing.NewWorkerPool(runtime.NumCPU(), 256)
	closer.Bind(workers.Shutdown)

	blocksRenderer := blocks.NewBlocks(&cfg, workers)
	r, err := renderer.NewRenderer(&cfg, winW, winH, blocksRenderer)
	if err != nil {
		log.Fatalf("voxren: renderer: %v", err)
	}
	closer.Bind(r.Dispose)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		r.UpdateViewport(width, height)
	})

	store := voxel.NewStore(cfg.ChunkSize)
	worldgen.NewGenerator(1337).Fill(store, 160)
	lights := demoLights()

	cam := r.GetCamera()
	cam.Position = mgl32.Vec3{0, 48, 0}
	setupInput(window, cam)

	runFrameLoop(window, r, blocksRenderer, store, lights, cam)
	closer.Close()
}

func setupWindow() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(winW, winH, "voxren", nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(0)
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	return window, nil
}

// setupInput wires mouse look into the camera and the bracket keys into the
// render distance. Movement keys are polled in the frame loop.
func setupInput(window *glfw.Window, cam *graphics.Camera) {
	yaw, pitch := -90.0, -15.0
	lastX, lastY := float64(winW)/2, float64(winH)/2
	firstMouse := true

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if firstMouse {
			lastX, lastY = xpos, ypos
			firstMouse = false
		}
		const sensitivity = 0.1
		yaw += (xpos - lastX) * sensitivity
		pitch += (lastY - ypos) * sensitivity
		lastX, lastY = xpos, ypos
		if pitch > 89 {
			pitch = 89
		}
		if pitch < -89 {
			pitch = -89
		}
		cam.Front = frontVector(yaw, pitch)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyLeftBracket:
			config.SetRenderDistance(config.GetRenderDistance() - 5)
			fmt.Printf("render distance: %d chunks\n", config.GetRenderDistance())
		case glfw.KeyRightBracket:
			config.SetRenderDistance(config.GetRenderDistance() + 5)
			fmt.Printf("render distance: %d chunks\n", config.GetRenderDistance())
		}
	})
}

func frontVector(yaw, pitch float64) mgl32.Vec3 {
	y := mgl32.DegToRad(float32(yaw))
	p := mgl32.DegToRad(float32(pitch))
	return mgl32.Vec3{
		float32(math.Cos(float64(y)) * math.Cos(float64(p))),
		float32(math.Sin(float64(p))),
		float32(math.Sin(float64(y)) * math.Cos(float64(p))),
	}.Normalize()
}

func runFrameLoop(window *glfw.Window, r *renderer.Renderer, br *blocks.Blocks,
	store *voxel.Store, lights []lighting.Light, cam *graphics.Camera) {

	frames := 0
	lastStats := time.Now()
	lastTime := time.Now()
	var elapsed float64

	for !window.ShouldClose() {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now
		elapsed += dt

		moveCamera(window, cam, dt)
		animateLights(lights, elapsed)

		r.Render(store, lights, dt)
		frames++

		window.SwapBuffers()
		glfw.PollEvents()

		if time.Since(lastStats) >= time.Second {
			snap := profiling.Snapshot()
			fmt.Printf("FPS: %d  chunks: %d  render: %v  shadows: %v  lights: %v\n",
				frames, br.ResidentChunks(),
				snap["renderer.Render"], snap["renderer.shadowPasses"], snap["renderer.lightTables"])
			frames = 0
			lastStats = time.Now()
		}
	}
}

func moveCamera(window *glfw.Window, cam *graphics.Camera, dt float64) {
	speed := float32(24 * dt)
	if window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		speed *= 4
	}
	right := cam.Front.Cross(cam.Up).Normalize()
	if window.GetKey(glfw.KeyW) == glfw.Press {
		cam.Position = cam.Position.Add(cam.Front.Mul(speed))
	}
	if window.GetKey(glfw.KeyS) == glfw.Press {
		cam.Position = cam.Position.Sub(cam.Front.Mul(speed))
	}
	if window.GetKey(glfw.KeyA) == glfw.Press {
		cam.Position = cam.Position.Sub(right.Mul(speed))
	}
	if window.GetKey(glfw.KeyD) == glfw.Press {
		cam.Position = cam.Position.Add(right.Mul(speed))
	}
	if window.GetKey(glfw.KeySpace) == glfw.Press {
		cam.Position = cam.Position.Add(cam.Up.Mul(speed))
	}
	if window.GetKey(glfw.KeyLeftControl) == glfw.Press {
		cam.Position = cam.Position.Sub(cam.Up.Mul(speed))
	}
}

// demoLights returns the sun plus a ring of colored point lights and one
// spot, exercising every light kind in the cluster tables.
func demoLights() []lighting.Light {
	lights := []lighting.Light{
		{
			Kind:      lighting.Directional,
			Direction: mgl32.Vec3{-0.45, -0.75, -0.35},
			Color:     mgl32.Vec3{1.0, 0.96, 0.9},
			Intensity: 2.2,
			Enabled:   true,
		},
		{
			Kind:       lighting.Spot,
			Position:   mgl32.Vec3{0, 60, 0},
			Direction:  mgl32.Vec3{0, -1, 0},
			Color:      mgl32.Vec3{1.0, 0.85, 0.6},
			Intensity:  8,
			Range:      64,
			InnerAngle: 18,
			OuterAngle: 30,
			Enabled:    true,
		},
	}
	palette := []mgl32.Vec3{
		{1.0, 0.3, 0.2}, {0.2, 0.6, 1.0}, {0.3, 1.0, 0.4}, {1.0, 0.8, 0.2},
	}
	for i := 0; i < 12; i++ {
		angle := float64(i) / 12 * 2 * math.Pi
		lights = append(lights, lighting.Light{
			Kind:      lighting.Point,
			Position:  mgl32.Vec3{float32(80 * math.Cos(angle)), 36, float32(80 * math.Sin(angle))},
			Color:     palette[i%len(palette)],
			Intensity: 5,
			Range:     28,
			Enabled:   true,
		})
	}
	return lights
}

// animateLights orbits the point lights slowly so temporal effects have
// something to resolve.
func animateLights(lights []lighting.Light, elapsed float64) {
	idx := 0
	for i := range lights {
		if lights[i].Kind != lighting.Point {
			continue
		}
		angle := float64(idx)/12*2*math.Pi + elapsed*0.2
		lights[i].Position = mgl32.Vec3{
			float32(80 * math.Cos(angle)),
			36 + 4*float32(math.Sin(elapsed*0.7+float64(idx))),
			float32(80 * math.Sin(angle)),
		}
		idx++
	}
}
