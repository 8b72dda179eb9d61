package renderer

import (
	"fmt"
	"unsafe"

	"voxren/internal/config"
	"voxren/internal/cull"
	"voxren/internal/graphics"
	"voxren/internal/graphics/postfx"
	"voxren/internal/lighting"
	"voxren/internal/profiling"
	"voxren/internal/shadow"
	"voxren/internal/voxel"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// remeshBudget caps how many chunk remesh jobs are scheduled per frame so a
// large edit burst spreads over several frames instead of stalling one.
const remeshBudget = 64

// Renderer orchestrates the frame: mesh updates, shadow cascades, clustered
// light assignment, the main color pass, and the post chain.
type Renderer struct {
	cfg         *config.RenderConfig
	renderables []Renderable
	camera      *graphics.Camera
	culler      *cull.Culler
	shadows     *shadow.Manager
	assigner    lighting.Assigner
	chain       *postfx.Chain

	lightSSBO   *graphics.SSBO
	clusterSSBO *graphics.SSBO
	countSSBO   *graphics.SSBO
	indexSSBO   *graphics.SSBO
	cullShader  *graphics.Shader

	shadowFBO uint32
	shadowTex uint32

	width, height int

	// Cluster AABBs depend only on the projection; recomputed when it
	// changes.
	aabbs    []lighting.ClusterAABB
	aabbProj mgl32.Mat4
	haveAABB bool
}

// NewRenderer sets global GL state and builds the frame pipeline around the
// given renderables.
func NewRenderer(cfg *config.RenderConfig, width, height int, rs ...Renderable) (*Renderer, error) {
	if cfg.CascadeCount != shadow.ShaderCascadeCount {
		return nil, fmt.Errorf("renderer: cascade count %d does not match the shader-baked %d",
			cfg.CascadeCount, shadow.ShaderCascadeCount)
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)

	camera := graphics.NewCamera(width, height)
	camera.NearPlane = cfg.NearPlane
	camera.FarPlane = cfg.FarPlane

	grid := lighting.Grid{
		DimX: cfg.ClusterDimX,
		DimY: cfg.ClusterDimY,
		DimZ: cfg.ClusterDimZ,
		Near: cfg.NearPlane,
		Far:  cfg.FarPlane,
	}

	r := &Renderer{
		cfg:         cfg,
		renderables: rs,
		camera:      camera,
		culler:      cull.NewCuller(float32(cfg.ChunkSize)),
		shadows:     shadow.NewManager(cfg.CascadeCount, cfg.ShadowMapSize),
		assigner: lighting.Assigner{
			Grid:          grid,
			MaxLights:     cfg.MaxLights,
			MaxPerCluster: cfg.MaxLightsPerCluster,
		},
		width:  width,
		height: height,
	}

	n := cfg.ClusterCount()
	r.lightSSBO = graphics.NewSSBO(cfg.MaxLights * lighting.GPULightSize)
	r.clusterSSBO = graphics.NewSSBO(n * lighting.ClusterAABBSize)
	r.countSSBO = graphics.NewSSBO(n * 4)
	r.indexSSBO = graphics.NewSSBO(n * cfg.MaxLightsPerCluster * 4)

	if cfg.GPULightCull {
		var err error
		if r.cullShader, err = graphics.NewComputeShader(lighting.CullComputeSource); err != nil {
			return nil, err
		}
	}

	r.createShadowTargets()

	var err error
	if r.chain, err = postfx.NewChain(width, height); err != nil {
		return nil, err
	}

	for _, renderable := range rs {
		if err := renderable.Init(); err != nil {
			return nil, err
		}
		renderable.SetViewport(width, height)
	}
	return r, nil
}

func (r *Renderer) createShadowTargets() {
	size := int32(r.cfg.ShadowMapSize)
	gl.CreateTextures(gl.TEXTURE_2D_ARRAY, 1, &r.shadowTex)
	gl.TextureStorage3D(r.shadowTex, 1, gl.DEPTH_COMPONENT32F, size, size, int32(r.cfg.CascadeCount))
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TextureParameteri(r.shadowTex, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	// Samples outside the map read as fully lit.
	border := [4]float32{1, 1, 1, 1}
	gl.TextureParameterfv(r.shadowTex, gl.TEXTURE_BORDER_COLOR, &border[0])

	gl.CreateFramebuffers(1, &r.shadowFBO)
	gl.NamedFramebufferDrawBuffer(r.shadowFBO, gl.NONE)
	gl.NamedFramebufferReadBuffer(r.shadowFBO, gl.NONE)
}

// Render executes one frame against the given scene.
func (r *Renderer) Render(store *voxel.Store, lights []lighting.Light, dt float64) {
	profiling.ResetFrame()
	defer profiling.Track("renderer.Render")()

	view := r.camera.GetViewMatrix()
	proj := r.camera.GetProjectionMatrix()
	jittered := r.camera.GetJitteredProjectionMatrix()

	sunDir, sunColor := sunFromLights(lights)
	cascades := r.shadows.Update(shadow.Camera{
		Position: r.camera.Position,
		Dir:      r.camera.Front,
		Up:       r.camera.Up,
		FovYDeg:  r.camera.FOV,
		Aspect:   r.camera.AspectRatio,
		Near:     r.camera.NearPlane,
		Far:      r.camera.FarPlane,
	}, sunDir)

	ctx := RenderContext{
		Camera:        r.camera,
		Store:         store,
		Culler:        r.culler,
		DT:            dt,
		View:          view,
		Proj:          proj,
		JitteredProj:  jittered,
		Frustum:       cull.FrustumFromClip(proj.Mul4(view)),
		Cascades:      cascades,
		CascadeSplits: r.shadows.Splits(),
		SunDirection:  sunDir,
		SunColor:      sunColor,
	}

	r.culler.BeginFrame()
	for _, renderable := range r.renderables {
		if u, ok := renderable.(MeshUpdater); ok {
			u.ScheduleRemesh(ctx, remeshBudget)
			u.DrainResults(ctx)
		}
	}

	r.updateLightTables(lights, view, proj)
	r.renderShadowPasses(ctx, cascades)

	// Light tables on the bindings the shading shader declares; clusters on
	// binding 1 only feed the GPU culling pass but binding them is harmless.
	r.lightSSBO.BindBase(0)
	r.clusterSSBO.BindBase(1)
	r.countSSBO.BindBase(2)
	r.indexSSBO.BindBase(3)
	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, r.shadowTex)

	r.chain.BeginScene()
	for _, renderable := range r.renderables {
		renderable.Render(ctx)
	}

	r.chain.Resolve(r.frameInput(ctx))
	r.camera.EndFrame()
}

func (r *Renderer) frameInput(ctx RenderContext) postfx.FrameInput {
	mats := make([]float32, 0, len(ctx.Cascades)*16)
	for _, c := range ctx.Cascades {
		mats = append(mats, c.ViewProj[:]...)
	}
	return postfx.FrameInput{
		Proj:         ctx.Proj,
		View:         ctx.View,
		InvViewProj:  ctx.Proj.Mul4(ctx.View).Inv(),
		PrevViewProj: r.camera.PrevViewProjectionMatrix(),
		CameraPos:    r.camera.Position,
		SunDirection: ctx.SunDirection,
		SunColor:     ctx.SunColor,
		Near:         r.camera.NearPlane,
		Far:          r.camera.FarPlane,

		CascadeMatrices: mats,
		CascadeSplits:   ctx.CascadeSplits,
		ShadowMapTex:    r.shadowTex,
	}
}

// updateLightTables packs the frame's lights, refreshes the cluster AABBs if
// the projection changed, and fills the per-cluster index tables either on
// the CPU or with the culling compute pass.
func (r *Renderer) updateLightTables(lights []lighting.Light, view, proj mgl32.Mat4) {
	defer profiling.Track("renderer.lightTables")()

	if !r.haveAABB || proj != r.aabbProj {
		r.aabbs = r.assigner.Grid.ComputeAABBs(proj)
		r.aabbProj = proj
		r.haveAABB = true
		r.clusterSSBO.Upload(unsafe.Pointer(&r.aabbs[0]), len(r.aabbs)*lighting.ClusterAABBSize)
	}

	if r.cullShader != nil {
		packed := lighting.Pack(lights, r.cfg.MaxLights)
		if len(packed) > 0 {
			r.lightSSBO.Upload(unsafe.Pointer(&packed[0]), len(packed)*lighting.GPULightSize)
		}
		r.lightSSBO.BindBase(0)
		r.clusterSSBO.BindBase(1)
		r.countSSBO.BindBase(2)
		r.indexSSBO.BindBase(3)
		n := r.cfg.ClusterCount()
		r.cullShader.Use()
		r.cullShader.SetMatrix4("uView", &view[0])
		r.cullShader.SetUint("uNumLights", uint32(len(packed)))
		r.cullShader.SetUint("uNumClusters", uint32(n))
		r.cullShader.SetUint("uMaxPerCluster", uint32(r.cfg.MaxLightsPerCluster))
		r.cullShader.Dispatch(uint32((n+63)/64), 1, 1)
		gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
		return
	}

	asn := r.assigner.Assign(lights, view, r.aabbs)
	if len(asn.Lights) > 0 {
		r.lightSSBO.Upload(unsafe.Pointer(&asn.Lights[0]), len(asn.Lights)*lighting.GPULightSize)
	}
	r.countSSBO.Upload(unsafe.Pointer(&asn.Counts[0]), len(asn.Counts)*4)
	r.indexSSBO.Upload(unsafe.Pointer(&asn.Indices[0]), len(asn.Indices)*4)
}

// renderShadowPasses draws depth-only geometry into each cascade layer.
func (r *Renderer) renderShadowPasses(ctx RenderContext, cascades []shadow.CascadeData) {
	defer profiling.Track("renderer.shadowPasses")()

	size := int32(r.cfg.ShadowMapSize)
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.shadowFBO)
	gl.Viewport(0, 0, size, size)
	for i, cascade := range cascades {
		gl.NamedFramebufferTextureLayer(r.shadowFBO, gl.DEPTH_ATTACHMENT, r.shadowTex, 0, int32(i))
		gl.Clear(gl.DEPTH_BUFFER_BIT)
		for _, renderable := range r.renderables {
			if d, ok := renderable.(DepthRenderable); ok {
				d.RenderDepth(ctx, i, cascade.ViewProj)
			}
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// sunFromLights picks the first enabled directional light as the sun. With
// no directional light the scene gets a dim default so shadows and fog stay
// well defined.
func sunFromLights(lights []lighting.Light) (mgl32.Vec3, mgl32.Vec3) {
	for _, l := range lights {
		if l.Enabled && l.Kind == lighting.Directional {
			return l.Direction.Normalize(), l.Color.Mul(l.Intensity)
		}
	}
	return mgl32.Vec3{-0.4, -0.8, -0.3}.Normalize(), mgl32.Vec3{0.1, 0.1, 0.12}
}

// GetCamera returns the camera instance.
func (r *Renderer) GetCamera() *graphics.Camera {
	return r.camera
}

// UpdateViewport resizes all screen-sized resources.
func (r *Renderer) UpdateViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	r.camera.Resize(width, height)
	r.chain.SetViewport(width, height)
	for _, renderable := range r.renderables {
		renderable.SetViewport(width, height)
	}
}

// Dispose cleans up all renderables in reverse order, then the pipeline's
// own resources.
func (r *Renderer) Dispose() {
	for i := len(r.renderables) - 1; i >= 0; i-- {
		r.renderables[i].Dispose()
	}
	r.chain.Dispose()
	r.lightSSBO.Delete()
	r.clusterSSBO.Delete()
	r.countSSBO.Delete()
	r.indexSSBO.Delete()
	gl.DeleteTextures(1, &r.shadowTex)
	gl.DeleteFramebuffers(1, &r.shadowFBO)
}
