package postfx

import (
	"unsafe"

	"voxren/internal/graphics"
	"voxren/internal/post"
	"voxren/internal/profiling"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Chain owns the off-screen targets and runs the post-process passes:
// SSAO with bilateral blur, volumetric fog, TAA resolve, and sharpening.
// The scene renders into the chain's G-buffer; Resolve ends with the final
// image in the default framebuffer.
type Chain struct {
	width, height int

	sceneFBO    uint32
	sceneColor  uint32
	sceneNormal uint32
	sceneDepth  uint32

	ssaoShader     *graphics.Shader
	ssaoBlurShader *graphics.Shader
	ssaoFBO        uint32
	ssaoRaw        uint32
	ssaoBlurred    uint32
	noiseTex       uint32
	kernel         []mgl32.Vec3

	taaShader     *graphics.Shader
	sharpenShader *graphics.Shader
	resolveFBO    uint32
	resolved      uint32
	history       [2]uint32
	historyIndex  int
	haveHistory   bool

	scatterShader   *graphics.Shader
	integrateShader *graphics.Shader
	temporalShader  *graphics.Shader
	compositeShader *graphics.Shader
	scatterVol      uint32
	integratedVol   uint32
	fogHistory      [2]uint32
	fogIndex        int
	volCfg          post.VolumetricConfig

	quadVAO uint32
}

// NewChain compiles the post shaders and allocates render targets for the
// given framebuffer size.
func NewChain(width, height int) (*Chain, error) {
	c := &Chain{
		width:  width,
		height: height,
		volCfg: post.DefaultVolumetricConfig(),
		kernel: post.HemisphereKernel(post.DefaultSSAOConfig().SampleCount),
	}

	var err error
	if c.ssaoShader, err = graphics.NewShader(fullscreenVert, post.SSAOFragmentSource); err != nil {
		return nil, err
	}
	if c.ssaoBlurShader, err = graphics.NewShader(fullscreenVert, post.SSAOBlurFragmentSource); err != nil {
		return nil, err
	}
	if c.taaShader, err = graphics.NewShader(fullscreenVert, post.TAAResolveFragmentSource); err != nil {
		return nil, err
	}
	if c.sharpenShader, err = graphics.NewShader(fullscreenVert, post.TAASharpenFragmentSource); err != nil {
		return nil, err
	}
	if c.compositeShader, err = graphics.NewShader(fullscreenVert, compositeFrag); err != nil {
		return nil, err
	}
	if c.scatterShader, err = graphics.NewComputeShader(post.VolumetricScatterComputeSource); err != nil {
		return nil, err
	}
	if c.integrateShader, err = graphics.NewComputeShader(post.VolumetricIntegrateComputeSource); err != nil {
		return nil, err
	}
	if c.temporalShader, err = graphics.NewComputeShader(post.VolumetricTemporalComputeSource); err != nil {
		return nil, err
	}

	c.createTargets()
	c.createNoise()
	c.createVolumes()
	gl.CreateVertexArrays(1, &c.quadVAO)
	return c, nil
}

func (c *Chain) createTargets() {
	w, h := int32(c.width), int32(c.height)

	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.sceneColor)
	gl.TextureStorage2D(c.sceneColor, 1, gl.RGBA16F, w, h)
	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.sceneNormal)
	gl.TextureStorage2D(c.sceneNormal, 1, gl.RGBA8, w, h)
	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.sceneDepth)
	gl.TextureStorage2D(c.sceneDepth, 1, gl.DEPTH_COMPONENT32F, w, h)

	gl.CreateFramebuffers(1, &c.sceneFBO)
	gl.NamedFramebufferTexture(c.sceneFBO, gl.COLOR_ATTACHMENT0, c.sceneColor, 0)
	gl.NamedFramebufferTexture(c.sceneFBO, gl.COLOR_ATTACHMENT1, c.sceneNormal, 0)
	gl.NamedFramebufferTexture(c.sceneFBO, gl.DEPTH_ATTACHMENT, c.sceneDepth, 0)
	drawBufs := []uint32{gl.COLOR_ATTACHMENT0, gl.COLOR_ATTACHMENT1}
	gl.NamedFramebufferDrawBuffers(c.sceneFBO, 2, &drawBufs[0])

	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.ssaoRaw)
	gl.TextureStorage2D(c.ssaoRaw, 1, gl.R8, w, h)
	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.ssaoBlurred)
	gl.TextureStorage2D(c.ssaoBlurred, 1, gl.R8, w, h)
	gl.CreateFramebuffers(1, &c.ssaoFBO)

	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.resolved)
	gl.TextureStorage2D(c.resolved, 1, gl.RGBA16F, w, h)
	for i := range c.history {
		gl.CreateTextures(gl.TEXTURE_2D, 1, &c.history[i])
		gl.TextureStorage2D(c.history[i], 1, gl.RGBA16F, w, h)
		gl.TextureParameteri(c.history[i], gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TextureParameteri(c.history[i], gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	}
	gl.CreateFramebuffers(1, &c.resolveFBO)
}

func (c *Chain) createNoise() {
	cfg := post.DefaultSSAOConfig()
	vectors := post.RotationNoise(cfg.NoiseDim)
	pixels := make([]float32, 0, len(vectors)*4)
	for _, v := range vectors {
		pixels = append(pixels, v.X(), v.Y(), v.Z(), v.W())
	}
	gl.CreateTextures(gl.TEXTURE_2D, 1, &c.noiseTex)
	gl.TextureStorage2D(c.noiseTex, 1, gl.RGBA16F, int32(cfg.NoiseDim), int32(cfg.NoiseDim))
	gl.TextureSubImage2D(c.noiseTex, 0, 0, 0, int32(cfg.NoiseDim), int32(cfg.NoiseDim),
		gl.RGBA, gl.FLOAT, unsafe.Pointer(&pixels[0]))
	gl.TextureParameteri(c.noiseTex, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TextureParameteri(c.noiseTex, gl.TEXTURE_WRAP_T, gl.REPEAT)
}

func (c *Chain) createVolumes() {
	dim := c.volCfg.Resolution
	make3D := func(tex *uint32) {
		gl.CreateTextures(gl.TEXTURE_3D, 1, tex)
		gl.TextureStorage3D(*tex, 1, gl.RGBA16F, int32(dim[0]), int32(dim[1]), int32(dim[2]))
		gl.TextureParameteri(*tex, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TextureParameteri(*tex, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TextureParameteri(*tex, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TextureParameteri(*tex, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		gl.TextureParameteri(*tex, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	}
	make3D(&c.scatterVol)
	make3D(&c.integratedVol)
	make3D(&c.fogHistory[0])
	make3D(&c.fogHistory[1])
}

// FrameInput carries the per-frame matrices and light state the chain needs.
type FrameInput struct {
	Proj         mgl32.Mat4
	View         mgl32.Mat4
	InvViewProj  mgl32.Mat4
	PrevViewProj mgl32.Mat4
	CameraPos    mgl32.Vec3
	SunDirection mgl32.Vec3
	SunColor     mgl32.Vec3
	Near, Far    float32

	CascadeMatrices []float32
	CascadeSplits   []float32
	ShadowMapTex    uint32
}

// BeginScene binds the G-buffer for the main color pass.
func (c *Chain) BeginScene() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, c.sceneFBO)
	gl.Viewport(0, 0, int32(c.width), int32(c.height))
	gl.ClearColor(0.53, 0.81, 0.92, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Resolve runs the post chain and writes the final image to the default
// framebuffer.
func (c *Chain) Resolve(in FrameInput) {
	defer profiling.Track("postfx.Resolve")()

	gl.Disable(gl.DEPTH_TEST)
	defer gl.Enable(gl.DEPTH_TEST)

	c.runSSAO(in)
	c.runVolumetrics(in)
	c.runTAA(in)
	c.runComposite(in)
}

func (c *Chain) runSSAO(in FrameInput) {
	defer profiling.Track("postfx.ssao")()

	cfg := post.DefaultSSAOConfig()
	invProj := in.Proj.Inv()

	gl.BindFramebuffer(gl.FRAMEBUFFER, c.ssaoFBO)
	gl.NamedFramebufferTexture(c.ssaoFBO, gl.COLOR_ATTACHMENT0, c.ssaoRaw, 0)

	c.ssaoShader.Use()
	c.bindTexture(0, c.sceneDepth, "uDepth", c.ssaoShader)
	c.bindTexture(1, c.sceneNormal, "uNormal", c.ssaoShader)
	c.bindTexture(2, c.noiseTex, "uNoise", c.ssaoShader)
	c.ssaoShader.SetMatrix4("uProj", &in.Proj[0])
	c.ssaoShader.SetMatrix4("uInvProj", &invProj[0])
	c.ssaoShader.SetVector2("uNoiseScale",
		float32(c.width)/float32(cfg.NoiseDim), float32(c.height)/float32(cfg.NoiseDim))
	c.ssaoShader.SetFloat("uRadius", cfg.Radius)
	c.ssaoShader.SetFloat("uBias", cfg.Bias)
	c.ssaoShader.SetFloat("uPower", cfg.Power)
	kernelFlat := make([]float32, 0, len(c.kernel)*3)
	for _, k := range c.kernel {
		kernelFlat = append(kernelFlat, k.X(), k.Y(), k.Z())
	}
	c.ssaoShader.SetVector3v("uKernel", int32(len(c.kernel)), &kernelFlat[0])
	c.drawQuad()

	gl.NamedFramebufferTexture(c.ssaoFBO, gl.COLOR_ATTACHMENT0, c.ssaoBlurred, 0)
	c.ssaoBlurShader.Use()
	c.bindTexture(0, c.ssaoRaw, "uAO", c.ssaoBlurShader)
	c.ssaoBlurShader.SetFloat("uSigmaSpatial", 2.0)
	c.ssaoBlurShader.SetFloat("uSigmaValue", 0.1)
	c.drawQuad()
}

func (c *Chain) runVolumetrics(in FrameInput) {
	defer profiling.Track("postfx.volumetrics")()

	dim := c.volCfg.Resolution

	c.scatterShader.Use()
	gl.BindImageTexture(0, c.scatterVol, 0, true, 0, gl.WRITE_ONLY, gl.RGBA16F)
	c.scatterShader.SetMatrix4("uInvViewProj", &in.InvViewProj[0])
	c.scatterShader.SetVector3("uCameraPos", in.CameraPos.X(), in.CameraPos.Y(), in.CameraPos.Z())
	c.scatterShader.SetVector3("uSunDirection", in.SunDirection.X(), in.SunDirection.Y(), in.SunDirection.Z())
	c.scatterShader.SetVector3("uSunColor", in.SunColor.X(), in.SunColor.Y(), in.SunColor.Z())
	c.scatterShader.SetFloat("uFogDensity", c.volCfg.FogDensity)
	c.scatterShader.SetFloat("uPhaseG", c.volCfg.PhaseG)
	c.scatterShader.SetFloat("uNear", in.Near)
	c.scatterShader.SetFloat("uFar", in.Far)
	c.scatterShader.SetVector3i("uVolumeDim", int32(dim[0]), int32(dim[1]), int32(dim[2]))
	if len(in.CascadeMatrices) > 0 {
		c.scatterShader.SetMatrix4v("uCascadeViewProj",
			int32(len(in.CascadeMatrices)/16), &in.CascadeMatrices[0])
		c.scatterShader.SetFloatv("uCascadeSplits",
			int32(len(in.CascadeSplits)), &in.CascadeSplits[0])
	}
	gl.ActiveTexture(gl.TEXTURE3)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, in.ShadowMapTex)
	c.scatterShader.SetInt("uShadowMaps", 3)
	c.scatterShader.Dispatch(groups(dim[0], 8), groups(dim[1], 8), uint32(dim[2]))
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT)

	c.integrateShader.Use()
	gl.BindImageTexture(0, c.scatterVol, 0, true, 0, gl.READ_ONLY, gl.RGBA16F)
	gl.BindImageTexture(1, c.integratedVol, 0, true, 0, gl.WRITE_ONLY, gl.RGBA16F)
	c.integrateShader.SetFloat("uNear", in.Near)
	c.integrateShader.SetFloat("uFar", in.Far)
	c.integrateShader.SetVector3i("uVolumeDim", int32(dim[0]), int32(dim[1]), int32(dim[2]))
	c.integrateShader.Dispatch(groups(dim[0], 8), groups(dim[1], 8), 1)
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT)

	// Temporal fog resolve into the current history slot.
	reproject := in.PrevViewProj.Mul4(in.InvViewProj)
	dst := c.fogHistory[c.fogIndex]
	src := c.fogHistory[1-c.fogIndex]
	c.temporalShader.Use()
	gl.BindImageTexture(0, c.integratedVol, 0, true, 0, gl.READ_ONLY, gl.RGBA16F)
	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_3D, src)
	c.temporalShader.SetInt("uHistoryVolume", 1)
	gl.BindImageTexture(2, dst, 0, true, 0, gl.WRITE_ONLY, gl.RGBA16F)
	c.temporalShader.SetMatrix4("uReproject", &reproject[0])
	c.temporalShader.SetFloat("uBlendFactor", 0.1)
	c.temporalShader.SetVector3i("uVolumeDim", int32(dim[0]), int32(dim[1]), int32(dim[2]))
	c.temporalShader.Dispatch(groups(dim[0], 8), groups(dim[1], 8), uint32(dim[2]))
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT)
	c.fogIndex = 1 - c.fogIndex
}

func (c *Chain) runTAA(in FrameInput) {
	defer profiling.Track("postfx.taa")()

	cfg := post.DefaultTAAConfig()
	historySrc := c.history[1-c.historyIndex]
	historyDst := c.history[c.historyIndex]

	gl.BindFramebuffer(gl.FRAMEBUFFER, c.resolveFBO)
	gl.NamedFramebufferTexture(c.resolveFBO, gl.COLOR_ATTACHMENT0, historyDst, 0)

	c.taaShader.Use()
	c.bindTexture(0, c.sceneColor, "uCurrent", c.taaShader)
	c.bindTexture(1, historySrc, "uHistory", c.taaShader)
	c.bindTexture(2, c.sceneDepth, "uDepth", c.taaShader)
	c.taaShader.SetMatrix4("uInvViewProj", &in.InvViewProj[0])
	c.taaShader.SetMatrix4("uPrevViewProj", &in.PrevViewProj[0])
	blend := cfg.BlendFactor
	if !c.haveHistory {
		blend = 1 // no history yet, take the current frame wholesale
	}
	c.taaShader.SetFloat("uBlendFactor", blend)
	c.drawQuad()
	c.haveHistory = true

	// Sharpen from the resolved history into the final texture.
	gl.NamedFramebufferTexture(c.resolveFBO, gl.COLOR_ATTACHMENT0, c.resolved, 0)
	c.sharpenShader.Use()
	c.bindTexture(0, historyDst, "uColor", c.sharpenShader)
	c.sharpenShader.SetFloat("uSharpness", cfg.Sharpness)
	c.drawQuad()

	c.historyIndex = 1 - c.historyIndex
}

func (c *Chain) runComposite(in FrameInput) {
	defer profiling.Track("postfx.composite")()

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(c.width), int32(c.height))

	c.compositeShader.Use()
	c.bindTexture(0, c.resolved, "uColor", c.compositeShader)
	c.bindTexture(1, c.ssaoBlurred, "uAO", c.compositeShader)
	c.bindTexture(2, c.sceneDepth, "uDepth", c.compositeShader)
	gl.ActiveTexture(gl.TEXTURE3)
	gl.BindTexture(gl.TEXTURE_3D, c.fogHistory[1-c.fogIndex])
	c.compositeShader.SetInt("uFog", 3)
	c.compositeShader.SetFloat("uNear", in.Near)
	c.compositeShader.SetFloat("uFar", in.Far)
	c.drawQuad()
}

func (c *Chain) bindTexture(unit int32, tex uint32, name string, shader *graphics.Shader) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
	shader.SetInt(name, unit)
}

func (c *Chain) drawQuad() {
	gl.BindVertexArray(c.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
}

func groups(size, local int) uint32 {
	return uint32((size + local - 1) / local)
}

// SetViewport reallocates the screen-sized targets on resize.
func (c *Chain) SetViewport(width, height int) {
	if width == c.width && height == c.height {
		return
	}
	c.deleteTargets()
	c.width, c.height = width, height
	c.createTargets()
	c.haveHistory = false
}

func (c *Chain) deleteTargets() {
	textures := []uint32{c.sceneColor, c.sceneNormal, c.sceneDepth,
		c.ssaoRaw, c.ssaoBlurred, c.resolved, c.history[0], c.history[1]}
	gl.DeleteTextures(int32(len(textures)), &textures[0])
	fbos := []uint32{c.sceneFBO, c.ssaoFBO, c.resolveFBO}
	gl.DeleteFramebuffers(int32(len(fbos)), &fbos[0])
}

// Dispose frees all GPU resources.
func (c *Chain) Dispose() {
	c.deleteTargets()
	volumes := []uint32{c.scatterVol, c.integratedVol, c.fogHistory[0], c.fogHistory[1]}
	gl.DeleteTextures(int32(len(volumes)), &volumes[0])
	gl.DeleteTextures(1, &c.noiseTex)
	gl.DeleteVertexArrays(1, &c.quadVAO)
}

// fullscreenVert emits a single clip-space triangle covering the screen.
const fullscreenVert = `#version 460 core

out vec2 vUV;

void main() {
    vec2 pos = vec2((gl_VertexID << 1) & 2, gl_VertexID & 2);
    vUV = pos;
    gl_Position = vec4(pos * 2.0 - 1.0, 0.0, 1.0);
}
`

// compositeFrag applies AO and fog to the anti-aliased color and writes the
// final frame.
const compositeFrag = `#version 460 core

in vec2 vUV;
out vec4 oColor;

uniform sampler2D uColor;
uniform sampler2D uAO;
uniform sampler2D uDepth;
uniform sampler3D uFog;
uniform float uNear;
uniform float uFar;

void main() {
    vec3 color = texture(uColor, vUV).rgb;
    float ao = texture(uAO, vUV).r;

    float depth = texture(uDepth, vUV).r;
    float ndcZ = depth * 2.0 - 1.0;
    float viewDepth = 2.0 * uNear * uFar / (uFar + uNear - ndcZ * (uFar - uNear));
    float slice = clamp(log(viewDepth / uNear) / log(uFar / uNear), 0.0, 1.0);
    vec4 fog = texture(uFog, vec3(vUV, slice));

    color = color * ao * fog.a + fog.rgb;
    oColor = vec4(color, 1.0);
}
`
