package blocks

import (
	"log"
	"sync"
	"unsafe"

	"voxren/internal/batch"
	"voxren/internal/config"
	"voxren/internal/cull"
	"voxren/internal/graphics"
	renderer "voxren/internal/graphics/renderer"
	"voxren/internal/lod"
	"voxren/internal/meshing"
	"voxren/internal/profiling"
	"voxren/internal/shadow"
	"voxren/internal/voxel"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Blocks renders chunk geometry: it drains finished mesh jobs into pooled
// GPU buffers, schedules remeshing for dirty chunks, and issues one indirect
// multi-draw per batch group over the resident meshes.
type Blocks struct {
	cfg         *config.RenderConfig
	mainShader  *graphics.Shader
	depthShader *graphics.Shader
	depthVAO    uint32
	vao         uint32

	vertexPool *graphics.BufferPool
	indexPool  *graphics.BufferPool
	indirectID uint32

	meshes  map[voxel.Coord]*chunkMesh
	ids     map[voxel.Coord]cull.ObjectID
	byID    map[cull.ObjectID]voxel.Coord
	nextID  cull.ObjectID
	pending map[voxel.Coord]pendingEntry
	// lodFloor raises the minimum LOD level for chunks whose meshes
	// overflowed the face budget, so the retry emits fewer faces. Entries
	// expire when the chunk's content changes.
	lodFloor map[voxel.Coord]lodFloorEntry

	workers *meshing.WorkerPool
	results chan meshing.JobResult
	arenas  sync.Pool
	gpu     *GPUMesher
	lodGPU  *gpuLODSelector

	atlas *Atlas

	width, height int

	idxScratch []uint32
	cmdScratch []graphics.DrawElementsIndirectCommand
}

type pendingEntry struct {
	gen   uint64
	lod   int
	arena *meshing.Arena
}

type lodFloorEntry struct {
	gen   uint64
	level int
}

// NewBlocks creates a blocks renderable backed by the given mesh workers.
func NewBlocks(cfg *config.RenderConfig, workers *meshing.WorkerPool) *Blocks {
	maxVerts := cfg.MaxFacesPerChunk * 4
	maxIdx := cfg.MaxFacesPerChunk * 6
	return &Blocks{
		cfg:      cfg,
		meshes:   make(map[voxel.Coord]*chunkMesh),
		ids:      make(map[voxel.Coord]cull.ObjectID),
		byID:     make(map[cull.ObjectID]voxel.Coord),
		pending:  make(map[voxel.Coord]pendingEntry),
		lodFloor: make(map[voxel.Coord]lodFloorEntry),
		workers:  workers,
		results:  make(chan meshing.JobResult, cfg.MaxChunks),
		arenas: sync.Pool{New: func() any {
			return meshing.NewArena(maxVerts, maxIdx)
		}},
	}
}

// Init compiles shaders and allocates the GPU pools.
func (b *Blocks) Init() error {
	var err error
	b.mainShader, err = graphics.NewShader(MainVertShader, MainFragShader)
	if err != nil {
		return err
	}
	b.depthShader, err = graphics.NewShader(shadow.DepthVertexSource, shadow.DepthFragmentSource)
	if err != nil {
		return err
	}

	b.atlas, err = BuildAtlas()
	if err != nil {
		return err
	}

	vertSlot := b.cfg.MaxFacesPerChunk * 4 * meshing.GPUVertexSize
	idxSlot := b.cfg.MaxFacesPerChunk * 6 * 4
	b.vertexPool = graphics.NewBufferPool(gl.ARRAY_BUFFER, vertSlot, b.cfg.MaxChunks)
	b.indexPool = graphics.NewBufferPool(gl.ELEMENT_ARRAY_BUFFER, idxSlot, b.cfg.MaxChunks)

	gl.CreateBuffers(1, &b.indirectID)
	gl.NamedBufferStorage(b.indirectID, b.cfg.MaxChunks*20, nil, gl.DYNAMIC_STORAGE_BIT)

	b.vao = b.buildVAO()
	b.depthVAO = b.buildVAO()

	if b.cfg.GPUMeshing {
		b.gpu, err = NewGPUMesher(b.cfg.ChunkSize)
		if err != nil {
			return err
		}
		b.lodGPU, err = newGPULODSelector(b.cfg.MaxChunks)
		if err != nil {
			return err
		}
	}
	return nil
}

// buildVAO wires the pooled vertex buffer's GPUVertex layout and the pooled
// index buffer into a vertex array.
func (b *Blocks) buildVAO() uint32 {
	var vao uint32
	gl.CreateVertexArrays(1, &vao)
	gl.VertexArrayVertexBuffer(vao, 0, b.vertexPool.ID(), 0, meshing.GPUVertexSize)
	gl.VertexArrayElementBuffer(vao, b.indexPool.ID())

	gl.EnableVertexArrayAttrib(vao, 0)
	gl.VertexArrayAttribFormat(vao, 0, 3, gl.FLOAT, false, 0)
	gl.VertexArrayAttribBinding(vao, 0, 0)

	gl.EnableVertexArrayAttrib(vao, 1)
	gl.VertexArrayAttribFormat(vao, 1, 3, gl.FLOAT, false, 12)
	gl.VertexArrayAttribBinding(vao, 1, 0)

	gl.EnableVertexArrayAttrib(vao, 2)
	gl.VertexArrayAttribFormat(vao, 2, 2, gl.FLOAT, false, 24)
	gl.VertexArrayAttribBinding(vao, 2, 0)

	gl.EnableVertexArrayAttrib(vao, 3)
	gl.VertexArrayAttribIFormat(vao, 3, 1, gl.UNSIGNED_INT, 32)
	gl.VertexArrayAttribBinding(vao, 3, 0)

	gl.EnableVertexArrayAttrib(vao, 4)
	gl.VertexArrayAttribFormat(vao, 4, 1, gl.FLOAT, false, 36)
	gl.VertexArrayAttribBinding(vao, 4, 0)

	return vao
}

// ScheduleRemesh snapshots up to max dirty chunks and queues mesh jobs.
// Each job captures the chunk generation; a chunk written again while its
// job is in flight produces a stale result that DrainResults discards.
func (b *Blocks) ScheduleRemesh(ctx renderer.RenderContext, max int) {
	defer profiling.Track("blocks.ScheduleRemesh")()

	camPos := ctx.Camera.Position
	lodParams := lod.Params{
		BaseDistance:       b.cfg.LODBaseDistance,
		DistanceMultiplier: b.cfg.LODDistanceMultiplier,
		QualityBias:        b.cfg.LODQualityBias,
		MaxLevel:           b.cfg.LODMaxLevel,
	}
	// Bounding radius of a cubic chunk: half the space diagonal.
	radius := float32(b.cfg.ChunkSize) * 0.8660254
	half := float32(b.cfg.ChunkSize) / 2

	dirty := ctx.Store.DirtyChunks(max)
	chunks := make([]*voxel.Chunk, 0, len(dirty))
	entries := make([]lod.Entry, 0, len(dirty))
	for _, chunk := range dirty {
		if _, inFlight := b.pending[chunk.Coord()]; inFlight {
			continue
		}
		center := chunk.Origin().Add(mgl32.Vec3{half, half, half})
		chunks = append(chunks, chunk)
		entries = append(entries, lod.Entry{Position: center, Radius: radius})
	}

	var gpuLevels []int32
	var levels []int
	if b.lodGPU != nil {
		gpuLevels = b.lodGPU.Select(entries, camPos, lodParams)
	} else {
		// No frustum test here: chunks behind the camera still need meshes
		// for the shadow passes.
		levels = make([]int, len(entries))
		lod.SelectAll(entries, levels, camPos, lodParams, nil)
	}

	for i, chunk := range chunks {
		coord := chunk.Coord()
		var level int
		if gpuLevels != nil {
			level = int(gpuLevels[i])
		} else {
			level = levels[i]
		}
		level = b.applyLODFloor(coord, chunk.Generation(), level)

		if b.gpu != nil {
			b.meshOnGPU(ctx, chunk, level)
			continue
		}

		input, gen := meshing.Snapshot(ctx.Store, chunk, true, level)
		arena := b.arenas.Get().(*meshing.Arena)
		arena.Reset()
		ok := b.workers.Submit(meshing.Job{
			Coord:       coord,
			Gen:         gen,
			Input:       input,
			Arena:       arena,
			BudgetFaces: b.cfg.MaxFacesPerChunk,
			ResultChan:  b.results,
		})
		if !ok {
			// Queue full: put the mesh back on the dirty path for next frame.
			chunk.MarkDirty()
			b.arenas.Put(arena)
			continue
		}
		b.pending[coord] = pendingEntry{gen: gen, lod: level, arena: arena}
	}
}

// applyLODFloor clamps the selected level up to the chunk's truncation floor.
// A floor recorded for an older generation is stale: the content changed, so
// the full-detail mesh gets another chance.
func (b *Blocks) applyLODFloor(coord voxel.Coord, gen uint64, level int) int {
	floor, ok := b.lodFloor[coord]
	if !ok {
		return level
	}
	if floor.gen != gen {
		delete(b.lodFloor, coord)
		return level
	}
	if level < floor.level {
		level = floor.level
	}
	return level
}

// coarsenAfterTruncation records that the chunk's mesh at the given level
// overflowed the face budget and reports whether a coarser retry exists.
// At the maximum level the truncated mesh is the best available, so the
// chunk is left alone rather than remeshed every frame.
func (b *Blocks) coarsenAfterTruncation(coord voxel.Coord, gen uint64, level int) bool {
	if level >= b.cfg.LODMaxLevel {
		return false
	}
	b.lodFloor[coord] = lodFloorEntry{gen: gen, level: level + 1}
	return true
}

// meshOnGPU runs the compute kernel synchronously for one chunk, writing
// straight into the chunk's pool slots with no CPU-side geometry copy.
func (b *Blocks) meshOnGPU(ctx renderer.RenderContext, chunk *voxel.Chunk, level int) {
	defer profiling.Track("blocks.meshOnGPU")()

	coord := chunk.Coord()
	gen, voxels := chunk.BeginMesh()

	mesh := b.meshes[coord]
	if mesh == nil {
		slot, err := b.vertexPool.Acquire()
		if err != nil {
			profiling.Count("blocks.poolExhausted", 1)
			chunk.MarkDirty()
			return
		}
		mesh = &chunkMesh{coord: coord, slot: slot}
		b.meshes[coord] = mesh
		id := b.nextID
		b.nextID++
		b.ids[coord] = id
		b.byID[id] = coord
	}

	origin := chunk.Origin()
	_, idx, overflow := b.gpu.Mesh(voxels, [3]float32{origin.X(), origin.Y(), origin.Z()},
		b.vertexPool, b.indexPool, mesh.slot)
	if overflow {
		// The compute kernel always meshes full detail, so there is no
		// coarser retry; the truncated mesh stands.
		profiling.Count("blocks.meshTruncated", 1)
		log.Printf("blocks: chunk %v truncated at %d faces", coord, b.cfg.MaxFacesPerChunk)
	}
	if idx == 0 {
		b.release(ctx, coord, mesh)
		return
	}

	slotIndexBase := uint32(mesh.slot) * uint32(b.cfg.MaxFacesPerChunk*6)
	mesh.cmd = meshing.DrawCommand{
		VertexCount:   idx,
		InstanceCount: 1,
		FirstVertex:   slotIndexBase,
		FirstInstance: 0,
	}
	mesh.gen = gen
	mesh.lod = level

	ctx.Culler.Upsert(b.ids[coord], cull.ChunkBounds(origin, float32(b.cfg.ChunkSize)))
}

// DrainResults uploads finished meshes. Results whose generation no longer
// matches the live chunk are stale and dropped; the chunk is already dirty
// again and will be remeshed.
func (b *Blocks) DrainResults(ctx renderer.RenderContext) {
	defer profiling.Track("blocks.DrainResults")()

	for {
		select {
		case res := <-b.results:
			b.finishJob(ctx, res)
		default:
			return
		}
	}
}

func (b *Blocks) finishJob(ctx renderer.RenderContext, res meshing.JobResult) {
	entry, ok := b.pending[res.Coord]
	if !ok {
		return
	}
	delete(b.pending, res.Coord)
	defer b.arenas.Put(entry.arena)

	chunk := ctx.Store.Chunk(res.Coord, false)
	if chunk == nil || chunk.Generation() != res.Gen {
		profiling.Count("blocks.staleResults", 1)
		return
	}
	if res.Err != nil {
		// Arena overflow: keep the previous mesh rather than render garbage.
		profiling.Count("blocks.meshErrors", 1)
		return
	}
	if res.Truncated {
		// The truncated mesh still uploads (holes beat nothing), and the
		// chunk retries at a coarser level next frame.
		profiling.Count("blocks.meshTruncated", 1)
		if b.coarsenAfterTruncation(res.Coord, res.Gen, entry.lod) {
			log.Printf("blocks: chunk %v truncated at %d faces, retrying at LOD %d",
				res.Coord, b.cfg.MaxFacesPerChunk, entry.lod+1)
			chunk.MarkDirty()
		} else {
			log.Printf("blocks: chunk %v truncated at %d faces at max LOD", res.Coord, b.cfg.MaxFacesPerChunk)
		}
	}

	mesh := b.meshes[res.Coord]
	if res.Mesh.IndexCount == 0 {
		// Fully air or fully enclosed: release any previous residency.
		if mesh != nil {
			b.release(ctx, res.Coord, mesh)
		}
		return
	}

	if mesh == nil {
		// Vertex and index pools share slot numbering; one free list covers
		// both.
		slot, err := b.vertexPool.Acquire()
		if err != nil {
			// Pool exhausted: the chunk stays undrawn until slots free up.
			profiling.Count("blocks.poolExhausted", 1)
			chunk.MarkDirty()
			return
		}
		mesh = &chunkMesh{coord: res.Coord, slot: slot}
		b.meshes[res.Coord] = mesh
		id := b.nextID
		b.nextID++
		b.ids[res.Coord] = id
		b.byID[id] = res.Coord
	}
	b.upload(mesh, entry, res.Mesh)

	origin := chunk.Origin()
	ctx.Culler.Upsert(b.ids[res.Coord], cull.ChunkBounds(origin, float32(b.cfg.ChunkSize)))
}

// upload copies the mesh's arena region into the chunk's pool slots,
// rebasing indices from arena space to the slot's position in the pooled
// vertex buffer.
func (b *Blocks) upload(mesh *chunkMesh, entry pendingEntry, result meshing.Result) {
	verts := entry.arena.Vertices(result.FirstVertex, result.VertexCount)
	indices := entry.arena.Indices(result.FirstIndex, result.IndexCount)

	slotVertexBase := uint32(mesh.slot) * uint32(b.cfg.MaxFacesPerChunk*4)
	if cap(b.idxScratch) < len(indices) {
		b.idxScratch = make([]uint32, len(indices))
	}
	rebased := b.idxScratch[:len(indices)]
	for i, idx := range indices {
		rebased[i] = idx - result.FirstVertex + slotVertexBase
	}

	b.vertexPool.Upload(mesh.slot, unsafe.Pointer(&verts[0]), len(verts)*meshing.GPUVertexSize)
	b.indexPool.Upload(mesh.slot, unsafe.Pointer(&rebased[0]), len(rebased)*4)

	slotIndexBase := uint32(mesh.slot) * uint32(b.cfg.MaxFacesPerChunk*6)
	mesh.cmd = meshing.DrawCommand{
		VertexCount:   result.IndexCount,
		InstanceCount: 1,
		FirstVertex:   slotIndexBase,
		FirstInstance: 0,
	}
	mesh.gen = entry.gen
	mesh.lod = entry.lod
}

func (b *Blocks) release(ctx renderer.RenderContext, coord voxel.Coord, mesh *chunkMesh) {
	b.vertexPool.Release(mesh.slot)
	delete(b.meshes, coord)
	if id, ok := b.ids[coord]; ok {
		ctx.Culler.Remove(id)
		delete(b.ids, coord)
		delete(b.byID, id)
	}
}

// Unload drops GPU residency for a chunk removed from the store.
func (b *Blocks) Unload(ctx renderer.RenderContext, coord voxel.Coord) {
	delete(b.pending, coord)
	delete(b.lodFloor, coord)
	if mesh, ok := b.meshes[coord]; ok {
		b.release(ctx, coord, mesh)
	}
}

// visibleCommands collects draw items for meshes visible in the given view
// and batches them into indirect groups. The main view additionally caps
// draws at the runtime render distance; shadow views draw everything in the
// light frustum so distant casters keep their shadows.
func (b *Blocks) visibleCommands(ctx renderer.RenderContext, view cull.ViewID, frustum cull.Frustum) batch.Plan {
	visible := ctx.Culler.Visible(view, frustum)
	maxDist := float32(0)
	if view == cull.ViewMain {
		// Shadow views skip burial refinement: a buried chunk can still
		// cast through a carved neighbor in light space.
		visible = ctx.Culler.RefineOcclusion(visible, burialTester{
			store:     ctx.Store,
			cameraPos: ctx.Camera.Position,
			size:      float32(b.cfg.ChunkSize),
		})
		maxDist = float32(config.GetRenderDistance() * b.cfg.ChunkSize)
	}
	half := float32(b.cfg.ChunkSize) / 2
	items := make([]batch.Item, 0, len(visible))
	for _, id := range visible {
		coord, ok := b.byID[id]
		if !ok {
			continue
		}
		mesh, ok := b.meshes[coord]
		if !ok {
			continue
		}
		if maxDist > 0 {
			center := mgl32.Vec3{
				float32(coord.X*b.cfg.ChunkSize) + half,
				float32(coord.Y*b.cfg.ChunkSize) + half,
				float32(coord.Z*b.cfg.ChunkSize) + half,
			}
			if center.Sub(ctx.Camera.Position).Len() > maxDist {
				continue
			}
		}
		items = append(items, batch.Item{
			Material: 0,
			Pipeline: 0,
			Kind:     batch.KindIndirect,
			Command:  mesh.cmd,
		})
	}
	return batch.Build(items)
}

// drawPlan uploads each group's commands to the indirect buffer and issues
// one multi-draw per group.
func (b *Blocks) drawPlan(plan batch.Plan) {
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, b.indirectID)
	for _, group := range plan.Opaque {
		if cap(b.cmdScratch) < len(group.Commands) {
			b.cmdScratch = make([]graphics.DrawElementsIndirectCommand, len(group.Commands))
		}
		cmds := b.cmdScratch[:0]
		for _, c := range group.Commands {
			ind := graphics.ToIndirect(c)
			// Indices are rebased at upload, so FirstIndex addresses the
			// pooled element buffer directly.
			cmds = append(cmds, ind)
		}
		if len(cmds) == 0 {
			continue
		}
		gl.NamedBufferSubData(b.indirectID, 0, len(cmds)*20, unsafe.Pointer(&cmds[0]))
		gl.MultiDrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, nil, int32(len(cmds)), 0)
		profiling.Count("blocks.drawCalls", 1)
		profiling.Count("blocks.chunksDrawn", int64(len(cmds)))
	}
}

// Render draws all visible chunk meshes with clustered lighting and cascade
// shadows. Light and cluster tables are bound by the renderer before this
// runs.
func (b *Blocks) Render(ctx renderer.RenderContext) {
	defer profiling.Track("blocks.Render")()

	b.mainShader.Use()
	b.mainShader.SetMatrix4("proj", &ctx.JitteredProj[0])
	b.mainShader.SetMatrix4("view", &ctx.View[0])
	b.mainShader.SetVector3("sunDirection", ctx.SunDirection.X(), ctx.SunDirection.Y(), ctx.SunDirection.Z())
	b.mainShader.SetVector3("sunColor", ctx.SunColor.X(), ctx.SunColor.Y(), ctx.SunColor.Z())
	b.mainShader.SetVector3("cameraPos", ctx.Camera.Position.X(), ctx.Camera.Position.Y(), ctx.Camera.Position.Z())
	b.mainShader.SetFloat("nearPlane", ctx.Camera.NearPlane)
	b.mainShader.SetFloat("farPlane", ctx.Camera.FarPlane)

	if len(ctx.Cascades) > 0 {
		mats := make([]float32, 0, len(ctx.Cascades)*16)
		for _, c := range ctx.Cascades {
			mats = append(mats, c.ViewProj[:]...)
		}
		b.mainShader.SetMatrix4v("uCascadeViewProj", int32(len(ctx.Cascades)), &mats[0])
		b.mainShader.SetFloatv("uCascadeSplits", int32(len(ctx.CascadeSplits)), &ctx.CascadeSplits[0])
	}
	b.mainShader.SetFloat("uShadowBias", 0.0015)
	b.mainShader.SetFloat("uPCFRadius", 1.5)
	b.mainShader.SetVector3i("uClusterDims",
		int32(b.cfg.ClusterDimX), int32(b.cfg.ClusterDimY), int32(b.cfg.ClusterDimZ))
	b.mainShader.SetVector2("uScreenSize", float32(b.width), float32(b.height))
	b.mainShader.SetUint("uMaxLightsPerCluster", uint32(b.cfg.MaxLightsPerCluster))

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D_ARRAY, b.atlas.TextureID)
	b.mainShader.SetInt("uAtlas", 0)
	b.mainShader.SetInt("uShadowMaps", 1)

	plan := b.visibleCommands(ctx, cull.ViewMain, ctx.Frustum)
	b.drawPlan(plan)
}

// RenderDepth draws depth-only geometry for one shadow cascade, culled
// against the light frustum independently of the main view.
func (b *Blocks) RenderDepth(ctx renderer.RenderContext, cascade int, lightViewProj mgl32.Mat4) {
	defer profiling.Track("blocks.RenderDepth")()

	frustum := cull.FrustumFromClip(lightViewProj)
	plan := b.visibleCommands(ctx, cull.ViewCascade0+cull.ViewID(cascade), frustum)

	ident := mgl32.Ident4()
	b.depthShader.Use()
	b.depthShader.SetMatrix4("uLightViewProj", &lightViewProj[0])
	b.depthShader.SetMatrix4("uModel", &ident[0])

	gl.BindVertexArray(b.depthVAO)
	gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, b.indirectID)
	for _, group := range plan.Opaque {
		if cap(b.cmdScratch) < len(group.Commands) {
			b.cmdScratch = make([]graphics.DrawElementsIndirectCommand, len(group.Commands))
		}
		cmds := b.cmdScratch[:0]
		for _, c := range group.Commands {
			cmds = append(cmds, graphics.ToIndirect(c))
		}
		if len(cmds) == 0 {
			continue
		}
		gl.NamedBufferSubData(b.indirectID, 0, len(cmds)*20, unsafe.Pointer(&cmds[0]))
		gl.MultiDrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, nil, int32(len(cmds)), 0)
	}
}

// SetViewport records the framebuffer size for cluster index math.
func (b *Blocks) SetViewport(width, height int) {
	b.width, b.height = width, height
}

// ResidentChunks returns how many chunks currently hold GPU meshes.
func (b *Blocks) ResidentChunks() int { return len(b.meshes) }

// Dispose releases GPU resources.
func (b *Blocks) Dispose() {
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
	}
	if b.depthVAO != 0 {
		gl.DeleteVertexArrays(1, &b.depthVAO)
	}
	if b.vertexPool != nil {
		b.vertexPool.Delete()
	}
	if b.indexPool != nil {
		b.indexPool.Delete()
	}
	if b.indirectID != 0 {
		gl.DeleteBuffers(1, &b.indirectID)
	}
	if b.atlas != nil {
		b.atlas.Delete()
	}
	if b.lodGPU != nil {
		b.lodGPU.Dispose()
	}
	if b.gpu != nil {
		b.gpu.Dispose()
	}
}
