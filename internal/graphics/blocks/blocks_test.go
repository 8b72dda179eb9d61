package blocks

import (
	"testing"

	"voxren/internal/config"
	"voxren/internal/cull"
	"voxren/internal/graphics"
	renderer "voxren/internal/graphics/renderer"
	"voxren/internal/meshing"
	"voxren/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

func testBlocks(t *testing.T, cfg *config.RenderConfig) *Blocks {
	t.Helper()
	workers := meshing.NewWorkerPool(1, 16)
	t.Cleanup(workers.Shutdown)
	return NewBlocks(cfg, workers)
}

func TestTruncationRaisesLODFloor(t *testing.T) {
	cfg := config.Default()
	b := testBlocks(t, &cfg)
	coord := voxel.Coord{X: 1}

	if !b.coarsenAfterTruncation(coord, 7, 0) {
		t.Fatalf("expected a coarser retry below the max level")
	}
	if got := b.applyLODFloor(coord, 7, 0); got != 1 {
		t.Fatalf("fine selection not clamped to floor: got %d, want 1", got)
	}
	if got := b.applyLODFloor(coord, 7, 3); got != 3 {
		t.Fatalf("coarser selection should pass through, got %d", got)
	}

	// New content invalidates the floor.
	if got := b.applyLODFloor(coord, 8, 0); got != 0 {
		t.Fatalf("stale floor applied after generation change: got %d", got)
	}
	if _, ok := b.lodFloor[coord]; ok {
		t.Fatalf("stale floor entry not removed")
	}

	// At the max level there is nothing coarser to retry at.
	if b.coarsenAfterTruncation(coord, 9, cfg.LODMaxLevel) {
		t.Fatalf("retry offered at max LOD level")
	}
}

func TestScheduleRemeshHonorsTruncationFloor(t *testing.T) {
	cfg := config.Default()
	b := testBlocks(t, &cfg)
	store := voxel.NewStore(cfg.ChunkSize)
	chunk := store.Chunk(voxel.Coord{}, true)
	chunk.SetType(0, 0, 0, voxel.TypeStone)

	b.lodFloor[chunk.Coord()] = lodFloorEntry{gen: chunk.Generation(), level: 3}

	ctx := renderer.RenderContext{
		Camera: graphics.NewCamera(1280, 720),
		Store:  store,
		Culler: cull.NewCuller(float32(cfg.ChunkSize)),
	}
	b.ScheduleRemesh(ctx, 8)

	entry, ok := b.pending[chunk.Coord()]
	if !ok {
		t.Fatalf("dirty chunk not scheduled")
	}
	// The camera sits on the chunk, so distance alone selects level 0.
	if entry.lod != 3 {
		t.Fatalf("scheduled at level %d, want floor level 3", entry.lod)
	}
}

func TestRenderDistanceLimitsMainView(t *testing.T) {
	old := config.GetRenderDistance()
	defer config.SetRenderDistance(old)
	config.SetRenderDistance(25)

	cfg := config.Default()
	b := testBlocks(t, &cfg)
	store := voxel.NewStore(cfg.ChunkSize)
	cam := graphics.NewCamera(1280, 720)
	culler := cull.NewCuller(float32(cfg.ChunkSize))
	ctx := renderer.RenderContext{Camera: cam, Store: store, Culler: culler}

	// Camera at the origin facing -Z; 25 chunks of 16 is a 400 unit cap.
	near := voxel.Coord{X: 0, Y: 0, Z: -2}
	far := voxel.Coord{X: 0, Y: 0, Z: -60}
	for i, coord := range []voxel.Coord{near, far} {
		id := cull.ObjectID(i + 1)
		b.ids[coord] = id
		b.byID[id] = coord
		b.meshes[coord] = &chunkMesh{coord: coord, slot: int32(i)}
		origin := mgl32.Vec3{
			float32(coord.X * cfg.ChunkSize),
			float32(coord.Y * cfg.ChunkSize),
			float32(coord.Z * cfg.ChunkSize),
		}
		culler.Upsert(id, cull.ChunkBounds(origin, float32(cfg.ChunkSize)))
	}

	culler.BeginFrame()
	frustum := cull.FrustumFromClip(cam.GetViewProjectionMatrix())

	count := func(view cull.ViewID) int {
		plan := b.visibleCommands(ctx, view, frustum)
		n := 0
		for _, g := range plan.Opaque {
			n += len(g.Commands)
		}
		return n
	}

	if got := count(cull.ViewMain); got != 1 {
		t.Fatalf("main view drew %d chunks, want 1 inside the render distance", got)
	}
	// Shadow views keep distant casters.
	if got := count(cull.ViewCascade0); got != 2 {
		t.Fatalf("shadow view drew %d chunks, want 2", got)
	}
}
