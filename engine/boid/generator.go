package boid

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/go-gl/mathgl/mgl32"
)

// SpawnPolicy selects where initial positions are drawn from.
type SpawnPolicy int

const (
	// SpawnPolicyDisk places boids uniformly by area inside an annulus centred on the origin.
	SpawnPolicyDisk SpawnPolicy = iota

	// SpawnPolicySquare places boids uniformly inside the full simulation square [-1,1]x[-1,1].
	SpawnPolicySquare
)

const (
	DefaultInnerRadius float32 = 0.1
	DefaultOuterRadius float32 = 0.7
	DefaultMinSpeed    float32 = 0.005
	DefaultMaxSpeed    float32 = 0.015
	DefaultChunkSize           = 4096
)

func (p SpawnPolicy) String() string {
	switch p {
	case SpawnPolicyDisk:
		return "disk"
	case SpawnPolicySquare:
		return "square"
	default:
		return fmt.Sprintf("SpawnPolicy(%d)", int(p))
	}
}

// ParseSpawnPolicy maps "disk" or "square" (case-insensitive) to a SpawnPolicy.
//
// Parameters:
//   - s: the policy name
//
// Returns:
//   - SpawnPolicy: the parsed policy
//   - error: an error if the name is unknown
func ParseSpawnPolicy(s string) (SpawnPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disk", "":
		return SpawnPolicyDisk, nil
	case "square":
		return SpawnPolicySquare, nil
	default:
		return 0, fmt.Errorf("unknown spawn policy %q", s)
	}
}

// generator is the implementation of the Generator interface.
type generator struct {
	seed        uint64
	policy      SpawnPolicy
	innerRadius float32
	outerRadius float32
	minSpeed    float32
	maxSpeed    float32

	// workers bounds the pool used to fill chunks concurrently. 1 fills on the calling goroutine.
	workers   int
	chunkSize int
}

// Generator produces the initial boid population.
//
// Output is a pure function of the seed and the configured policy: the population is split into
// fixed-size chunks and each chunk draws from its own random stream, so the worker count and task
// scheduling never change the result.
type Generator interface {
	// Generate creates count boids.
	// Every heading is uniform in [0, 2π), every speed is uniform in the speed range, and every
	// position lies inside the bound of the active SpawnPolicy.
	//
	// Parameters:
	//   - count: the number of boids to create
	//
	// Returns:
	//   - []Boid: exactly count boids, an empty non-nil slice when count is 0
	Generate(count uint32) []Boid

	// Policy returns the active spawn policy.
	//
	// Returns:
	//   - SpawnPolicy: SpawnPolicyDisk or SpawnPolicySquare
	Policy() SpawnPolicy

	// Seed returns the seed the random streams are derived from.
	//
	// Returns:
	//   - uint64: the seed
	Seed() uint64

	// DiskRadii returns the annulus used by SpawnPolicyDisk.
	//
	// Returns:
	//   - inner: the inner radius
	//   - outer: the outer radius
	DiskRadii() (inner, outer float32)

	// SpeedRange returns the inclusive bounds of the initial speed.
	//
	// Returns:
	//   - lo: the minimum speed
	//   - hi: the maximum speed
	SpeedRange() (lo, hi float32)
}

var _ Generator = &generator{}

// NewGenerator creates a Generator. Without options it uses the disk policy with radii 0.1 and 0.7,
// speeds in [0.005, 0.015] and a time-derived seed.
//
// Parameters:
//   - options: functional options to configure the generator
//
// Returns:
//   - Generator: the configured generator
func NewGenerator(options ...GeneratorBuilderOption) Generator {
	g := &generator{
		seed:        uint64(time.Now().UnixNano()),
		policy:      SpawnPolicyDisk,
		innerRadius: DefaultInnerRadius,
		outerRadius: DefaultOuterRadius,
		minSpeed:    DefaultMinSpeed,
		maxSpeed:    DefaultMaxSpeed,
		workers:     1,
		chunkSize:   DefaultChunkSize,
	}
	for _, opt := range options {
		opt(g)
	}
	g.normalize()
	return g
}

func (g *generator) Policy() SpawnPolicy {
	return g.policy
}

func (g *generator) Seed() uint64 {
	return g.seed
}

func (g *generator) DiskRadii() (float32, float32) {
	return g.innerRadius, g.outerRadius
}

func (g *generator) SpeedRange() (float32, float32) {
	return g.minSpeed, g.maxSpeed
}

func (g *generator) Generate(count uint32) []Boid {
	boids := make([]Boid, count)
	if count == 0 {
		return boids
	}

	chunks := int(common.CeilDiv(count, uint32(g.chunkSize)))
	if g.workers <= 1 || chunks == 1 {
		for c := range chunks {
			g.fillChunk(boids, c)
		}
		return boids
	}

	pool := worker.NewDynamicWorkerPool(min(g.workers, chunks), chunks, time.Second)
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(chunks)
	for c := range chunks {
		pool.SubmitTask(worker.Task{
			ID: c,
			Do: func() (any, error) {
				defer wg.Done()
				g.fillChunk(boids, c)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return boids
}

// fillChunk writes the boids of chunk c. Chunks never overlap so concurrent calls are safe.
func (g *generator) fillChunk(boids []Boid, c int) {
	start := c * g.chunkSize
	end := min(start+g.chunkSize, len(boids))
	rng := rand.New(rand.NewPCG(g.seed, uint64(c)))

	for i := start; i < end; i++ {
		boids[i] = Boid{
			Position: g.position(rng),
			Velocity: g.velocity(rng),
		}
	}
}

func (g *generator) velocity(rng *rand.Rand) mgl32.Vec2 {
	heading := rng.Float32() * 2 * math.Pi
	speed := g.minSpeed + (g.maxSpeed-g.minSpeed)*rng.Float32()
	return mgl32.Rotate2D(heading).Mul2x1(mgl32.Vec2{speed, 0})
}

func (g *generator) position(rng *rand.Rand) mgl32.Vec2 {
	switch g.policy {
	case SpawnPolicySquare:
		return mgl32.Vec2{rng.Float32()*2 - 1, rng.Float32()*2 - 1}
	default:
		// Inverse CDF of the annulus area so density is uniform rather than clustered near the centre.
		inner2 := g.innerRadius * g.innerRadius
		outer2 := g.outerRadius * g.outerRadius
		r := float32(math.Sqrt(float64(inner2 + (outer2-inner2)*rng.Float32())))
		angle := rng.Float32() * 2 * math.Pi
		return mgl32.Rotate2D(angle).Mul2x1(mgl32.Vec2{r, 0})
	}
}

// normalize repairs reversed or negative ranges instead of rejecting them.
func (g *generator) normalize() {
	g.innerRadius = max(g.innerRadius, 0)
	g.outerRadius = max(g.outerRadius, 0)
	if g.innerRadius > g.outerRadius {
		g.innerRadius, g.outerRadius = g.outerRadius, g.innerRadius
	}
	g.minSpeed = max(g.minSpeed, 0)
	g.maxSpeed = max(g.maxSpeed, 0)
	if g.minSpeed > g.maxSpeed {
		g.minSpeed, g.maxSpeed = g.maxSpeed, g.minSpeed
	}
	if g.chunkSize <= 0 {
		g.chunkSize = DefaultChunkSize
	}
	if g.workers <= 0 {
		g.workers = 1
	}
}
