package boid

// GeneratorBuilderOption is a functional option for configuring a Generator via NewGenerator.
type GeneratorBuilderOption func(*generator)

// WithSeed fixes the seed so repeated runs produce the same population.
//
// Parameters:
//   - seed: the seed for the per-chunk random streams
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithSeed(seed uint64) GeneratorBuilderOption {
	return func(g *generator) {
		g.seed = seed
	}
}

// WithSpawnPolicy selects the spatial distribution of initial positions.
//
// Parameters:
//   - policy: SpawnPolicyDisk or SpawnPolicySquare
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithSpawnPolicy(policy SpawnPolicy) GeneratorBuilderOption {
	return func(g *generator) {
		g.policy = policy
	}
}

// WithDiskRadii sets the annulus used by SpawnPolicyDisk. An inner radius of 0 gives a full disk.
//
// Parameters:
//   - inner: the inner radius
//   - outer: the outer radius
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithDiskRadii(inner, outer float32) GeneratorBuilderOption {
	return func(g *generator) {
		g.innerRadius = inner
		g.outerRadius = outer
	}
}

// WithSpeedRange sets the bounds of the initial speed in units per frame.
//
// Parameters:
//   - lo: the minimum speed
//   - hi: the maximum speed
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithSpeedRange(lo, hi float32) GeneratorBuilderOption {
	return func(g *generator) {
		g.minSpeed = lo
		g.maxSpeed = hi
	}
}

// WithWorkers sets how many pool workers fill chunks concurrently.
//
// Parameters:
//   - workers: the maximum number of workers, values below 2 generate on the calling goroutine
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithWorkers(workers int) GeneratorBuilderOption {
	return func(g *generator) {
		g.workers = workers
	}
}

// WithChunkSize sets how many boids each random stream produces.
// Changing it changes the population generated for a given seed.
//
// Parameters:
//   - size: boids per chunk
//
// Returns:
//   - GeneratorBuilderOption: option function to apply
func WithChunkSize(size int) GeneratorBuilderOption {
	return func(g *generator) {
		g.chunkSize = size
	}
}
