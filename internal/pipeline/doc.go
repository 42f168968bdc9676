// Package pipeline orchestrates validation runs as a dependency-ordered
// stage graph. The Runner executes stages topologically with failure skip
// propagation, the MatrixExecutor fans a stage out across runtime variants
// with bounded concurrency, and the Scheduler enforces one run per branch
// with newer submissions superseding in-flight ones.
package pipeline
