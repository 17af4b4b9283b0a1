// Package flowgraph is the public façade of devbrain. It wires a Config into
// a checkpoint backend, the router pipeline and a streaming executor, and
// re-exports the types callers need so they never import internal packages.
package flowgraph
