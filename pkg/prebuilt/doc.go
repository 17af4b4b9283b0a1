// Package prebuilt provides ready-made pipelines: a compiled graph plus the
// node processor that runs it. Builders register under a name so callers
// can pick a pipeline from configuration.
package prebuilt
