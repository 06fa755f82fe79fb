// Package config reads the tunables a running box86-style translator
// picks up from its environment, the way box86 itself reads BOX86_*
// variables, using github.com/xyproto/env/v2 instead of hand-rolled
// os.Getenv parsing (teacher go.mod dependency).
package config

import (
	"github.com/xyproto/env/v2"
)

const (
	envSlabSize   = "B86ARM_SLAB_SIZE"
	envTraceLevel = "B86ARM_TRACE"
	envNoDynarec  = "B86ARM_NODYNAREC"

	// DefaultSlabSize matches box86's MMAPSIZE (4 MiB slabs).
	DefaultSlabSize = 4 * 1024 * 1024
)

// Config holds the environment-derived knobs consulted by execmem,
// translate and context at startup.
type Config struct {
	SlabSize   int
	TraceLevel int
	NoDynarec  bool
}

// FromEnv reads Config from the process environment, falling back to
// box86-equivalent defaults when a variable is unset.
func FromEnv() Config {
	return Config{
		SlabSize:   env.Int(envSlabSize, DefaultSlabSize),
		TraceLevel: env.Int(envTraceLevel, 0),
		NoDynarec:  env.Bool(envNoDynarec),
	}
}
