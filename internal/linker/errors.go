package linker

import "errors"

var (
	errMisaligned = errors.New("linker: patch branch offset not word-aligned")
	errOutOfRange = errors.New("linker: patch branch offset exceeds ±128MB range")
)
