// Package archinfo tags the guest and host platform a Context runs on.
package archinfo

import (
	"fmt"
	"strings"
)

// GuestArch is the architecture of the translated program. b86arm only
// ever translates 32-bit x86 guests, but the type exists so context
// creation and execmem's W+X strategy can be unit-tested against a
// stub guest without dragging in elfloader.
type GuestArch int

const (
	GuestUnknown GuestArch = iota
	GuestX86
)

func (a GuestArch) String() string {
	switch a {
	case GuestX86:
		return "i386"
	default:
		return "unknown"
	}
}

// HostArch is the architecture translated code is emitted for.
type HostArch int

const (
	HostUnknown HostArch = iota
	HostARM
	HostARM64
)

func (a HostArch) String() string {
	switch a {
	case HostARM:
		return "arm"
	case HostARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ParseHostArch parses a GOARCH-like string, mirroring the teacher's
// ParseArch helper.
func ParseHostArch(s string) (HostArch, error) {
	switch strings.ToLower(s) {
	case "arm":
		return HostARM, nil
	case "arm64", "aarch64":
		return HostARM64, nil
	default:
		return HostUnknown, fmt.Errorf("unsupported host architecture: %s (supported: arm, arm64)", s)
	}
}

// Platform ties a guest and a host architecture together.
type Platform struct {
	Guest GuestArch
	Host  HostArch
}

func (p Platform) String() string {
	return fmt.Sprintf("%s-on-%s", p.Guest, p.Host)
}

// WXSplit reports whether the host requires separate writable and
// executable mappings instead of a single W+X mapping (design note:
// "On hosts that disallow W+X, split into W-mapped staging and
// X-mapped live halves"). b86arm's only supported hosts allow W+X, so
// this is always false. execmem stores the platform but does not call
// WXSplit: every slab and standalone mapping is a single
// read+write+execute mapping.
func (p Platform) WXSplit() bool {
	return false
}
