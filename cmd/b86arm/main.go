package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/b86arm/internal/archinfo"
	"github.com/xyproto/b86arm/internal/config"
	"github.com/xyproto/b86arm/internal/context"
	"github.com/xyproto/b86arm/internal/dlog"
)

const versionString = "b86arm 0.1.0"

func main() {
	var (
		traceFlag    = flag.Int("trace", -1, "dynarec trace level (0=none, 1=info, 2=debug); overrides B86ARM_TRACE")
		slabFlag     = flag.Int("slab-size", 0, "executable memory slab size in bytes; overrides B86ARM_SLAB_SIZE")
		noDynarec    = flag.Bool("no-dynarec", false, "disable the dynamic recompiler (interpret only); overrides B86ARM_NODYNAREC")
		versionFlag  = flag.Bool("version", false, "print version information and exit")
		versionShort = flag.Bool("V", false, "print version information and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *versionFlag || *versionShort {
		fmt.Println(versionString)
		return
	}

	if err := run(flag.Args(), *traceFlag, *slabFlag, *noDynarec); err != nil {
		fmt.Fprintf(os.Stderr, "b86arm: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: b86arm [flags] <x86-elf-binary> [guest-args...]\n\n")
	flag.PrintDefaults()
}

func run(args []string, traceFlag, slabFlag int, noDynarec bool) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("no guest binary specified")
	}

	cfg := config.FromEnv()
	if traceFlag >= 0 {
		cfg.TraceLevel = traceFlag
	}
	if slabFlag > 0 {
		cfg.SlabSize = slabFlag
	}
	if noDynarec {
		cfg.NoDynarec = true
	}

	switch {
	case cfg.TraceLevel >= 2:
		dlog.SetLevel(dlog.LevelDebug)
	case cfg.TraceLevel >= 1:
		dlog.SetLevel(dlog.LevelInfo)
	}

	platform := archinfo.Platform{Guest: archinfo.GuestX86, Host: archinfo.HostARM64}
	ctx := context.New(platform, cfg.SlabSize, context.WithArgv(args))
	defer ctx.Free()

	dlog.Info("b86arm: loading %s (slab=%d dynarec=%v)\n", args[0], cfg.SlabSize, !cfg.NoDynarec)

	if cfg.NoDynarec {
		return fmt.Errorf("interpret-only mode is not implemented yet")
	}
	return fmt.Errorf("guest process execution is not implemented yet: %s", args[0])
}
