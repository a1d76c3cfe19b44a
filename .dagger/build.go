package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/pulse/internal/dagger"
)

// target is one GOOS/GOARCH pair pulse is released for.
type target struct {
	goos   string
	goarch string
}

func (t target) dir() string {
	return t.goos + "/" + t.goarch + "/"
}

var targets = []target{
	{"linux", "amd64"},
	{"linux", "arm64"},
	{"darwin", "amd64"},
	{"darwin", "arm64"},
	{"windows", "amd64"},
	{"windows", "arm64"},
}

// Build returns a directory of pulse binaries laid out as <goos>/<goarch>/
func (p *Pulse) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()
	golang := p.goContainer()

	for _, t := range targets {
		build := golang.
			WithEnvVariable("GOOS", t.goos).
			WithEnvVariable("GOARCH", t.goarch).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", t.dir(), "./cli/pulse"})

		outputs = outputs.WithDirectory(t.dir(), build.Directory(t.dir()))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (p *Pulse) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/pulse/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/pulse/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/pulse/pkg/utils.Buildtime=%s'", buildtime),
	}

	return p.Build(ctx, strings.Join(ldflags, " "))
}
