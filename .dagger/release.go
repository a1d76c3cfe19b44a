package main

import (
	"context"
	"fmt"
	"strings"

	"dagger/pulse/internal/dagger"
)

// Release builds versioned binaries and packs each target into
// pulse_<version>_<goos>_<goarch>.tar.gz alongside a checksums.txt.
// Export the result with "dagger call release ... export --path dist".
func (p *Pulse) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,
) *dagger.Directory {
	binaries := p.BuildRelease(ctx, version, commit)

	packer := dag.Container().
		From("alpine:3.21").
		WithDirectory("/build", binaries).
		WithWorkdir("/dist")

	for _, t := range targets {
		packer = packer.WithExec([]string{
			"tar", "-czf", archiveName(version, t), "-C", "/build/" + t.dir(), ".",
		})
	}

	return packer.
		WithExec([]string{"sh", "-c", "sha256sum *.tar.gz > checksums.txt"}).
		Directory("/dist")
}

// archiveName drops a leading "v" so archives read pulse_1.2.3_linux_amd64.
func archiveName(version string, t target) string {
	return fmt.Sprintf("pulse_%s_%s_%s.tar.gz", strings.TrimPrefix(version, "v"), t.goos, t.goarch)
}
