// Pulse CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/pulse/internal/dagger"
)

// Pulse is the main module for the Pulse CI/CD pipeline
type Pulse struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Pulse CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".pulse", "build", "tmp"]
	source *dagger.Directory,
) *Pulse {
	return &Pulse{
		Source: source,
	}
}

// goContainer returns an Alpine Go container with the project source mounted.
// pulse is pure Go, so CGO stays off.
func (p *Pulse) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", p.Source)
}

// Test runs the pulse unit tests via "go test"
func (p *Pulse) Test(ctx context.Context) (string, error) {
	return p.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
