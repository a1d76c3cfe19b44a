package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagger/pulse/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (p *Pulse) CheckGoModTidy(ctx context.Context) (string, error) {
	return p.checkUnchanged(ctx, []string{"go", "mod", "tidy"}, "go.mod", "go.sum")
}

// CheckFormat fails when gofmt would rewrite any Go file.
//
// +check
func (p *Pulse) CheckFormat(ctx context.Context) (string, error) {
	out, err := p.goContainer().
		WithExec([]string{"gofmt", "-l", "cli", "cmd", "mock", "pkg"}).
		Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("running gofmt: %w", err)
	}
	if files := strings.TrimSpace(out); files != "" {
		return "", fmt.Errorf("files need gofmt:\n%s", files)
	}
	return "gofmt: clean", nil
}

// checkUnchanged runs cmd and fails with the diff if it modified any of files.
func (p *Pulse) checkUnchanged(ctx context.Context, cmd []string, files ...string) (string, error) {
	ctr := p.goContainer()
	var diffs []string
	for _, f := range files {
		ctr = ctr.WithExec([]string{"cp", f, f + ".orig"})
		diffs = append(diffs, fmt.Sprintf("diff -u %s.orig %s", f, f))
	}

	out, err := ctr.
		WithExec(cmd).
		WithExec([]string{"sh", "-c", strings.Join(diffs, " && ")}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	if errors.As(err, &execErr) {
		return "", fmt.Errorf("%s changed %s; run it and commit the result\n\n%s",
			strings.Join(cmd, " "), strings.Join(files, ", "), execErr.Stdout)
	}
	if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return fmt.Sprintf("%s: no changes %s", strings.Join(cmd, " "), out), nil
}
