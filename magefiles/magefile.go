//go:build mage

// Package main provides build targets for nitrate using Mage.
//
// Usage:
//
//	mage build          Compile the nitrate binary to bin/
//	mage test           Run all tests
//	mage testRace       Run all tests with the race detector
//	mage lint           Run go vet and golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install nitrate to GOPATH/bin
//	mage stats          Print table, permission and XML-RPC method counts and Go lines per package
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/mesh-intelligence/nitrate/internal/rpc"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

const (
	binaryName = "nitrate"
	binaryDir  = "bin"
	cmdDir     = "./cmd/nitrate"
	versionVar = "github.com/mesh-intelligence/nitrate/internal/cli.Version"
)

// version describes the checked-out commit, or "dev" outside a git tree.
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return v
}

// Build compiles the nitrate binary to bin/ with the version stamped in.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X %s=%s", versionVar, version())
	return sh.RunV("go", "build", "-v", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestRace runs all tests with the race detector.
func TestRace() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Lint runs go vet, then golangci-lint.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints the size of the API surface and Go lines per package.
func Stats() error {
	methods := rpc.NewServer(nil, rpc.Options{}).Methods()
	perNamespace := map[string]int{}
	for _, m := range methods {
		ns, _, _ := strings.Cut(m, ".")
		perNamespace[ns]++
	}
	fmt.Printf("Tables:            %d\n", len(types.StandardTableNames))
	fmt.Printf("Permissions:       %d\n", len(types.AllPermissions))
	fmt.Printf("XML-RPC methods:   %d\n", len(methods))
	for _, ns := range slices.Sorted(maps.Keys(perNamespace)) {
		fmt.Printf("  %-16s %d\n", ns, perNamespace[ns])
	}

	lines, err := packageLines()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nPACKAGE\tCODE\tTESTS")
	var code, tests int
	for _, pkg := range slices.Sorted(maps.Keys(lines)) {
		c := lines[pkg]
		fmt.Fprintf(w, "%s\t%d\t%d\n", pkg, c.code, c.tests)
		code += c.code
		tests += c.tests
	}
	fmt.Fprintf(w, "total\t%d\t%d\n", code, tests)
	return w.Flush()
}

type lineCount struct{ code, tests int }

// packageLines counts Go lines per package directory under cmd, internal
// and pkg.
func packageLines() (map[string]lineCount, error) {
	counts := map[string]lineCount{}
	for _, root := range []string{"cmd", "internal", "pkg"} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
				return err
			}
			n, err := countLines(path)
			if err != nil {
				return err
			}
			c := counts[filepath.Dir(path)]
			if strings.HasSuffix(path, "_test.go") {
				c.tests += n
			} else {
				c.code += n
			}
			counts[filepath.Dir(path)] = c
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
