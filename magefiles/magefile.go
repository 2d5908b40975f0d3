//go:build mage

// Package main contains Mage build targets for m1 developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "m1"
	cmdPkg  = "./cmd/m1"
)

// sampleConfig is written by Init when no m1.yaml exists.
const sampleConfig = `# m1 configuration. Environment variables override these (M1_BASE_URL,
# M1_RETRY_TOTAL, ...). Keep the API token in .secrets/m1-api-token.
base_url: https://app.molecule.one
api_version: api/v2
poll_interval: 5s
http:
  timeout: 60s
  rate_limit: 0
retry:
  total: 5
  connect: 5
  backoff_factor: 0.3
  max_backoff: 2m
log:
  level: info
  format: console
`

// Init creates the .secrets directory and a sample m1.yaml.
func Init() error {
	if err := os.MkdirAll(".secrets", 0o700); err != nil {
		return fmt.Errorf("creating .secrets: %w", err)
	}
	fmt.Println("   .secrets/ (put your API token in .secrets/m1-api-token)")

	if _, err := os.Stat("m1.yaml"); err == nil {
		fmt.Println("   m1.yaml already exists, left untouched")
		return nil
	}
	if err := os.WriteFile("m1.yaml", []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing m1.yaml: %w", err)
	}
	fmt.Println("   m1.yaml")
	return nil
}

// Build compiles the CLI binary into bin/, stamping the version from
// $M1_VERSION when set.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	args := []string{"build", "-o", out}
	if v := os.Getenv("M1_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X main.version="+v)
	}
	args = append(args, cmdPkg)
	if err := sh.RunV("go", args...); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs go vet over every package.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs Lint and Test, then Build.
func Check() error {
	mg.SerialDeps(Lint, Test)
	return Build()
}

// Stats prints non-blank Go lines per package, split into production and
// test code.
func Stats() error {
	type counts struct{ prod, test int }
	byPkg := map[string]*counts{}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != "." && (name == "bin" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := nonBlankLines(path)
		if err != nil {
			return err
		}
		pkg := filepath.Dir(path)
		c, ok := byPkg[pkg]
		if !ok {
			c = &counts{}
			byPkg[pkg] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	pkgs := make([]string, 0, len(byPkg))
	for pkg := range byPkg {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var total counts
	fmt.Printf("%-24s  %8s  %8s\n", "Package", "Lines", "Tests")
	for _, pkg := range pkgs {
		c := byPkg[pkg]
		fmt.Printf("%-24s  %8d  %8d\n", pkg, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-24s  %8d  %8d\n", "total", total.prod, total.test)
	return nil
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
