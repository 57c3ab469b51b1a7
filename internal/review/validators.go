package review

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alanmeadows/autodev/internal/config"
)

// DefaultValidators returns the built-in checkers for validation tags.
// Tags without a checker here (basic-functionality, security-scan,
// performance-test) pass vacuously until a project wires its own.
func DefaultValidators(cfg config.Config) map[string]Validator {
	return map[string]Validator{
		"syntax-check":     gofmtCheck,
		"formatting-check": gofmtCheck,
		"test-execution":   testCommandCheck(cfg.Workflows.TestCommand),
		"markdown-syntax":  markdownSyntaxCheck,
		"link-check":       relativeLinkCheck,
	}
}

// gofmtCheck runs gofmt -l over the modified Go files; unparseable or
// unformatted files fail. Non-Go files pass.
func gofmtCheck(ctx context.Context, dir string, files []string) (bool, error) {
	var goFiles []string
	for _, f := range files {
		if strings.HasSuffix(f, ".go") {
			goFiles = append(goFiles, f)
		}
	}
	if len(goFiles) == 0 {
		return true, nil
	}
	args := append([]string{"-l", "--"}, goFiles...)
	cmd := exec.CommandContext(ctx, "gofmt", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "", nil
}

// testCommandCheck runs the configured test command in the worktree. No
// configured command passes vacuously.
func testCommandCheck(command string) Validator {
	return func(ctx context.Context, dir string, _ []string) (bool, error) {
		if command == "" {
			slog.Warn("no test command configured, skipping test execution check")
			return true, nil
		}
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
}

// markdownSyntaxCheck verifies code fences are balanced in modified
// markdown files.
func markdownSyntaxCheck(_ context.Context, dir string, files []string) (bool, error) {
	for _, f := range files {
		if !strings.HasSuffix(f, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, err
		}
		fences := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				fences++
			}
		}
		if fences%2 != 0 {
			return false, nil
		}
	}
	return true, nil
}

var mdLinkRe = regexp.MustCompile(`\]\(([^)#]+)(?:#[^)]*)?\)`)

// relativeLinkCheck verifies relative link targets in modified markdown
// files exist on disk. External URLs are not fetched.
func relativeLinkCheck(_ context.Context, dir string, files []string) (bool, error) {
	for _, f := range files {
		if !strings.HasSuffix(f, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, err
		}
		for _, m := range mdLinkRe.FindAllStringSubmatch(string(data), -1) {
			target := strings.TrimSpace(m[1])
			if target == "" || strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
				continue
			}
			resolved := filepath.Join(dir, filepath.Dir(f), target)
			if _, err := os.Stat(resolved); err != nil {
				return false, nil
			}
		}
	}
	return true, nil
}
