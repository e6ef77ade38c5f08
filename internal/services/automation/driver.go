package automation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"meetwatch/internal/services"
)

// ClickResult reports whether a click found its target.
type ClickResult int

const (
	Clicked ClickResult = iota
	NotFound
)

func (r ClickResult) String() string {
	if r == Clicked {
		return "clicked"
	}
	return "not_found"
}

// Element is one entry of the accessibility tree listing.
type Element struct {
	Role string
	Name string
}

// Driver is the accessibility automation surface the meeting controller uses.
type Driver interface {
	Click(ctx context.Context, name string) (ClickResult, error)
	List(ctx context.Context) ([]Element, error)
	Type(ctx context.Context, text string) error
	Key(ctx context.Context, combo string) error
	Navigate(ctx context.Context, url string) error
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLI implements Driver by shelling out to an automation command.
type CLI struct {
	command string
	run     Runner
}

// NewCLI creates a driver for the given automation command.
func NewCLI(command string) *CLI {
	return &CLI{command: command, run: execRunner}
}

// WithRunner sets a custom command runner (for testing).
func (c *CLI) WithRunner(runner Runner) *CLI {
	if runner != nil {
		c.run = runner
	}
	return c
}

// Command returns the configured automation executable.
func (c *CLI) Command() string {
	return c.command
}

func (c *CLI) Click(ctx context.Context, name string) (ClickResult, error) {
	out, err := c.run(ctx, c.command, "click", name)
	if err == nil {
		return Clicked, nil
	}
	if exitCode(err) == 1 {
		return NotFound, nil
	}
	return NotFound, commandError("click", out, err)
}

func (c *CLI) List(ctx context.Context) ([]Element, error) {
	out, err := c.run(ctx, c.command, "list")
	if err != nil {
		return nil, commandError("list", out, err)
	}
	return ParseElements(out), nil
}

func (c *CLI) Type(ctx context.Context, text string) error {
	if out, err := c.run(ctx, c.command, "type", text); err != nil {
		return commandError("type", out, err)
	}
	return nil
}

func (c *CLI) Key(ctx context.Context, combo string) error {
	if out, err := c.run(ctx, c.command, "key", combo); err != nil {
		return commandError("key", out, err)
	}
	return nil
}

func (c *CLI) Navigate(ctx context.Context, url string) error {
	if out, err := c.run(ctx, c.command, "navigate", url); err != nil {
		return commandError("navigate", out, err)
	}
	return nil
}

// ParseElements decodes "[role] name" lines. Lines without a role prefix are
// kept with an empty role.
func ParseElements(out []byte) []Element {
	var elements []Element
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var el Element
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end > 0 {
				el.Role = strings.TrimSpace(line[1:end])
				line = strings.TrimSpace(line[end+1:])
			}
		}
		el.Name = line
		if el.Name == "" {
			continue
		}
		elements = append(elements, el)
	}
	return elements
}

func commandError(verb string, out []byte, err error) error {
	detail := strings.TrimSpace(string(out))
	if detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	return services.Wrap(services.ErrAutomationUnavailable, "automation", verb, "", err)
}

func exitCode(err error) int {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return -1
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
