package kernel

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandBuilder builds kernels with an external command. The source is
// written to its stdin and its stdout becomes the handle output.
type CommandBuilder struct {
	Path string
	Args []string // placed before the generated arguments
	Dir  string
}

// args lists the command arguments for one build: the fixed ones, each
// define as -DNAME=VALUE, each flag as --key=value, then --entry=name.
func (c *CommandBuilder) args(entry string, opts Options) []string {
	args := append([]string(nil), c.Args...)
	for _, k := range sortedKeys(opts.Defines) {
		args = append(args, "-D"+k+"="+opts.Defines[k])
	}
	for _, k := range sortedKeys(opts.Flags) {
		args = append(args, "--"+k+"="+opts.Flags[k])
	}
	return append(args, "--entry="+entry)
}

func (c *CommandBuilder) Build(ctx context.Context, source, entry string, opts Options) (*Handle, error) {
	if c == nil || c.Path == "" {
		return nil, ErrNoBuilder
	}

	cmd := exec.CommandContext(ctx, c.Path, c.args(entry, opts)...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("build of %s failed: %w", entry, err)
		}
		return nil, fmt.Errorf("build of %s failed: %w: %s", entry, err, msg)
	}
	return &Handle{Entry: entry, Output: stdout.Bytes()}, nil
}
