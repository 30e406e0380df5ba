package workerstub

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/nexusfab/fabric/internal/util"
)

// allowedCommands mirrors the source executor's command whitelist: only
// these may run, and never through a shell, so no argument can inject
// additional commands.
var allowedCommands = map[string]bool{
	"echo": true, "ls": true, "pwd": true, "date": true, "cat": true,
	"head": true, "tail": true, "wc": true, "grep": true, "find": true,
	"git": true, "make": true,
}

// NewExecutor stubs the executor service: it runs a whitelisted command and
// reports its exit code, standing in for the real build/deploy/test
// handlers of the source system.
func NewExecutor() *Stub {
	s := NewStub("executor")
	s.RegisterHandler("Execute", handleExecute)
	return s
}

func handleExecute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	command := util.GetString(params, "command")
	if !allowedCommands[command] {
		return map[string]interface{}{
			"success":   false,
			"stderr":    "command not permitted",
			"exit_code": -1,
		}, nil
	}

	args := util.GetStringArray(params, "args")

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	success := err == nil
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		exitCode = -1
	}

	return map[string]interface{}{
		"success":   success,
		"command":   command,
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}, nil
}
