package pipeline

import (
	"fmt"
	"os"
	"os/exec"
)

// Trigger hands a frame off to the next stage as an independent
// process. Failure to trigger is never fatal to the invoking stage; the
// polled invocation mode picks up whatever a lost trigger missed.
type Trigger interface {
	Trigger(stage string) error
}

// ExecTrigger re-invokes this binary with the stage's command and
// --single-run, fire and forget.
type ExecTrigger struct{}

func (ExecTrigger) Trigger(stage string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	cmd := exec.Command(exe, CommandName(stage), "--single-run")
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", CommandName(stage), err)
	}
	// Reap in the background; the child's outcome is its own.
	go cmd.Wait()
	return nil
}

// NopTrigger discards trigger requests. Used when the downstream stage
// runs purely on its polling schedule, and in tests.
type NopTrigger struct{}

func (NopTrigger) Trigger(string) error { return nil }

// CapturingTrigger records trigger requests in memory. Test helper.
type CapturingTrigger struct {
	Stages []string
	Err    error
}

func (c *CapturingTrigger) Trigger(stage string) error {
	if c.Err != nil {
		return c.Err
	}
	c.Stages = append(c.Stages, stage)
	return nil
}
