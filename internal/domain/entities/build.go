package entities

import "time"

// BuildAttempt records one invocation of an external build command.
// It is immutable after completion; the locator and the diagnostician
// consume it, the orchestrator owns it for the duration of one run.
type BuildAttempt struct {
	Command  []string      `json:"command"`
	LogPath  string        `json:"log_path"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the build exited cleanly. The exit code is the
// sole success signal; build tool output is never interpreted.
func (b *BuildAttempt) Succeeded() bool {
	return b.ExitCode == 0 && !b.TimedOut
}
