package sandbox

// FailureKind classifies why an execution did not produce a usable result.
type FailureKind string

const (
	// FailCompile covers a nonzero compiler exit or a compiler that could
	// not be invoked at all.
	FailCompile FailureKind = "compile"
	// FailTimeout means the process group was killed at the wall deadline.
	FailTimeout FailureKind = "timeout"
	// FailRuntime means the process exited nonzero (or was signalled).
	FailRuntime FailureKind = "runtime"
	// FailSpawn means the process never started.
	FailSpawn FailureKind = "spawn"
)

// Failure carries the kind plus partial diagnostic text (compiler stderr,
// process stderr, or the spawn error message).
type Failure struct {
	Kind    FailureKind
	Message string
}

// Outcome is the result of one process execution. When Failure is nil the
// process ran to completion with exit code zero; otherwise the remaining
// fields hold whatever was captured before the failure. MemoryKb is only
// set when the environment could measure peak RSS.
type Outcome struct {
	Stdout     string
	Stderr     string
	WallTimeMs int64
	MemoryKb   *int64
	ExitCode   int
	Failure    *Failure
}

// Failed reports whether the execution ended in any failure.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}
