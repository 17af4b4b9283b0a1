package metrics

import (
	"expvar"
	"time"
)

// Run metrics keyed by terminal status or node.
var (
	runsTotal       = expvar.NewMap("devbrain_runs_total")
	nodeExecsTotal  = expvar.NewMap("devbrain_node_executions_total")
	nodeFailures    = expvar.NewMap("devbrain_node_failures_total")
	nodeDurationsMs = expvar.NewMap("devbrain_node_duration_ms_total")
)

// Checkpoint and session metrics.
var (
	commitsTotal      = new(expvar.Int)
	commitFailures    = new(expvar.Int)
	sessionBusyTotal  = new(expvar.Int)
	activeRuns        = new(expvar.Int)
	streamDisconnects = new(expvar.Int)
)

func init() {
	expvar.Publish("devbrain_checkpoint_commits_total", commitsTotal)
	expvar.Publish("devbrain_checkpoint_commit_failures_total", commitFailures)
	expvar.Publish("devbrain_session_busy_total", sessionBusyTotal)
	expvar.Publish("devbrain_active_runs", activeRuns)
	expvar.Publish("devbrain_stream_disconnects_total", streamDisconnects)
}

func RunFinished(status string) { runsTotal.Add(status, 1) }

func NodeExecuted(node string, d time.Duration) {
	nodeExecsTotal.Add(node, 1)
	nodeDurationsMs.Add(node, d.Milliseconds())
}

func NodeFailed(kind string) { nodeFailures.Add(kind, 1) }

func CommitSucceeded()    { commitsTotal.Add(1) }
func CommitFailed()       { commitFailures.Add(1) }
func SessionBusy()        { sessionBusyTotal.Add(1) }
func RunStarted()         { activeRuns.Add(1) }
func RunEnded()           { activeRuns.Add(-1) }
func StreamDisconnected() { streamDisconnects.Add(1) }
