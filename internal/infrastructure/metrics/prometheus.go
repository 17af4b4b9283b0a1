package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"
)

type meta struct {
	typ, help string
	label     string // set for expvar maps
}

var metas = map[string]meta{
	"devbrain_runs_total":                       {typ: "counter", help: "Runs by terminal status", label: "status"},
	"devbrain_node_executions_total":            {typ: "counter", help: "Successful node executions", label: "node"},
	"devbrain_node_failures_total":              {typ: "counter", help: "Failed node executions by error kind", label: "kind"},
	"devbrain_node_duration_ms_total":           {typ: "counter", help: "Accumulated node execution time in milliseconds", label: "node"},
	"devbrain_checkpoint_commits_total":         {typ: "counter", help: "Checkpoints committed"},
	"devbrain_checkpoint_commit_failures_total": {typ: "counter", help: "Checkpoint commits rejected by the store"},
	"devbrain_session_busy_total":               {typ: "counter", help: "Runs rejected because the session was busy"},
	"devbrain_active_runs":                      {typ: "gauge", help: "Runs currently executing"},
	"devbrain_stream_disconnects_total":         {typ: "counter", help: "Streams closed by the consumer before completion"},
}

// WritePrometheus renders expvar-published metrics in Prometheus text format.
// Known metrics get HELP/TYPE headers; other numeric vars become untyped gauges.
func WritePrometheus(w io.Writer) {
	names := make([]string, 0, 32)
	expvar.Do(func(kv expvar.KeyValue) { names = append(names, kv.Key) })
	sort.Strings(names)

	for _, name := range names {
		v := expvar.Get(name)
		m, known := metas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				fmt.Fprintf(w, "# TYPE %s gauge\n%s %s\n", name, name, iv.String())
			}
			continue
		}
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, sanitizeHelp(m.help), name, m.typ)
		mp, isMap := v.(*expvar.Map)
		if !isMap {
			fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return strings.ReplaceAll(s, "\n", "\\n")
}
