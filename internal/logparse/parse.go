// Package logparse decodes usage records from Claude Code conversation
// logs. The JSONL schema has drifted across tool versions, so parsing runs
// an ordered list of independent strategies, cheapest rejection first, with
// a regex extraction as the last resort. A line that matches no strategy is
// skipped, never an error: format drift must not abort ingestion of a file.
package logparse

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/spendbar/spendbar/internal/core"
)

// syntheticModel flags placeholder entries the CLI writes for error turns.
const syntheticModel = "<synthetic>"

type strategy func(line []byte) (core.LogEntry, bool)

var strategies = []strategy{
	parseClaudeCodeEntry,
	parseNestedUsage,
	parseTopLevelUsage,
	parseRegexFallback,
}

// Parse extracts a usage entry from one log line. The second return value
// is false for empty lines, non-usage lines, synthetic placeholders, and
// entries missing either token count.
func Parse(line []byte) (core.LogEntry, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return core.LogEntry{}, false
	}
	// Cheap pre-filter before any JSON decoding: every usage shape the log
	// format has used mentions token fields.
	if !bytes.Contains(line, []byte("_tokens")) {
		return core.LogEntry{}, false
	}

	for _, s := range strategies {
		if entry, ok := s(line); ok {
			return entry, true
		}
	}
	return core.LogEntry{}, false
}

type tokenUsage struct {
	InputTokens         *int `json:"input_tokens"`
	OutputTokens        *int `json:"output_tokens"`
	CacheCreationTokens int  `json:"cache_creation_input_tokens"`
	CacheReadTokens     int  `json:"cache_read_input_tokens"`
}

type claudeCodeLine struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	CWD       string  `json:"cwd"`
	CostUSD   float64 `json:"costUSD"`
	Message   *struct {
		Model string      `json:"model"`
		Usage *tokenUsage `json:"usage"`
	} `json:"message"`
}

// parseClaudeCodeEntry handles the current Claude Code assistant-turn shape:
// a typed record with message.usage and optional cache token fields.
func parseClaudeCodeEntry(line []byte) (core.LogEntry, bool) {
	var rec claudeCodeLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return core.LogEntry{}, false
	}
	if rec.Type != "assistant" || rec.Message == nil || rec.Message.Usage == nil {
		return core.LogEntry{}, false
	}
	return buildEntry(rec.Message.Model, rec.Message.Usage, rec.Timestamp, rec.CostUSD, rec.CWD)
}

type nestedUsageLine struct {
	Timestamp string  `json:"timestamp"`
	CostUSD   float64 `json:"costUSD"`
	Project   string  `json:"project"`
	Message   *struct {
		Model string      `json:"model"`
		Usage *tokenUsage `json:"usage"`
	} `json:"message"`
}

// parseNestedUsage handles older untyped records that still nest usage
// under message.
func parseNestedUsage(line []byte) (core.LogEntry, bool) {
	var rec nestedUsageLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return core.LogEntry{}, false
	}
	if rec.Message == nil || rec.Message.Usage == nil {
		return core.LogEntry{}, false
	}
	return buildEntry(rec.Message.Model, rec.Message.Usage, rec.Timestamp, rec.CostUSD, rec.Project)
}

type topLevelUsageLine struct {
	Timestamp string      `json:"timestamp"`
	Model     string      `json:"model"`
	CostUSD   float64     `json:"cost_usd"`
	Project   string      `json:"project"`
	Usage     *tokenUsage `json:"usage"`
}

// parseTopLevelUsage handles the earliest shape, usage at the record root.
func parseTopLevelUsage(line []byte) (core.LogEntry, bool) {
	var rec topLevelUsageLine
	if err := json.Unmarshal(line, &rec); err != nil {
		return core.LogEntry{}, false
	}
	if rec.Usage == nil {
		return core.LogEntry{}, false
	}
	return buildEntry(rec.Model, rec.Usage, rec.Timestamp, rec.CostUSD, rec.Project)
}

var (
	reInputTokens  = regexp.MustCompile(`"input_tokens"\s*:\s*(\d+)`)
	reOutputTokens = regexp.MustCompile(`"output_tokens"\s*:\s*(\d+)`)
	reModel        = regexp.MustCompile(`"model"\s*:\s*"([^"]+)"`)
	reTimestamp    = regexp.MustCompile(`"timestamp"\s*:\s*"([^"]+)"`)
)

// parseRegexFallback salvages token counts from lines structured decoding
// could not handle at all (truncated records, schema surprises).
func parseRegexFallback(line []byte) (core.LogEntry, bool) {
	inMatch := reInputTokens.FindSubmatch(line)
	outMatch := reOutputTokens.FindSubmatch(line)
	if inMatch == nil || outMatch == nil {
		return core.LogEntry{}, false
	}
	in, _ := strconv.Atoi(string(inMatch[1]))
	out, _ := strconv.Atoi(string(outMatch[1]))

	model := ""
	if m := reModel.FindSubmatch(line); m != nil {
		model = string(m[1])
	}
	if model == syntheticModel {
		return core.LogEntry{}, false
	}

	ts := ""
	if m := reTimestamp.FindSubmatch(line); m != nil {
		ts = string(m[1])
	}

	return core.LogEntry{
		Timestamp:    parseTimestamp(ts),
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
	}, true
}

func buildEntry(model string, usage *tokenUsage, timestamp string, costUSD float64, cwd string) (core.LogEntry, bool) {
	if model == syntheticModel {
		return core.LogEntry{}, false
	}
	if usage.InputTokens == nil || usage.OutputTokens == nil {
		return core.LogEntry{}, false
	}

	project := ""
	if cwd != "" {
		project = filepath.Base(cwd)
	}

	return core.LogEntry{
		Timestamp:           parseTimestamp(timestamp),
		Model:               model,
		InputTokens:         *usage.InputTokens,
		OutputTokens:        *usage.OutputTokens,
		CacheCreationTokens: usage.CacheCreationTokens,
		CacheReadTokens:     usage.CacheReadTokens,
		CostUSD:             costUSD,
		ProjectName:         project,
	}, true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"Jan 2, 2006 15:04:05",
}

// parseTimestamp never fails an entry over a bad timestamp; unparsable
// values default to now.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
