package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionFile represents a session log file on disk.
type SessionFile struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	NumEvents int
}

// ListSessions finds .jsonl session log files in dir.
func ListSessions(dir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	var files []SessionFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), "-session.jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		n, _ := countLines(path) //nolint:errcheck
		files = append(files, SessionFile{
			Path:      path,
			Name:      e.Name(),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			NumEvents: n,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// ReadEvents parses all events from a session log file.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	// Increase buffer for large lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // skip malformed lines
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	return events, nil
}

// RenderTimeline writes a human-readable session timeline to w.
//
//nolint:errcheck // display-only writes; errors are not actionable
func RenderTimeline(w io.Writer, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w, " CALL SESSION TIMELINE")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	start := events[0].Timestamp
	for _, ev := range events {
		elapsed := ev.Timestamp.Sub(start)
		ts := formatDuration(elapsed)

		switch ev.Type {
		case EventSuiteStart:
			suite, _ := ev.Data["suite"].(string)   //nolint:errcheck
			engine, _ := ev.Data["engine"].(string) //nolint:errcheck
			testCount := jsonNumber(ev.Data["test_count"])
			fmt.Fprintf(w, "[%s] 🚀 Suite started  suite=%s  engine=%s  tests=%d\n", ts, suite, engine, testCount)

		case EventCallStart:
			name, _ := ev.Data["test_case"].(string) //nolint:errcheck
			callID, _ := ev.Data["call_id"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ☎  Call started: %s (call %s)\n", ts, name, callID)

		case EventTurnRecorded:
			speaker, _ := ev.Data["speaker"].(string) //nolint:errcheck
			text, _ := ev.Data["text"].(string)       //nolint:errcheck
			if len(text) > 60 {
				text = text[:57] + "..."
			}
			fmt.Fprintf(w, "[%s]    %s: %s\n", ts, speaker, text)

		case EventStatusChanged:
			status, _ := ev.Data["status"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s]    status → %s\n", ts, status)

		case EventEvaluation:
			name, _ := ev.Data["test_case"].(string) //nolint:errcheck
			successful, _ := ev.Data["successful"].(bool)
			acc := jsonFloat(ev.Data["accuracy"])
			emp := jsonFloat(ev.Data["empathy"])
			icon := "✗"
			if successful {
				icon = "✓"
			}
			fmt.Fprintf(w, "[%s]    %s Evaluated %s  accuracy=%.1f empathy=%.1f\n", ts, icon, name, acc, emp)

		case EventCallEnd:
			name, _ := ev.Data["test_case"].(string) //nolint:errcheck
			turns := jsonNumber(ev.Data["turns"])
			dur := jsonNumber(ev.Data["duration_ms"])
			fmt.Fprintf(w, "[%s] ☎  Call ended: %s  %d turns (%dms)\n", ts, name, turns, dur)

		case EventError:
			msg, _ := ev.Data["message"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ❌ Error: %s\n", ts, msg)

		case EventSuiteEnd:
			total := jsonNumber(ev.Data["total_tests"])
			successful := jsonNumber(ev.Data["successful"])
			failed := jsonNumber(ev.Data["failed"])
			dur := jsonNumber(ev.Data["duration_ms"])
			fmt.Fprintf(w, "[%s] 🏁 Suite complete  %d/%d successful  %d failed  (%dms)\n",
				ts, successful, total, failed, dur)

		default:
			fmt.Fprintf(w, "[%s] %s %v\n", ts, ev.Type, ev.Data)
		}
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%6dms", d.Milliseconds())
	}
	return fmt.Sprintf("%6.1fs", d.Seconds())
}

// jsonNumber extracts a number from a JSON-decoded interface{} (float64 or json.Number).
func jsonNumber(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64() //nolint:errcheck
		return int(i)
	}
	return 0
}

func jsonFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64() //nolint:errcheck
		return f
	}
	return 0
}
