// Command edlctl is a thin HTTP client for a running edlengine process.
// It does not implement any rendering or validation logic itself: every
// subcommand marshals a request, calls the server, and prints the
// response. Exit code 0 means success, 1 means a user or operational
// error occurred.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/BlueElevatorProductions/JUCE-Audio-Service/pkg/edl"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ping":
		return runPing(rest, stdout, stderr)
	case "load":
		return runLoad(rest, stdout, stderr)
	case "render":
		return runRender(rest, stdout, stderr)
	case "edl-update":
		return runEdlUpdate(rest, stdout, stderr)
	case "edl-render":
		return runEdlRender(rest, stdout, stderr)
	case "subscribe":
		return runSubscribe(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "edlctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  ping                                             check that edlengine is reachable")
	fmt.Fprintln(w, "  load --path FILE                                 probe a media file")
	fmt.Fprintln(w, "  render --path FILE --out FILE [--start S --dur S]  render a whole file end to end")
	fmt.Fprintln(w, "  edl-update --edl FILE [--replace]                submit an EDL document")
	fmt.Fprintln(w, "  edl-render --edl-id ID --start S --dur S --out FILE [--bit-depth N]")
	fmt.Fprintln(w, "  subscribe --edl-id ID                            stream engine events")
}

func serverFlag(fs *flag.FlagSet) *string {
	return fs.String("server", envOr("EDL_SERVER_ADDR", "http://localhost:8080"), "edlengine base URL")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runPing(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	resp, err := http.Get(*server + "/health")
	if err != nil {
		fmt.Fprintf(stderr, "ping failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "ping failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "pong")
	return 0
}

type probeRequest struct {
	Path string `json:"path"`
}

type fileInfoWire struct {
	Path            string  `json:"path"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
}

type probeResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	FileInfo *fileInfoWire `json:"file_info,omitempty"`
}

func runLoad(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	server := serverFlag(fs)
	path := fs.String("path", "", "media file to probe")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "load: --path is required")
		return 1
	}
	var out probeResponse
	if err := postJSON(*server+"/v1/probe", probeRequest{Path: *path}, &out); err != nil {
		fmt.Fprintf(stderr, "load: %v\n", err)
		return 1
	}
	printJSON(stdout, out)
	if !out.Success {
		return 1
	}
	return 0
}

type updateEdlResponse struct {
	EdlID      string `json:"edl_id"`
	Revision   string `json:"revision"`
	TrackCount int    `json:"track_count"`
	ClipCount  int    `json:"clip_count"`
}

func runEdlUpdate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("edl-update", flag.ContinueOnError)
	server := serverFlag(fs)
	path := fs.String("edl", "", "path to an EDL JSON document")
	replace := fs.Bool("replace", false, "replace the currently loaded EDL")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" {
		fmt.Fprintln(stderr, "edl-update: --edl is required")
		return 1
	}
	body, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(stderr, "edl-update: %v\n", err)
		return 1
	}

	url := *server + "/v1/edl"
	if *replace {
		url += "?replace=true"
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(stderr, "edl-update: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		fmt.Fprintf(stderr, "edl-update failed: %s: %s\n", errResp.ErrorCode, errResp.Message)
		return 1
	}
	var out updateEdlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(stderr, "edl-update: %v\n", err)
		return 1
	}
	printJSON(stdout, out)
	return 0
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type loadedEdlResponse struct {
	Loaded     bool   `json:"loaded"`
	EdlID      string `json:"edl_id,omitempty"`
	Revision   string `json:"revision,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	TrackCount int    `json:"track_count,omitempty"`
	ClipCount  int    `json:"clip_count,omitempty"`
}

func runEdlRender(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("edl-render", flag.ContinueOnError)
	server := serverFlag(fs)
	edlID := fs.String("edl-id", "", "id of the currently loaded EDL")
	startSec := fs.Float64("start", 0, "range start, seconds")
	durSec := fs.Float64("dur", 0, "range duration, seconds")
	out := fs.String("out", "", "output WAV path")
	bitDepth := fs.Int("bit-depth", 16, "output bit depth: 16, 24 or 32")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *edlID == "" || *out == "" || *durSec <= 0 {
		fmt.Fprintln(stderr, "edl-render: --edl-id, --dur and --out are required")
		return 1
	}

	var loaded loadedEdlResponse
	if err := getJSON(*server+"/v1/edl", &loaded); err != nil {
		fmt.Fprintf(stderr, "edl-render: %v\n", err)
		return 1
	}
	if !loaded.Loaded || loaded.SampleRate == 0 {
		return failWithCode(stderr, "NO_FILE_LOADED", "no edl loaded on server")
	}

	req := renderRequest{
		EdlID:           *edlID,
		StartSamples:    int64(*startSec * float64(loaded.SampleRate)),
		DurationSamples: int64(*durSec * float64(loaded.SampleRate)),
		OutPath:         *out,
		BitDepth:        *bitDepth,
	}
	return streamRender(*server, req, stdout, stderr)
}

type renderRequest struct {
	EdlID           string `json:"edl_id"`
	StartSamples    int64  `json:"start_samples"`
	DurationSamples int64  `json:"duration_samples"`
	OutPath         string `json:"out_path"`
	BitDepth        int    `json:"bit_depth"`
}

type engineEvent struct {
	Kind        string  `json:"kind"`
	EdlID       string  `json:"edl_id,omitempty"`
	Revision    string  `json:"revision,omitempty"`
	TrackCount  int     `json:"track_count,omitempty"`
	ClipCount   int     `json:"clip_count,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Fraction    float64 `json:"fraction,omitempty"`
	OutPath     string  `json:"out_path,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	SHA256      string  `json:"sha256,omitempty"`
	MonotonicMS int64   `json:"monotonic_ms,omitempty"`
	Status      string  `json:"status,omitempty"`
}

func streamRender(server string, req renderRequest, stdout, stderr io.Writer) int {
	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return 1
	}
	resp, err := http.Post(server+"/v1/render", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var evt engineEvent
		if err := dec.Decode(&evt); err != nil {
			if err == io.EOF {
				break
			}
			fmt.Fprintf(stderr, "render: %v\n", err)
			return 1
		}
		switch evt.Kind {
		case "PROGRESS":
			fmt.Fprintf(stdout, "progress: %.1f%%\n", evt.Fraction*100)
		case "COMPLETE":
			fmt.Fprintf(stdout, "complete: %s (%.2fs, sha256=%s)\n", evt.OutPath, evt.DurationSec, evt.SHA256)
			return 0
		case "EDL_ERROR":
			return failWithCode(stderr, "RENDER_ERROR", evt.Reason)
		}
	}
	return 0
}

func runRender(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	server := serverFlag(fs)
	path := fs.String("path", "", "media file to render whole")
	out := fs.String("out", "", "output WAV path")
	startSec := fs.Float64("start", 0, "range start, seconds")
	durSec := fs.Float64("dur", 0, "range duration, seconds (default: whole file)")
	bitDepth := fs.Int("bit-depth", 16, "output bit depth: 16, 24 or 32")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *path == "" || *out == "" {
		fmt.Fprintln(stderr, "render: --path and --out are required")
		return 1
	}

	var probe probeResponse
	if err := postJSON(*server+"/v1/probe", probeRequest{Path: *path}, &probe); err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return 1
	}
	if !probe.Success || probe.FileInfo == nil {
		return failWithCode(stderr, "LAZY_LOAD_FAILED", fmt.Sprintf("could not probe %s: %s", *path, probe.Message))
	}

	edlID := "edlctl-render"
	duration := *durSec
	if duration <= 0 {
		duration = probe.FileInfo.DurationSeconds
	}
	wholeFileDoc := edl.Edl{
		ID:         edlID,
		SampleRate: probe.FileInfo.SampleRate,
		Media:      []edl.AudioRef{{ID: "m1", Path: *path, SampleRate: probe.FileInfo.SampleRate, Channels: probe.FileInfo.Channels}},
		Tracks: []edl.Track{{
			ID: "t1",
			Clips: []edl.Clip{{
				ID:              "c1",
				MediaID:         "m1",
				StartInMedia:    0,
				Duration:        int64(probe.FileInfo.DurationSeconds * float64(probe.FileInfo.SampleRate)),
				StartInTimeline: 0,
			}},
		}},
	}
	body, err := edl.MarshalDocument(wholeFileDoc)
	if err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return 1
	}
	var updated updateEdlResponse
	if err := postJSONBytes(*server+"/v1/edl?replace=true", body, &updated); err != nil {
		fmt.Fprintf(stderr, "render: %v\n", err)
		return 1
	}

	req := renderRequest{
		EdlID:           updated.EdlID,
		StartSamples:    int64(*startSec * float64(probe.FileInfo.SampleRate)),
		DurationSamples: int64(duration * float64(probe.FileInfo.SampleRate)),
		OutPath:         *out,
		BitDepth:        *bitDepth,
	}
	return streamRender(*server, req, stdout, stderr)
}

func runSubscribe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	server := serverFlag(fs)
	_ = fs.String("edl-id", "", "informational only; the stream carries every event")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	client := &http.Client{Timeout: 0}
	resp, err := client.Get(*server + "/v1/subscribe")
	if err != nil {
		fmt.Fprintf(stderr, "subscribe: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var evt engineEvent
		if err := dec.Decode(&evt); err != nil {
			if err == io.EOF {
				return 0
			}
			fmt.Fprintf(stderr, "subscribe: %v\n", err)
			return 1
		}
		line, _ := json.Marshal(evt)
		fmt.Fprintln(stdout, string(line))
	}
}

// failWithCode prints a machine-readable {error_code, message} envelope
// to stderr and returns the CLI's single failure exit status.
func failWithCode(stderr io.Writer, code, message string) int {
	fmt.Fprintln(stderr, string(mustJSON(errorResponse{ErrorCode: code, Message: message})))
	return 1
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf(`{"error_code":"INTERNAL","message":%q}`, err.Error()))
	}
	return b
}

func postJSON(url string, reqBody any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	return postJSONBytes(url, body, out)
}

func postJSONBytes(url string, body []byte, out any) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s: %s", errResp.ErrorCode, errResp.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getJSON(url string, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
