// Command shadow_compare replays read-only requests against the legacy
// ethics line service and the Go API and reports response differences.
// It is meant to run in CI while both stacks serve traffic side by side.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

// defaultTargets covers the public read surface. Reviewer routes need
// credentials and are compared separately.
var defaultTargets = []target{
	{Method: http.MethodGet, Path: "/health", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/intake/options", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/track/XXXX-XXXX", Critical: false},
}

// volatileKeys differ between stacks by construction and are dropped before
// comparing JSON bodies.
var volatileKeys = map[string]struct{}{
	"request_id":         {},
	"processing_time_ms": {},
	"created_at":         {},
	"updated_at":         {},
	"createdAt":          {},
	"updatedAt":          {},
}

type result struct {
	target       target
	goStatus     int
	legacyStatus int
	statusMatch  bool
	bodyMatch    bool
	goDuration   time.Duration
	legDuration  time.Duration
	err          error
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		sessionID   string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8501", "Legacy service base URL")
	flag.StringVar(&targetsPath, "targets", "", "Optional JSON targets file")
	flag.StringVar(&sessionID, "session", "", "Reporter session ID sent as X-Session-ID")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			log.Fatalf("failed to load targets: %v", err)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}
	breaking := 0
	results := make([]result, 0, len(targets))
	for _, tgt := range targets {
		res := compare(client, goBase, legacyBase, sessionID, tgt)
		if tgt.Critical && (res.err != nil || !res.statusMatch || !res.bodyMatch) {
			breaking++
		}
		results = append(results, res)
	}

	report(results)
	fmt.Printf("Breaking diffs: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compare(client *http.Client, goBase, legacyBase, sessionID string, tgt target) result {
	res := result{target: tgt}

	goStatus, goBody, goDur, err := fetch(client, goBase, sessionID, tgt)
	if err != nil {
		res.err = fmt.Errorf("go request failed: %w", err)
		return res
	}
	legStatus, legBody, legDur, err := fetch(client, legacyBase, sessionID, tgt)
	if err != nil {
		res.err = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.goStatus = goStatus
	res.legacyStatus = legStatus
	res.goDuration = goDur
	res.legDuration = legDur
	res.statusMatch = goStatus == legStatus
	res.bodyMatch = bodiesEqual(goBody, legBody)
	return res
}

func fetch(client *http.Client, base, sessionID string, tgt target) (int, []byte, time.Duration, error) {
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	scrub(&aj)
	scrub(&bj)
	return reflect.DeepEqual(aj, bj)
}

// scrub removes volatile fields and folds whole-number floats so the two
// stacks' JSON encoders compare equal.
func scrub(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range volatileKeys {
			delete(val, k)
		}
		for k, v2 := range val {
			scrub(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			scrub(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func report(results []result) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.err != nil {
			status = "ERROR"
		} else if !res.statusMatch || !res.bodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.target.Method, res.target.Path)
		if res.err != nil {
			fmt.Printf("  Error: %v\n", res.err)
			continue
		}
		fmt.Printf("  Go: %d (%s) | Legacy: %d (%s)\n", res.goStatus, res.goDuration, res.legacyStatus, res.legDuration)
		fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.statusMatch, res.bodyMatch, res.target.Critical)
	}
}
