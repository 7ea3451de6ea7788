// Command smoke probes a running API instance against a JSON list of
// endpoints and reports status mismatches and latency. Intended for
// post-deploy checks; exits non-zero when a required probe fails.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type probe struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Required bool   `json:"required"`
}

type probeFile struct {
	Probes []probe `json:"probes"`
}

type result struct {
	Probe    probe
	Status   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base       string
		probesPath string
		timeout    time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&probesPath, "probes", filepath.Join("scripts", "smoke", "probes.json"), "Path to JSON probe list")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	probes, err := loadProbes(probesPath)
	if err != nil {
		log.Fatalf("failed to load probes: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	failures := 0
	var results []result
	for _, p := range probes {
		res := runProbe(client, base, p)
		if res.Err != nil || res.Status != p.Expect {
			if p.Required {
				failures++
			}
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Required failures: %d\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file probeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	for i := range file.Probes {
		if file.Probes[i].Expect == 0 {
			file.Probes[i].Expect = http.StatusOK
		}
	}
	return file.Probes, nil
}

func runProbe(client *http.Client, base string, p probe) result {
	res := result{Probe: p}
	method := strings.ToUpper(strings.TrimSpace(p.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := p.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		res.Err = err
		return res
	}
	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode
	return res
}

func printReport(results []result) {
	fmt.Println("API Smoke Report")
	fmt.Println("================")
	for _, res := range results {
		verdict := "OK"
		if res.Err != nil {
			verdict = "ERROR"
		} else if res.Status != res.Probe.Expect {
			verdict = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", verdict, res.Probe.Method, res.Probe.Path)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Status: %d (want %d) in %s | Required: %t\n", res.Status, res.Probe.Expect, res.Duration, res.Probe.Required)
	}
}
