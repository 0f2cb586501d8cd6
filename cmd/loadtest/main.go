package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Counters
var (
	totalRequests uint64
	success200    uint64
	fail409       uint64 // superseded or in flight
	failAuth      uint64 // 401/403
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "walletd base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "search", "Workload type: search | refresh")
}

// Drives a running walletd with read-only traffic. Transfers are never sent.
func main() {
	flag.Parse()
	if workload != "search" && workload != "refresh" {
		slog.Error("unknown workload", "workload", workload)
		os.Exit(2)
	}
	slog.Info("starting load test", "workload", workload, "workers", concurrency, "duration", duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		var (
			resp *http.Response
			err  error
		)
		if workload == "refresh" {
			resp, err = client.Post(targetURL+"/api/v1/account/refresh", "application/json", nil)
		} else {
			resp, err = client.Get(targetURL + "/api/v1/recipients?q=" + url.QueryEscape(randomQuery()))
		}
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnauthorized, http.StatusForbidden:
			atomic.AddUint64(&failAuth, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// randomQuery returns a 1 to 4 letter prefix, so some queries are too short
// to reach the ledger.
func randomQuery() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 1+rand.Intn(4))
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	fAuth := atomic.LoadUint64(&failAuth)
	fErr := atomic.LoadUint64(&failOther)

	var conflictRate float64
	if total > 0 {
		conflictRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_rps":    float64(total) / d.Seconds(),
		"success":           s200,
		"conflicts":         f409,
		"conflict_rate_pct": conflictRate,
		"auth_failures":     fAuth,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		slog.Error("could not save results", "error", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
