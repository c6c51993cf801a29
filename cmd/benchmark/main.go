package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	batchSize   int
	jwtSecret   string
	mcToken     string
)

var (
	totalRequests uint64
	success       uint64
	rejected4xx   uint64
	throttled     uint64
	upstream5xx   uint64
	transportErrs uint64
	itemsOK       uint64
	itemsFailed   uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8090", "API Base URL")
	flag.IntVar(&concurrency, "workers", 4, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "quote", "Workload type: quote | virtual | bulk")
	flag.IntVar(&batchSize, "batch", 8, "Items per bulk request")
	flag.StringVar(&jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "HMAC secret for the API JWT")
	flag.StringVar(&mcToken, "mc-token", os.Getenv("MC_TOKEN"), "Minecraft authorization header forwarded as x-mc-token")
}

func main() {
	flag.Parse()
	if err := checkFlags(); err != nil {
		log.Fatal(err)
	}

	bearer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "benchmark",
		"exp": time.Now().Add(duration + time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatalf("sign jwt: %v", err)
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, bearer)
	}
	wg.Wait()

	printResults(time.Since(start))
}

// checkFlags validates the command line. Every workload, quote included,
// sends x-mc-token.
func checkFlags() error {
	switch workload {
	case "quote", "virtual", "bulk":
	default:
		return fmt.Errorf("unknown workload %q", workload)
	}
	if jwtSecret == "" {
		return errors.New("-jwt-secret or JWT_SECRET is required")
	}
	if mcToken == "" {
		return errors.New("-mc-token or MC_TOKEN is required")
	}
	return nil
}

func worker(wg *sync.WaitGroup, start time.Time, bearer string) {
	defer wg.Done()
	client := &http.Client{Timeout: 30 * time.Second}

	for time.Since(start) < duration {
		path, payload := nextRequest()
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		req.Header.Set("X-Mc-Token", mcToken)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&transportErrs, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&success, 1)
			if workload == "bulk" {
				countItems(resp)
			}
		case resp.StatusCode == http.StatusTooManyRequests:
			atomic.AddUint64(&throttled, 1)
		case resp.StatusCode >= 500:
			atomic.AddUint64(&upstream5xx, 1)
		default:
			atomic.AddUint64(&rejected4xx, 1)
		}
		resp.Body.Close()
	}
}

func nextRequest() (string, any) {
	offer := func() map[string]any {
		return map[string]any{
			"offerId": fmt.Sprintf("bench-offer-%d", rand.IntN(1000)),
			"price":   float64(rand.IntN(990) + 10),
		}
	}

	switch workload {
	case "virtual":
		item := offer()
		item["includePostState"] = false
		return "/purchase/virtual", item
	case "bulk":
		items := make([]map[string]any, batchSize)
		for i := range items {
			items[i] = offer()
		}
		return "/purchase/virtual/bulk", map[string]any{"items": items, "includePostState": false}
	default:
		return "/purchase/quote", offer()
	}
}

func countItems(resp *http.Response) {
	var report struct {
		SuccessCount uint64 `json:"successCount"`
		FailureCount uint64 `json:"failureCount"`
	}
	if json.NewDecoder(resp.Body).Decode(&report) != nil {
		return
	}
	atomic.AddUint64(&itemsOK, report.SuccessCount)
	atomic.AddUint64(&itemsFailed, report.FailureCount)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_rps": float64(total) / d.Seconds(),
		"success":        atomic.LoadUint64(&success),
		"rejected_4xx":   atomic.LoadUint64(&rejected4xx),
		"throttled_429":  atomic.LoadUint64(&throttled),
		"upstream_5xx":   atomic.LoadUint64(&upstream5xx),
		"errors":         atomic.LoadUint64(&transportErrs),
	}
	if workload == "bulk" {
		results["items_ok"] = atomic.LoadUint64(&itemsOK)
		results["items_failed"] = atomic.LoadUint64(&itemsFailed)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
