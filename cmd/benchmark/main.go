// Benchmark tool for measuring Covenant against a labelled contract corpus.
//
// Usage:
//
//	go run ./cmd/benchmark -csv /path/to/corpus.csv -url http://localhost:8080
//
// The CSV has a header row and the columns path, contract_type and
// expected_level (Low, Medium or High). Relative paths resolve against the
// CSV's directory.
//
// This tool:
//  1. Reads every labelled contract text
//  2. Posts each one to /analyze
//  3. Compares the returned level with the expected one
//  4. Prints accuracy, a level confusion matrix and High-risk precision/recall
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Levels in matrix order.
var levels = []string{"Low", "Medium", "High"}

// Sample is one labelled contract.
type Sample struct {
	Path          string
	ContractType  string
	ExpectedLevel string
	Text          string
}

// AnalyzeRequest is the Covenant API request format
type AnalyzeRequest struct {
	Name         string `json:"name"`
	Text         string `json:"text"`
	ContractType string `json:"contractType"`
}

// AnalyzeResponse holds the fields of the Covenant API response used here
type AnalyzeResponse struct {
	AnalysisID string `json:"analysisId"`
	Result     struct {
		Level     string  `json:"level"`
		Score     float64 `json:"score"`
		Escalated bool    `json:"escalated"`
	} `json:"result"`
}

// Metrics tracks benchmark results
type Metrics struct {
	mu sync.Mutex
	// Confusion[expected][predicted]
	Confusion map[string]map[string]int64

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

// NewMetrics returns an empty confusion matrix over the three levels.
func NewMetrics() *Metrics {
	m := &Metrics{Confusion: make(map[string]map[string]int64)}
	for _, l := range levels {
		m.Confusion[l] = make(map[string]int64)
	}
	return m
}

// Record adds one prediction.
func (m *Metrics) Record(expected, predicted string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.Confusion[expected]
	if !ok {
		row = make(map[string]int64)
		m.Confusion[expected] = row
	}
	row[predicted]++
}

// Accuracy is the share of samples whose level matched.
func (m *Metrics) Accuracy() float64 {
	var correct, total int64
	for expected, row := range m.Confusion {
		for predicted, n := range row {
			total += n
			if expected == predicted {
				correct += n
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// HighPrecisionRecall treats High as the positive class.
func (m *Metrics) HighPrecisionRecall() (precision, recall float64) {
	var tp, fp, fn int64
	for expected, row := range m.Confusion {
		for predicted, n := range row {
			switch {
			case expected == "High" && predicted == "High":
				tp += n
			case expected != "High" && predicted == "High":
				fp += n
			case expected == "High" && predicted != "High":
				fn += n
			}
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labelled corpus CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Covenant base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 0, "Maximum contracts to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each contract result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/corpus.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("==============================================================")
	fmt.Println("  COVENANT BENCHMARK - labelled contract corpus")
	fmt.Println("==============================================================")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Covenant URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:    %s\n", *tenantID)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Println()

	// Check Covenant is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Covenant not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Covenant is running:")
		fmt.Println("  go run ./cmd/covenant serve")
		os.Exit(1)
	}
	fmt.Println("Covenant is healthy")

	fmt.Printf("\nReading corpus from %s...\n", *csvPath)
	samples, err := readCorpus(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read corpus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d contracts\n", len(samples))

	byLevel := make(map[string]int)
	for _, s := range samples {
		byLevel[s.ExpectedLevel]++
	}
	for _, l := range levels {
		fmt.Printf("  - %-6s %d\n", l+":", byLevel[l])
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(samples, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(os.Stdout, metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readCorpus loads the CSV and the text of every listed contract.
func readCorpus(path string, limit int) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"path", "contract_type", "expected_level"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	baseDir := filepath.Dir(path)
	var samples []Sample

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		level, ok := normalizeLevel(record[colIndex["expected_level"]])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown level %q", line, record[colIndex["expected_level"]])
		}

		textPath := record[colIndex["path"]]
		if !filepath.IsAbs(textPath) {
			textPath = filepath.Join(baseDir, textPath)
		}
		text, err := os.ReadFile(textPath)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		samples = append(samples, Sample{
			Path:          record[colIndex["path"]],
			ContractType:  strings.TrimSpace(record[colIndex["contract_type"]]),
			ExpectedLevel: level,
			Text:          string(text),
		})

		if limit > 0 && len(samples) >= limit {
			break
		}
	}

	return samples, nil
}

func normalizeLevel(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, l := range levels {
		if strings.EqualFold(s, l) {
			return l, true
		}
	}
	return "", false
}

func runBenchmark(samples []Sample, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := NewMetrics()

	// Create work channel
	work := make(chan Sample, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for s := range work {
				start := time.Now()
				result, err := analyzeContract(client, baseURL, tenantID, s)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", s.Path, err)
					}
					continue
				}

				metrics.Record(s.ExpectedLevel, result.Result.Level)

				if verbose {
					status := "ok "
					if result.Result.Level != s.ExpectedLevel {
						status = "MISS"
					}
					fmt.Printf("%s %-40s | %-20s | expected %-6s | got %-6s (%.2f)\n",
						status, s.Path, s.ContractType, s.ExpectedLevel, result.Result.Level, result.Result.Score)
				}
			}
		}()
	}

	// Send work
	for _, s := range samples {
		work <- s
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func analyzeContract(client *http.Client, baseURL, tenantID string, s Sample) (*AnalyzeResponse, error) {
	body, err := json.Marshal(AnalyzeRequest{
		Name:         filepath.Base(s.Path),
		Text:         s.Text,
		ContractType: s.ContractType,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(w io.Writer, m *Metrics, duration time.Duration) {
	fmt.Fprintln(w, "\n==============================================================")
	fmt.Fprintln(w, "  BENCHMARK RESULTS")
	fmt.Fprintln(w, "==============================================================")

	fmt.Fprintf(w, "\nProcessed:  %d\n", m.TotalProcessed)
	fmt.Fprintf(w, "Errors:     %d\n", m.TotalErrors)

	fmt.Fprintf(w, "\nCONFUSION MATRIX (rows expected, columns predicted)\n")
	fmt.Fprintf(w, "   %-8s", "")
	for _, l := range levels {
		fmt.Fprintf(w, " %8s", l)
	}
	fmt.Fprintln(w)
	for _, expected := range levels {
		fmt.Fprintf(w, "   %-8s", expected)
		for _, predicted := range levels {
			fmt.Fprintf(w, " %8d", m.Confusion[expected][predicted])
		}
		fmt.Fprintln(w)
	}

	precision, recall := m.HighPrecisionRecall()
	fmt.Fprintf(w, "\nACCURACY\n")
	fmt.Fprintf(w, "   Level accuracy:   %.2f%%\n", 100*m.Accuracy())
	fmt.Fprintf(w, "   High precision:   %.2f%%\n", 100*precision)
	fmt.Fprintf(w, "   High recall:      %.2f%%\n", 100*recall)

	fmt.Fprintf(w, "\nPERFORMANCE\n")
	fmt.Fprintf(w, "   Duration:         %s\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Fprintf(w, "   Avg latency:      %.2f ms\n", float64(m.ProcessingTimeMs)/float64(m.TotalProcessed))
		fmt.Fprintf(w, "   Throughput:       %.2f contracts/s\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Fprintln(w)
}
