// Benchmark tool for testing Kestrel against labeled account data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/accounts.csv -url http://localhost:8080
//   go run cmd/benchmark/main.go -synthesize 10000 -url http://localhost:8080
//
// This tool:
//   1. Reads an account dataset CSV carrying account_status labels
//      (or synthesizes one)
//   2. Uploads it to Kestrel and runs a dormancy classification
//   3. Compares Kestrel's matched set with the dataset's Dormant labels
//   4. Calculates precision, recall, F1-score and the confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

// datasetHeader is the canonical column layout Kestrel ingests.
var datasetHeader = []string{
	"account_id", "account_type", "branch", "customer_type",
	"account_balance", "kyc_status", "account_status",
	"last_transaction_date",
	"email_contact_attempt", "sms_contact_attempt", "phone_call_attempt",
}

// IngestResponse mirrors the POST /datasets response.
type IngestResponse struct {
	Dataset struct {
		ID          string `json:"id"`
		RecordCount int    `json:"recordCount"`
	} `json:"dataset"`
}

// ClassifyRequest mirrors the POST /classify request.
type ClassifyRequest struct {
	DatasetID   string  `json:"datasetId"`
	Policy      string  `json:"policy,omitempty"`
	WindowYears float64 `json:"windowYears,omitempty"`
}

// RunResponse is the subset of the run document the benchmark reads.
type RunResponse struct {
	ID           string `json:"id"`
	InputCount   int    `json:"inputCount"`
	MatchedCount int    `json:"matchedCount"`
	Accounts     []struct {
		AccountID          string  `json:"accountId"`
		YearsInactive      float64 `json:"yearsInactive"`
		RecommendedAction  string  `json:"recommendedAction"`
		RiskCategory       string  `json:"riskCategory"`
		CompliancePriority string  `json:"compliancePriority"`
	} `json:"accounts"`
	Summary struct {
		ByAction   map[string]int `json:"byAction"`
		ByRisk     map[string]int `json:"byRisk"`
		ByPriority map[string]int `json:"byPriority"`
	} `json:"summary"`
	Metadata struct {
		FilterMs   int64 `json:"filterMs"`
		ClassifyMs int64 `json:"classifyMs"`
		TotalMs    int64 `json:"totalMs"`
	} `json:"metadata"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int // Dormant-labeled accounts matched by the policy
	FalsePositives int // Active-labeled accounts matched by the policy
	TrueNegatives  int // Active-labeled accounts left out
	FalseNegatives int // Dormant-labeled accounts left out (missed!)

	TotalRecords int
	TotalDormant int
	TotalActive  int
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled account CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	policy := flag.String("policy", "general-inactivity", "Detection policy to benchmark")
	window := flag.Float64("window", 0, "Dormancy window in years (0 = server default)")
	synthesize := flag.Int("synthesize", 0, "Synthesize N accounts instead of reading a CSV")
	seed := flag.Int64("seed", 42, "Random seed for synthesized data")
	verbose := flag.Bool("verbose", false, "Print each misclassified account")
	flag.Parse()

	if *csvPath == "" && *synthesize <= 0 {
		fmt.Println("Usage: benchmark -csv /path/to/accounts.csv [-url http://localhost:8080]")
		fmt.Println("       benchmark -synthesize 10000 [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Dormancy Detection Accuracy        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	if *csvPath != "" {
		fmt.Printf("\nCSV File:    %s\n", *csvPath)
	} else {
		fmt.Printf("\nSynthesize:  %d accounts (seed %d)\n", *synthesize, *seed)
	}
	fmt.Printf("Kestrel URL: %s\n", *baseURL)
	fmt.Printf("Policy:      %s\n", *policy)
	if *window > 0 {
		fmt.Printf("Window:      %.1f years\n", *window)
	}
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Load or synthesize the dataset
	var data []byte
	var err error
	if *csvPath != "" {
		data, err = os.ReadFile(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		data = synthesizeDataset(*synthesize, *seed)
	}

	labels, err := readLabels(bytes.NewReader(data))
	if err != nil {
		fmt.Printf("ERROR: Failed to parse CSV labels: %v\n", err)
		os.Exit(1)
	}
	dormantCount := 0
	for _, dormant := range labels {
		if dormant {
			dormantCount++
		}
	}
	fmt.Printf("✓ Loaded %d accounts\n", len(labels))
	fmt.Printf("  - Dormant: %d (%.2f%%)\n", dormantCount, 100*float64(dormantCount)/float64(len(labels)))
	fmt.Printf("  - Active:  %d (%.2f%%)\n", len(labels)-dormantCount, 100*float64(len(labels)-dormantCount)/float64(len(labels)))

	// Upload and classify
	client := &http.Client{Timeout: 60 * time.Second}

	fmt.Println("\nUploading dataset...")
	uploadStart := time.Now()
	datasetID, recordCount, err := uploadDataset(client, *baseURL, data)
	if err != nil {
		fmt.Printf("ERROR: Upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Dataset %s ingested (%d records in %v)\n", datasetID, recordCount, time.Since(uploadStart).Round(time.Millisecond))

	fmt.Println("\nRunning classification...")
	classifyStart := time.Now()
	run, err := classify(client, *baseURL, ClassifyRequest{
		DatasetID:   datasetID,
		Policy:      *policy,
		WindowYears: *window,
	})
	classifyDuration := time.Since(classifyStart)
	if err != nil {
		fmt.Printf("ERROR: Classification failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Run %s: %d / %d accounts matched\n", run.ID, run.MatchedCount, run.InputCount)

	// Score matched set against labels
	metrics := score(labels, run, *verbose)
	printResults(metrics, run, classifyDuration)
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

// synthesizeDataset builds a labeled CSV with a mix of long-dormant and
// recently active accounts across the covered account types.
func synthesizeDataset(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))

	accountTypes := []string{"Savings", "Current", "Call", "Fixed Deposit", "Investment", "Safe Deposit"}
	branches := []string{"Downtown", "Marina", "Airport Road", "Old Town"}
	customerTypes := []string{"Individual", "Corporate"}
	now := time.Now().UTC()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(datasetHeader)

	for i := 0; i < n; i++ {
		dormant := rng.Float64() < 0.3

		var lastTxn time.Time
		status := "Active"
		if dormant {
			// Three to ten years stale
			lastTxn = now.AddDate(-3, 0, 0).AddDate(0, 0, -rng.Intn(7*365))
			status = "Dormant"
		} else {
			// Active within the last two years
			lastTxn = now.AddDate(0, 0, -rng.Intn(2*365))
		}

		kyc := "Valid"
		if rng.Float64() < 0.25 {
			kyc = "Expired"
		}
		contact := func() string {
			if rng.Float64() < 0.4 {
				return "yes"
			}
			return "no"
		}

		w.Write([]string{
			fmt.Sprintf("ACC%06d", i+1),
			accountTypes[rng.Intn(len(accountTypes))],
			branches[rng.Intn(len(branches))],
			customerTypes[rng.Intn(len(customerTypes))],
			fmt.Sprintf("%.2f", 100+rng.Float64()*500000),
			kyc,
			status,
			lastTxn.Format("2006-01-02"),
			contact(), contact(), contact(),
		})
	}
	w.Flush()
	return buf.Bytes()
}

// readLabels maps account_id to its Dormant label.
func readLabels(r io.Reader) (map[string]bool, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	idCol, ok := colIndex["account_id"]
	if !ok {
		return nil, fmt.Errorf("no account_id column")
	}
	statusCol, ok := colIndex["account_status"]
	if !ok {
		return nil, fmt.Errorf("no account_status column")
	}

	labels := make(map[string]bool)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		if record[idCol] == "" {
			continue
		}
		labels[record[idCol]] = strings.EqualFold(strings.TrimSpace(record[statusCol]), "Dormant")
	}
	return labels, nil
}

func uploadDataset(client *http.Client, baseURL string, data []byte) (string, int, error) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/datasets?name=benchmark", bytes.NewReader(data))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "text/csv")

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var ir IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return "", 0, err
	}
	return ir.Dataset.ID, ir.Dataset.RecordCount, nil
}

func classify(client *http.Client, baseURL string, reqBody ClassifyRequest) (*RunResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var run RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

func score(labels map[string]bool, run *RunResponse, verbose bool) *Metrics {
	matched := make(map[string]bool, len(run.Accounts))
	for _, a := range run.Accounts {
		matched[a.AccountID] = true
	}

	m := &Metrics{TotalRecords: len(labels)}
	for id, dormant := range labels {
		if dormant {
			m.TotalDormant++
		} else {
			m.TotalActive++
		}

		predicted := matched[id]
		switch {
		case predicted && dormant:
			m.TruePositives++
		case predicted && !dormant:
			m.FalsePositives++
			if verbose {
				fmt.Printf("✗ %s matched but labeled Active\n", id)
			}
		case !predicted && !dormant:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
			if verbose {
				fmt.Printf("✗ %s labeled Dormant but not matched\n", id)
			}
		}
	}
	return m
}

func printResults(m *Metrics, run *RunResponse, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Accounts:   %d\n", m.TotalRecords)
	fmt.Printf("   Labeled Dormant:  %d\n", m.TotalDormant)
	fmt.Printf("   Labeled Active:   %d\n", m.TotalActive)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  Matched    Unmatched")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  D  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           A  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of matched accounts, how many were labeled dormant)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of dormant accounts, how many were matched)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🗂  ACTION DISTRIBUTION\n")
	for _, action := range []string{"MONITOR", "NOTIFY", "FREEZE", "ESCALATE"} {
		if n, ok := run.Summary.ByAction[action]; ok {
			fmt.Printf("   %-9s %6d\n", action, n)
		}
	}
	fmt.Printf("\n⚠️  PRIORITY DISTRIBUTION\n")
	for _, prio := range []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"} {
		if n, ok := run.Summary.ByPriority[prio]; ok {
			fmt.Printf("   %-9s %6d\n", prio, n)
		}
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Round Trip:       %v\n", duration.Round(time.Millisecond))
	fmt.Printf("   Filter:           %d ms\n", run.Metadata.FilterMs)
	fmt.Printf("   Classify:         %d ms\n", run.Metadata.ClassifyMs)
	fmt.Printf("   Server Total:     %d ms\n", run.Metadata.TotalMs)
	if run.InputCount > 0 && duration.Seconds() > 0 {
		fmt.Printf("   Throughput:       %.2f accounts/sec\n", float64(run.InputCount)/duration.Seconds())
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most dormant accounts")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some dormant accounts")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - many dormant accounts unmatched")
	} else {
		fmt.Println("   ❌ Poor recall - the policy misses most dormant accounts!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - matches are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many active accounts matched")
	} else {
		fmt.Println("   ❌ Very low precision - mostly active accounts matched")
	}

	fmt.Println()
}
