//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel dormancy
// surveillance engine.
//
// These tests verify the COMPLETE classification pipeline:
//
//	Dataset CSV → Policy Filter → Classification → Run → Export
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. DATASET: An uploaded CSV of bank account records
//
// 2. POLICY: A dormancy detection rule set. Each policy selects the subset
//    of the dataset it considers dormant (by account type, inactivity and
//    contact attempts)
//
// 3. CLASSIFICATION: Every matched record gets derived compliance fields:
//   - Maturity:  Active / Approaching Inactivity / High Risk / Unclaimed
//   - Action:    MONITOR / NOTIFY / FREEZE / ESCALATE (3/4/5 year tiers)
//   - Risk:      LOW / MEDIUM / HIGH (balance bands)
//   - Priority:  LOW / MEDIUM / HIGH / CRITICAL (risk + action + KYC)
//
// 4. RUN: One complete classification batch, persisted for audit
//
// 5. AGENT: A compliance action (contact verification, dormancy flagging,
//    ledger reclassification, freezing, central-bank transfer eligibility)
//
// The server must be running; no seeding is required, the detection
// policies and agents are built in.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// fixtureCSV carries one record per interesting case: a long-dormant
// high-value savings account, a recently active account, a dormant
// medium-balance account and a dormant fixed deposit with no date.
const fixtureCSV = `account_id,account_type,branch,customer_type,account_balance,kyc_status,account_status,last_transaction_date,email_contact_attempt,sms_contact_attempt,phone_call_attempt
ITG001,Savings,Downtown,Individual,"450,000.00",Expired,Dormant,2015-02-10,yes,yes,yes
ITG002,Current,Downtown,Corporate,50000,Valid,Active,2025-11-20,no,no,no
ITG003,Savings,Marina,Individual,120000,Valid,Dormant,2019-06-01,yes,no,no
ITG004,Fixed Deposit,Marina,Individual,80000,Expired,Dormant,,no,no,no
`

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

type IngestResponse struct {
	Dataset struct {
		ID           string `json:"id"`
		RecordCount  int    `json:"recordCount"`
		SkippedCount int    `json:"skippedCount"`
	} `json:"dataset"`
	Issues []struct {
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	} `json:"issues"`
}

type ClassifyRequest struct {
	DatasetID string `json:"datasetId"`
	Policy    string `json:"policy,omitempty"`
}

type RunResponse struct {
	ID           string `json:"id"`
	DatasetID    string `json:"datasetId"`
	Policy       string `json:"policy"`
	InputCount   int    `json:"inputCount"`
	MatchedCount int    `json:"matchedCount"`
	Accounts     []struct {
		AccountID          string  `json:"accountId"`
		YearsInactive      float64 `json:"yearsInactive"`
		MaturityStatus     string  `json:"maturityStatus"`
		RecommendedAction  string  `json:"recommendedAction"`
		RiskCategory       string  `json:"riskCategory"`
		CompliancePriority string  `json:"compliancePriority"`
	} `json:"accounts"`
	Summary struct {
		Total    int            `json:"total"`
		ByAction map[string]int `json:"byAction"`
		ByRisk   map[string]int `json:"byRisk"`
	} `json:"summary"`
	Metadata struct {
		TraceID       string `json:"traceId"`
		TotalMs       int64  `json:"totalMs"`
		EngineVersion string `json:"engineVersion"`
	} `json:"metadata"`
}

type AgentReport struct {
	Agent     string `json:"agent"`
	Processed int    `json:"processed"`
	Actioned  int    `json:"actioned"`
	Results   []struct {
		AccountID string `json:"accountId"`
		Status    string `json:"status"`
	} `json:"results"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func uploadFixture(t *testing.T, config TestConfig) IngestResponse {
	t.Helper()

	req, _ := http.NewRequest("POST", config.BaseURL+"/datasets?name=integration", strings.NewReader(fixtureCSV))
	req.Header.Set("Content-Type", "text/csv")

	resp, err := httpClient().Do(req)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, body)
	}

	var ir IngestResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		t.Fatalf("Failed to unmarshal ingest response: %v (body: %s)", err, body)
	}
	return ir
}

func classify(t *testing.T, config TestConfig, creq ClassifyRequest) RunResponse {
	t.Helper()

	body, _ := json.Marshal(creq)
	req, _ := http.NewRequest("POST", config.BaseURL+"/classify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		t.Fatalf("Classify request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, respBody)
	}

	var run RunResponse
	if err := json.Unmarshal(respBody, &run); err != nil {
		t.Fatalf("Failed to unmarshal run: %v (body: %s)", err, respBody)
	}
	return run
}

// ============================================================================
// SCENARIO 1: Ingestion with Diagnostics
// ============================================================================

func TestIngestDataset(t *testing.T) {
	/*
	   SCENARIO: Upload the four-account fixture

	   EXPECTED BEHAVIOR:
	   - All 4 rows parse; nothing is skipped
	   - ITG004 has no transaction date; the row is kept and a
	     missing_optional_field diagnostic is reported
	*/
	config := getTestConfig()
	ir := uploadFixture(t, config)

	if ir.Dataset.RecordCount != 4 {
		t.Errorf("Expected 4 records, got %d", ir.Dataset.RecordCount)
	}
	if ir.Dataset.SkippedCount != 0 {
		t.Errorf("Expected 0 skipped, got %d", ir.Dataset.SkippedCount)
	}

	hasMissingDate := false
	for _, issue := range ir.Issues {
		if issue.Kind == "missing_optional_field" {
			hasMissingDate = true
		}
	}
	if !hasMissingDate {
		t.Error("Expected missing_optional_field diagnostic for ITG004")
	}

	t.Logf("✓ Dataset %s ingested: %d records, %d issues", ir.Dataset.ID, ir.Dataset.RecordCount, len(ir.Issues))
}

// ============================================================================
// SCENARIO 2: General Inactivity Classification
// ============================================================================

func TestGeneralPolicyClassification(t *testing.T) {
	/*
	   SCENARIO: Classify the fixture with the general inactivity policy

	   EXPECTED BEHAVIOR:
	   - ITG001 (savings, ~11y stale): matched, ESCALATE, HIGH risk,
	     CRITICAL priority (expired KYC adds weight)
	   - ITG002 (current, recent activity): not matched
	   - ITG003 (savings, ~6y stale): matched, MEDIUM risk
	   - ITG004 (fixed deposit): outside this policy's account types
	*/
	config := getTestConfig()
	ir := uploadFixture(t, config)

	run := classify(t, config, ClassifyRequest{
		DatasetID: ir.Dataset.ID,
		Policy:    "general-inactivity",
	})

	if run.MatchedCount != 2 {
		t.Errorf("Expected 2 matched accounts, got %d", run.MatchedCount)
	}
	if run.Summary.Total != run.MatchedCount {
		t.Errorf("Summary total %d does not equal matched count %d", run.Summary.Total, run.MatchedCount)
	}
	if run.Metadata.EngineVersion == "" {
		t.Error("Missing metadata.engineVersion")
	}
	if run.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}

	for _, a := range run.Accounts {
		switch a.AccountID {
		case "ITG001":
			if a.RecommendedAction != "ESCALATE" {
				t.Errorf("ITG001: expected ESCALATE, got %s", a.RecommendedAction)
			}
			if a.RiskCategory != "HIGH" {
				t.Errorf("ITG001: expected HIGH risk, got %s", a.RiskCategory)
			}
			if a.CompliancePriority != "CRITICAL" {
				t.Errorf("ITG001: expected CRITICAL priority, got %s", a.CompliancePriority)
			}
		case "ITG003":
			if a.RiskCategory != "MEDIUM" {
				t.Errorf("ITG003: expected MEDIUM risk, got %s", a.RiskCategory)
			}
		default:
			t.Errorf("Unexpected account %s in run", a.AccountID)
		}
	}

	t.Logf("✓ Run %s: %d matched, actions=%v", run.ID, run.MatchedCount, run.Summary.ByAction)
}

// ============================================================================
// SCENARIO 3: Run Retrieval and Export
// ============================================================================

func TestRunRetrievalAndExport(t *testing.T) {
	config := getTestConfig()
	ir := uploadFixture(t, config)
	run := classify(t, config, ClassifyRequest{DatasetID: ir.Dataset.ID})

	// The run must come back from storage, not just the classify response
	resp, err := httpClient().Get(config.BaseURL + "/runs/" + run.ID)
	if err != nil {
		t.Fatalf("Get run failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var stored RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("Failed to decode stored run: %v", err)
	}
	if stored.MatchedCount != run.MatchedCount {
		t.Errorf("Stored run matched %d, expected %d", stored.MatchedCount, run.MatchedCount)
	}

	// Export only the HIGH risk subset
	filter, _ := json.Marshal(map[string]string{"filter": `risk_category == "HIGH"`})
	expReq, _ := http.NewRequest("POST", config.BaseURL+"/runs/"+run.ID+"/export", bytes.NewReader(filter))
	expReq.Header.Set("Content-Type", "application/json")

	expResp, err := httpClient().Do(expReq)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	defer expResp.Body.Close()
	if expResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", expResp.StatusCode)
	}

	csvBody, _ := io.ReadAll(expResp.Body)
	if !strings.Contains(string(csvBody), "ITG001") {
		t.Error("Expected ITG001 in HIGH risk export")
	}
	if strings.Contains(string(csvBody), "ITG003") {
		t.Error("Did not expect ITG003 in HIGH risk export")
	}

	t.Logf("✓ Run retrieved and exported (%d bytes of CSV)", len(csvBody))
}

// ============================================================================
// SCENARIO 4: Compliance Agents
// ============================================================================

func TestComplianceAgents(t *testing.T) {
	/*
	   SCENARIO: Run the dormancy flag and transfer agents over the fixture

	   EXPECTED BEHAVIOR:
	   - flag-dormant actions the three non-active accounts
	   - cbuae-transfer actions only the accounts whose last transaction
	     predates the transfer cutoff; ITG004 has no date and never
	     qualifies
	*/
	config := getTestConfig()
	ir := uploadFixture(t, config)

	runAgent := func(name string) AgentReport {
		body, _ := json.Marshal(map[string]string{"datasetId": ir.Dataset.ID})
		req, _ := http.NewRequest("POST", config.BaseURL+"/agents/"+name, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient().Do(req)
		if err != nil {
			t.Fatalf("Agent %s failed: %v", name, err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Agent %s: expected status 200, got %d: %s", name, resp.StatusCode, respBody)
		}

		var rep AgentReport
		if err := json.Unmarshal(respBody, &rep); err != nil {
			t.Fatalf("Agent %s: failed to unmarshal report: %v", name, err)
		}
		return rep
	}

	flagRep := runAgent("flag-dormant")
	if flagRep.Actioned != 3 {
		t.Errorf("flag-dormant: expected 3 actioned, got %d", flagRep.Actioned)
	}

	transferRep := runAgent("cbuae-transfer")
	for _, r := range transferRep.Results {
		if r.AccountID == "ITG004" {
			t.Error("cbuae-transfer: account with no transaction date must never be eligible")
		}
	}

	t.Logf("✓ Agents: flag-dormant actioned %d, cbuae-transfer actioned %d", flagRep.Actioned, transferRep.Actioned)
}

// ============================================================================
// SCENARIO 5: Input Validation
// ============================================================================

func TestValidation(t *testing.T) {
	config := getTestConfig()

	post := func(path, body string) int {
		req, _ := http.NewRequest("POST", config.BaseURL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := httpClient().Do(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode
	}

	if code := post("/classify", `{}`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for classify without datasetId, got %d", code)
	}
	if code := post("/classify", `{"datasetId":"no-such-dataset"}`); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown dataset, got %d", code)
	}
	if code := post("/agents/no-such-agent", `{"datasetId":"x"}`); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown agent, got %d", code)
	}

	t.Logf("✓ Validation responses as expected")
}
