// Command apitest runs smoke checks against a running AIRAC API and compares
// its answers with the local cycle engine.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zapponejosh/airac-api/internal/airac"
)

// APIResponse mirrors the server's response envelope.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type listData struct {
	Cycles []airac.Summary `json:"cycles"`
}

// TestRunner issues requests and keeps a tally.
type TestRunner struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	successCount int
	errorCount   int
	errors       []string
}

func NewTestRunner(baseURL, apiKey string) *TestRunner {
	return &TestRunner{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (tr *TestRunner) Run() {
	fmt.Println("==============================================")
	fmt.Println("AIRAC API Smoke Test")
	fmt.Println("==============================================")
	fmt.Printf("Base URL: %s\n", tr.baseURL)

	tr.testHealth()
	tr.testCurrent()
	tr.testKnownDates()
	tr.testNeighbours()
	tr.testYears()
	tr.testRange()
	tr.testEdgeCases()

	tr.printSummary()
}

func (tr *TestRunner) testHealth() {
	tr.printSection("Health Check")

	var health map[string]string
	if err := tr.getData("/health", &health); err != nil {
		tr.recordError("Health", err.Error())
		return
	}
	if health["status"] == "healthy" {
		tr.recordSuccess("Health check passed (current cycle " + health["current_cycle"] + ")")
	} else {
		tr.recordError("Health", fmt.Sprintf("Unexpected status: %s", health["status"]))
	}
}

func (tr *TestRunner) testCurrent() {
	tr.printSection("Current Cycle")

	var got airac.Summary
	if err := tr.getData("/api/v1/cycles/current", &got); err != nil {
		tr.recordError("Current", err.Error())
		return
	}
	tr.expect("Current", got, airac.Current().Summary())
}

func (tr *TestRunner) testKnownDates() {
	tr.printSection("Known Dates")

	known := map[string]string{
		"2018-02-17": "1802",
		"2019-05-13": "1905",
		"2020-01-01": "1913",
		"2020-01-02": "2001",
		"2020-12-31": "2014",
		"2022-05-23": "2205",
		"2024-02-29": "2402",
	}
	for date, ident := range known {
		var got airac.Summary
		if err := tr.getData("/api/v1/cycles/date/"+date, &got); err != nil {
			tr.recordError(date, err.Error())
			continue
		}
		if got.Ident == ident {
			tr.recordSuccess(fmt.Sprintf("%s → %s (%s to %s)", date, got.Ident, got.Start, got.End))
		} else {
			tr.recordError(date, fmt.Sprintf("expected %s, got %s", ident, got.Ident))
		}
	}
}

func (tr *TestRunner) testNeighbours() {
	tr.printSection("Next / Previous")

	base := airac.Locate(2020, time.December, 31)
	for suffix, want := range map[string]airac.Cycle{"/next": base.Next(), "/previous": base.Previous()} {
		var got airac.Summary
		if err := tr.getData("/api/v1/cycles/date/2020-12-31"+suffix, &got); err != nil {
			tr.recordError(suffix, err.Error())
			continue
		}
		tr.expect("2020-12-31"+suffix, got, want.Summary())
	}
}

func (tr *TestRunner) testYears() {
	tr.printSection("Year Listings")

	for _, year := range []int{2019, 2020, 2024} {
		var data listData
		if err := tr.getData(fmt.Sprintf("/api/v1/cycles/year/%d", year), &data); err != nil {
			tr.recordError(fmt.Sprint(year), err.Error())
			continue
		}
		want := len(airac.CyclesInYear(year))
		if len(data.Cycles) == want {
			tr.recordSuccess(fmt.Sprintf("%d has %d cycles", year, want))
		} else {
			tr.recordError(fmt.Sprint(year), fmt.Sprintf("expected %d cycles, got %d", want, len(data.Cycles)))
		}
	}
}

func (tr *TestRunner) testRange() {
	tr.printSection("Range (API key)")

	path := "/api/v1/cycles/range?start=2022-05-23&end=2022-08-01"

	if resp, err := tr.getRaw(path, ""); err == nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			tr.recordSuccess("Range without key rejected")
		} else {
			tr.recordError("Range auth", fmt.Sprintf("expected 401, got %d", resp.StatusCode))
		}
	}

	if tr.apiKey == "" {
		fmt.Println("  - skipped authenticated range check (no -key)")
		return
	}

	var data listData
	if err := tr.getData(path, &data); err != nil {
		tr.recordError("Range", err.Error())
		return
	}
	if len(data.Cycles) == 3 {
		tr.recordSuccess("Range returned 3 cycles")
	} else {
		tr.recordError("Range", fmt.Sprintf("expected 3 cycles, got %d", len(data.Cycles)))
	}
}

func (tr *TestRunner) testEdgeCases() {
	tr.printSection("Edge Cases")

	for _, path := range []string{
		"/api/v1/cycles/date/invalid",
		"/api/v1/cycles/date/2022-02-30",
		"/api/v1/cycles/year/twenty",
	} {
		resp, err := tr.getRaw(path, "")
		if err != nil {
			tr.recordError(path, err.Error())
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusBadRequest {
			tr.recordSuccess(path + " rejected")
		} else {
			tr.recordError(path, fmt.Sprintf("expected 400, got %d", resp.StatusCode))
		}
	}
}

// getData fetches path with the runner's key and decodes the envelope's
// data into target.
func (tr *TestRunner) getData(path string, target any) error {
	resp, err := tr.getRaw(path, tr.apiKey)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if !apiResp.Success {
		msg := "unknown error"
		if apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
	}

	return json.Unmarshal(apiResp.Data, target)
}

func (tr *TestRunner) getRaw(path, apiKey string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, tr.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return tr.client.Do(req)
}

func (tr *TestRunner) expect(name string, got, want airac.Summary) {
	if got == want {
		tr.recordSuccess(fmt.Sprintf("%s: %s (%s to %s)", name, got.Ident, got.Start, got.End))
		return
	}
	tr.recordError(name, fmt.Sprintf("expected %+v, got %+v", want, got))
}

func (tr *TestRunner) printSection(name string) {
	fmt.Printf("\n--- %s ---\n\n", name)
}

func (tr *TestRunner) recordSuccess(msg string) {
	tr.successCount++
	fmt.Printf("  ✓ %s\n", msg)
}

func (tr *TestRunner) recordError(context, msg string) {
	tr.errorCount++
	errStr := fmt.Sprintf("%s: %s", context, msg)
	tr.errors = append(tr.errors, errStr)
	fmt.Printf("  ✗ %s\n", errStr)
}

func (tr *TestRunner) printSummary() {
	fmt.Println()
	fmt.Println("==============================================")
	fmt.Printf("  Passed: %d\n", tr.successCount)
	fmt.Printf("  Failed: %d\n", tr.errorCount)

	if tr.errorCount > 0 {
		fmt.Println("\nFailures:")
		for _, err := range tr.errors {
			fmt.Printf("  • %s\n", err)
		}
	}
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the API")
	apiKey := flag.String("key", "", "API key for authenticated endpoints")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(*baseURL + "/health")
	if err != nil {
		fmt.Printf("Error: Cannot connect to %s\n", *baseURL)
		fmt.Println("Make sure the API server is running.")
		os.Exit(1)
	}
	resp.Body.Close()

	runner := NewTestRunner(*baseURL, *apiKey)
	runner.Run()

	if runner.errorCount > 0 {
		os.Exit(1)
	}
}
