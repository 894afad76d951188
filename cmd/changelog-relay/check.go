package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rulyen46/changelog-relay/internal/server"
)

// checkResult is one probe outcome in the check report.
type checkResult struct {
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// checkReport is the full check output in JSON mode.
type checkReport struct {
	Timestamp     string        `json:"timestamp"`
	Checks        []checkResult `json:"checks"`
	OverallStatus string        `json:"overall_status"`
}

// checkCmd probes a running relay's health endpoints.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe a running relay",
	Long: `Probe a running relay's health endpoints.

Checks the public liveness endpoint, and when a token is supplied (via
--token or the RELAY_TOKEN environment variable) also checks the
authenticated detail and latest-changelog endpoints.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed

Example:
  changelog-relay check --url http://localhost:8080
  changelog-relay check --url http://localhost:8080 --token $RELAY_TOKEN -o json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("url", "http://localhost:8080", "base URL of the relay")
	checkCmd.Flags().String("token", "", "relay token (defaults to RELAY_TOKEN env var)")
	checkCmd.Flags().StringP("output", "o", "text", "output format: text or json")
	checkCmd.Flags().DurationP("timeout", "t", 10*time.Second, "per-request timeout")
	checkCmd.Flags().BoolP("verbose", "v", false, "show detailed output")
}

func runCheck(cmd *cobra.Command, args []string) error {
	baseURL, _ := cmd.Flags().GetString("url")
	token, _ := cmd.Flags().GetString("token")
	output, _ := cmd.Flags().GetString("output")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if output != "text" && output != "json" {
		return fmt.Errorf("output must be text or json, got %q", output)
	}
	if token == "" {
		token = os.Getenv("RELAY_TOKEN")
	}

	client := &http.Client{Timeout: timeout}
	report := checkReport{Timestamp: time.Now().Format(time.RFC3339)}
	success := true

	report.Checks = append(report.Checks, probe(client, "Liveness", baseURL+"/health", "", verbose, &success))

	if token != "" {
		report.Checks = append(report.Checks,
			probe(client, "Health Detail", baseURL+"/health/detail", token, verbose, &success))
		report.Checks = append(report.Checks,
			probe(client, "Latest Changelog", baseURL+"/feed/latest", token, verbose, &success))
	} else if verbose {
		fmt.Println("Authenticated checks skipped (no token provided)")
	}

	if success {
		report.OverallStatus = "PASS"
	} else {
		report.OverallStatus = "FAIL"
	}

	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else if !verbose {
		fmt.Printf("Health Check: %s\n", report.OverallStatus)
		for _, c := range report.Checks {
			fmt.Printf("%s: %s\n", c.Name, c.Status)
		}
	}

	if !success {
		// nonzero exit without cobra usage noise
		cmd.SilenceUsage = true
		return fmt.Errorf("health check failed")
	}
	return nil
}

// probe performs one GET check and records the outcome. A non-200 response
// or transport error flips success to false.
func probe(client *http.Client, name, url, token string, verbose bool, success *bool) checkResult {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		*success = false
		return checkResult{Name: name, Status: "ERROR", Details: map[string]any{"error": err.Error()}}
	}
	if token != "" {
		req.Header.Set(server.TokenHeader, token)
	}

	resp, err := client.Do(req)
	if err != nil {
		*success = false
		if verbose {
			fmt.Printf("%s: ERROR - %v\n", name, err)
		}
		return checkResult{Name: name, Status: "ERROR", Details: map[string]any{"error": err.Error()}}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		*success = false
		if verbose {
			fmt.Printf("%s: FAIL (status %d)\n", name, resp.StatusCode)
		}
		return checkResult{Name: name, Status: "FAIL", Details: map[string]any{
			"status_code": resp.StatusCode,
			"response":    string(body),
		}}
	}

	var data map[string]any
	_ = json.Unmarshal(body, &data)
	if verbose {
		fmt.Printf("%s: PASS\n", name)
		if status, ok := data["status"]; ok {
			fmt.Printf("  Status: %v\n", status)
		}
	}
	return checkResult{Name: name, Status: "PASS", Details: map[string]any{
		"status_code": resp.StatusCode,
		"response":    data,
	}}
}
