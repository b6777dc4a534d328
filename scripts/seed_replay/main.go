// Command seed_replay sends the same seeded generate requests to two deployments (or one
// deployment twice) and reports any difference in the resulting seat plans.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type replayCase struct {
	Name     string          `json:"name"`
	Request  json.RawMessage `json:"request"`
	Critical bool            `json:"critical"`
}

type caseFile struct {
	Cases []replayCase `json:"cases"`
}

type endpoint struct {
	Base  string
	Token string
}

type comparison struct {
	Case      replayCase
	StatusA   int
	StatusB   int
	PlanMatch bool
	Error     error
	DurationA time.Duration
	DurationB time.Duration
}

// deterministicFields are the generate response keys that must not vary for a fixed seed.
var deterministicFields = []string{"success", "algorithm", "assignments", "diagnostics", "roomSummaries", "seed"}

func main() {
	var (
		baseA     string
		baseB     string
		prefix    string
		email     string
		password  string
		casesPath string
		timeout   time.Duration
	)

	flag.StringVar(&baseA, "base-a", "http://localhost:8080", "First API base URL")
	flag.StringVar(&baseB, "base-b", "", "Second API base URL (defaults to base-a)")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API prefix")
	flag.StringVar(&email, "email", os.Getenv("SEED_REPLAY_EMAIL"), "Login email")
	flag.StringVar(&password, "password", os.Getenv("SEED_REPLAY_PASSWORD"), "Login password")
	flag.StringVar(&casesPath, "cases", filepath.Join("scripts", "seed_replay", "cases.json"), "Path to JSON cases file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if baseB == "" {
		baseB = baseA
	}

	cases, err := loadCases(casesPath)
	if err != nil {
		log.Fatalf("failed to load cases: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	a, err := login(client, joinURL(baseA, prefix), email, password)
	if err != nil {
		log.Fatalf("login on %s: %v", baseA, err)
	}
	b, err := login(client, joinURL(baseB, prefix), email, password)
	if err != nil {
		log.Fatalf("login on %s: %v", baseB, err)
	}

	var (
		results  []comparison
		breaking int
		optional int
	)
	for _, c := range cases {
		res := compareCase(client, a, b, c)
		if res.Error != nil || res.StatusA != res.StatusB || !res.PlanMatch {
			if c.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadCases(path string) ([]replayCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file caseFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("no cases defined in %s", path)
	}
	for i, c := range file.Cases {
		var seeded struct {
			Seed *int64 `json:"seed"`
		}
		if err := json.Unmarshal(c.Request, &seeded); err != nil || seeded.Seed == nil {
			return nil, fmt.Errorf("case %d (%s) needs a request with a seed", i, c.Name)
		}
	}
	return file.Cases, nil
}

func joinURL(base, prefix string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Trim(prefix, "/")
}

func login(client *http.Client, base, email, password string) (endpoint, error) {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(base+"/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return endpoint{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return endpoint{}, fmt.Errorf("login status %d", resp.StatusCode)
	}
	var env struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return endpoint{}, err
	}
	if env.Data.AccessToken == "" {
		return endpoint{}, errors.New("login returned no token")
	}
	return endpoint{Base: base, Token: env.Data.AccessToken}, nil
}

func compareCase(client *http.Client, a, b endpoint, c replayCase) comparison {
	res := comparison{Case: c}

	statusA, bodyA, durA, err := generate(client, a, c.Request)
	if err != nil {
		res.Error = fmt.Errorf("first request failed: %w", err)
		return res
	}
	statusB, bodyB, durB, err := generate(client, b, c.Request)
	if err != nil {
		res.Error = fmt.Errorf("second request failed: %w", err)
		return res
	}

	res.StatusA, res.StatusB = statusA, statusB
	res.DurationA, res.DurationB = durA, durB
	res.PlanMatch, res.Error = plansEqual(bodyA, bodyB)
	return res
}

func generate(client *http.Client, ep endpoint, body json.RawMessage) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	req, err := http.NewRequest(http.MethodPost, ep.Base+"/seating/generate", bytes.NewReader(body))
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.Token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, data, time.Since(start), nil
}

// plansEqual compares the deterministic part of two generate envelopes. Proposal ids and
// timestamps differ per call and are ignored.
func plansEqual(a, b []byte) (bool, error) {
	pa, err := deterministicPart(a)
	if err != nil {
		return false, err
	}
	pb, err := deterministicPart(b)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(pa, pb), nil
}

func deterministicPart(body []byte) (map[string]interface{}, error) {
	var env struct {
		Data  map[string]interface{} `json:"data"`
		Error interface{}            `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if env.Data == nil {
		return map[string]interface{}{"error": env.Error}, nil
	}
	out := make(map[string]interface{}, len(deterministicFields))
	for _, key := range deterministicFields {
		out[key] = env.Data[key]
	}
	return out, nil
}

func printReport(results []comparison) {
	fmt.Println("Seed Replay Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.StatusA != res.StatusB || !res.PlanMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s\n", status, res.Case.Name)
		fmt.Printf("  A Status: %d (%s)\n", res.StatusA, res.DurationA)
		fmt.Printf("  B Status: %d (%s)\n", res.StatusB, res.DurationB)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Plan match: %t | Critical: %t\n", res.PlanMatch, res.Case.Critical)
		}
	}
}
