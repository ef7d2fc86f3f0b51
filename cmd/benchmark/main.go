// Benchmark tool for measuring Argus identity resolution accuracy.
//
// Usage:
//
//	benchmark --url http://localhost:8080 --profiles 200 --workers 10
//
// This tool:
//  1. Reads seeded profiles from a running Argus server
//  2. Derives probes from each profile: exact identifiers, misspelled names,
//     partial identifier sets, and decoys that belong to nobody
//  3. Sends every probe to POST /resolve
//  4. Reports top-1 accuracy, a match/no-match confusion matrix and latency
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/campusguard/argus/internal/domain"
)

// Probe is one resolution request with its known answer.
// An empty Truth marks a decoy that should not match.
type Probe struct {
	Kind        string
	Truth       string
	Identifiers domain.Identifiers
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Probe of a real entity matched that entity
	WrongEntity    int64 // Probe of a real entity matched someone else
	FalseNegatives int64 // Probe of a real entity found nothing
	FalsePositives int64 // Decoy matched an entity
	TrueNegatives  int64 // Decoy found nothing

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure identity resolution accuracy against a running Argus",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Argus base URL"},
			&cli.IntFlag{Name: "profiles", Value: 200, Usage: "profiles to derive probes from"},
			&cli.IntFlag{Name: "workers", Value: 10, Usage: "concurrent workers"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed for perturbations"},
			&cli.BoolFlag{Name: "verbose", Usage: "print each probe result"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("url"), c.Int("profiles"), c.Int("workers"), uint64(c.Int("seed")), c.Bool("verbose"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL string, limit, workers int, seed uint64, verbose bool) error {
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|            ARGUS BENCHMARK - Identity Resolution              |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nArgus URL:  %s\n", baseURL)
	fmt.Printf("Profiles:   %d\n", limit)
	fmt.Printf("Workers:    %d\n\n", workers)

	client := &http.Client{Timeout: 10 * time.Second}
	if err := checkHealth(ctx, client, baseURL); err != nil {
		return fmt.Errorf("argus not reachable at %s: %w", baseURL, err)
	}
	fmt.Println("Argus is healthy")

	profiles, err := fetchProfiles(ctx, client, baseURL, limit)
	if err != nil {
		return fmt.Errorf("failed to read profiles: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles found; seed the store first")
	}

	probes := buildProbes(profiles, rand.New(rand.NewPCG(seed, seed+1)))
	fmt.Printf("Loaded %d profiles, derived %d probes\n", len(profiles), len(probes))

	fmt.Printf("\nRunning benchmark with %d workers...\n", workers)
	start := time.Now()
	m := runBenchmark(ctx, client, baseURL, probes, workers, verbose)
	printResults(m, time.Since(start))
	return nil
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func fetchProfiles(ctx context.Context, client *http.Client, baseURL string, limit int) ([]*domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/profiles?limit=%d", baseURL, limit), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Profiles []*domain.Profile `json:"profiles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Profiles, nil
}

// buildProbes derives up to four probes per profile plus one decoy per ten profiles.
func buildProbes(profiles []*domain.Profile, rng *rand.Rand) []Probe {
	var probes []Probe
	for i, p := range profiles {
		for _, probe := range []Probe{
			{Kind: "card", Truth: p.EntityID, Identifiers: domain.Identifiers{CardID: p.CardID}},
			{Kind: "email+typo", Truth: p.EntityID, Identifiers: domain.Identifiers{Email: p.Email, Name: misspell(p.Name, rng)}},
			{Kind: "device+student", Truth: p.EntityID, Identifiers: domain.Identifiers{DeviceHash: p.DeviceHash, StudentID: p.StudentID}},
			{Kind: "name", Truth: p.EntityID, Identifiers: domain.Identifiers{Name: p.Name}},
		} {
			// Skip probes with no identifiers.
			if !probe.Identifiers.Empty() {
				probes = append(probes, probe)
			}
		}
		if i%10 == 0 {
			probes = append(probes, Probe{
				Kind:        "decoy",
				Identifiers: domain.Identifiers{CardID: fmt.Sprintf("X%08d", rng.IntN(1e8)), Email: "nobody@nowhere.invalid"},
			})
		}
	}
	return probes
}

// misspell swaps two adjacent letters.
func misspell(name string, rng *rand.Rand) string {
	r := []rune(name)
	if len(r) < 3 {
		return name
	}
	i := 1 + rng.IntN(len(r)-2)
	r[i], r[i+1] = r[i+1], r[i]
	return string(r)
}

func runBenchmark(ctx context.Context, client *http.Client, baseURL string, probes []Probe, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Probe, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for probe := range work {
				start := time.Now()
				result, err := resolve(ctx, client, baseURL, probe.Identifiers)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s %s -> %v\n", probe.Kind, probe.Truth, err)
					}
					continue
				}

				got := ""
				conf := 0.0
				if result.BestMatch != nil {
					got = result.BestMatch.EntityID
					conf = result.BestMatch.Confidence
				}

				ok := false
				switch {
				case probe.Truth == "" && got == "":
					atomic.AddInt64(&metrics.TrueNegatives, 1)
					ok = true
				case probe.Truth == "":
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case got == probe.Truth:
					atomic.AddInt64(&metrics.TruePositives, 1)
					ok = true
				case got == "":
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				default:
					atomic.AddInt64(&metrics.WrongEntity, 1)
				}

				if verbose {
					mark := "ok "
					if !ok {
						mark = "bad"
					}
					fmt.Printf("%s %-15s | want: %-8s | got: %-8s (%.2f)\n", mark, probe.Kind, probe.Truth, got, conf)
				}
			}
		}()
	}

	for _, p := range probes {
		work <- p
	}
	close(work)

	wg.Wait()

	return metrics
}

func resolve(ctx context.Context, client *http.Client, baseURL string, ids domain.Identifiers) (*domain.ResolutionResult, error) {
	body, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/resolve", bytes.NewReader(body))
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
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result domain.ResolutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\nPROBES\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                       Resolved")
	fmt.Println("                 match       no match")
	fmt.Printf("   Real entity  %8d     %8d   (TP + wrong entity, FN)\n", m.TruePositives+m.WrongEntity, m.FalseNegatives)
	fmt.Printf("   Decoy        %8d     %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Printf("   Wrong entity among matches: %d\n", m.WrongEntity)

	positives := m.TruePositives + m.WrongEntity + m.FalseNegatives
	top1 := ratio(m.TruePositives, positives)
	precision := ratio(m.TruePositives, m.TruePositives+m.WrongEntity+m.FalsePositives)
	recall := ratio(m.TruePositives, positives)
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\nRESOLUTION METRICS\n")
	fmt.Printf("   Top-1 Accuracy: %.4f  (probes of real entities resolved to the right one)\n", top1)
	fmt.Printf("   Precision:      %.4f  (of matches, how many were right)\n", precision)
	fmt.Printf("   Recall:         %.4f\n", recall)
	fmt.Printf("   F1-Score:       %.4f\n", f1)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Avg Latency:      %.2f ms\n", float64(m.ProcessingTimeMs)/float64(m.TotalProcessed))
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Println()
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
