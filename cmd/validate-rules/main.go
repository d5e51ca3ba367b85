package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/rules"
	"github.com/marcelsud/webhook-relay/sandbox"
)

/* validate-rules - Standalone CLI tool to validate rules.yaml
 * Usage: go run cmd/validate-rules/main.go [rules.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	rulesFile := "rules.yaml"
	if len(os.Args) > 1 {
		rulesFile = os.Args[1]
	}

	fmt.Printf("Validating rules file: %s\n", rulesFile)
	fmt.Println(strings.Repeat("-", 50))

	loader := rules.NewLoader()
	if err := loader.Load(rulesFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// user code is test-run in process; this tool never serves traffic
	sb := sandbox.New(sandbox.InProcessRunner{}, sandbox.Limits{})
	ctx := context.Background()

	endpoints := loader.Endpoints()
	failed := 0
	fmt.Printf("Loaded %d endpoint(s):\n", len(endpoints))

	for _, ep := range endpoints {
		fmt.Printf("\nEndpoint: %s\n", ep.ID)
		for _, d := range ep.Destinations {
			fmt.Printf("   Destination %-20s type=%s active=%t\n", d.ID, d.Type, d.IsActive)
		}

		sample := sandbox.NewContext(event.Event{
			ID:         "validate",
			EndpointID: ep.ID,
			Source:     "generic",
			CreatedAt:  time.Now().UTC(),
			Request: event.Request{
				Method:      "POST",
				Path:        "/",
				Headers:     map[string]string{"content-type": "application/json"},
				Body:        []byte("{}"),
				ContentType: "application/json",
			},
		})

		for i, r := range ep.Rules {
			fmt.Printf("\n   %d. Rule: %s -> %s (priority %d)\n", i+1, r.ID, r.DestinationID, r.Priority)

			if r.Filters.CustomFilter != "" {
				if _, err := sb.Filter(ctx, r.Filters.CustomFilter, sample); err != nil {
					fmt.Printf("      ❌ custom filter: %v\n", err)
					failed++
				} else {
					fmt.Printf("      ✓ custom filter runs\n")
				}
			}
			if strings.TrimSpace(r.Transformation) != "" {
				res := sb.Validate(ctx, r.Transformation, json.RawMessage("{}"))
				if !res.Valid {
					fmt.Printf("      ❌ transformation: %s\n", res.Error)
					failed++
				} else {
					fmt.Printf("      ✓ transformation runs\n")
				}
			}
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n❌ %d script(s) failed to run\n", failed)
		os.Exit(1)
	}
	fmt.Printf("\n✓ All rules are valid!\n")
}
