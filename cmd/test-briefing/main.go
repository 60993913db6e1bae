package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/briefing"
	"github.com/shaktipath/safepath/server/internal/lib/safety"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "brief":
		handleBrief()
	case "test-connection":
		handleTestConnection()
	case "show-prompt":
		fmt.Println(briefing.SystemPrompt)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleBrief() {
	fs := flag.NewFlagSet("brief", flag.ExitOnError)
	source := fs.String("source", "India Gate, New Delhi", "Route source label")
	dest := fs.String("dest", "Connaught Place, New Delhi", "Route destination label")
	risk := fs.String("risk", "MEDIUM", "Risk level: LOW, MEDIUM or HIGH")
	police := fs.Int("police", 1, "Police stations along the route")
	liquor := fs.Int("liquor", 2, "Liquor shops along the route")
	warnings := fs.String("warnings", "", "Semicolon separated warnings")
	apiKey := fs.String("api-key", os.Getenv("PF__BRIEFING__OPENAI_API_KEY"), "OpenAI API key (or set PF__BRIEFING__OPENAI_API_KEY env var)")
	model := fs.String("model", "gpt-4o-mini", "OpenAI model to use")
	timeout := fs.Int("timeout", 30, "Timeout in seconds")

	fs.Parse(os.Args[2:])

	if *apiKey == "" {
		log.Fatal("OpenAI API key is required. Set PF__BRIEFING__OPENAI_API_KEY environment variable or use --api-key flag")
	}

	assessment := safety.DefaultAssessment()
	assessment.RiskLevel = safety.RiskLevel(strings.ToUpper(*risk))
	assessment.Warnings = nil
	if *warnings != "" {
		assessment.Warnings = strings.Split(*warnings, ";")
	}
	summary := briefing.NewRouteSummary(*source, *dest, "2.4 km", "31 mins", assessment)
	summary.PoliceStations = *police
	summary.LiquorShops = *liquor

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	start := time.Now()
	b, err := briefing.NewBriefer(*apiKey, *model).Brief(ctx, summary)
	if err != nil {
		log.Fatalf("Briefing failed: %v", err)
	}

	out, _ := json.MarshalIndent(b, "", "  ")
	fmt.Printf("Briefing (%v):\n%s\n", time.Since(start).Round(time.Millisecond), out)
}

func handleTestConnection() {
	fs := flag.NewFlagSet("test-connection", flag.ExitOnError)
	apiKey := fs.String("api-key", os.Getenv("PF__BRIEFING__OPENAI_API_KEY"), "OpenAI API key")
	model := fs.String("model", "gpt-4o-mini", "OpenAI model to use")

	fs.Parse(os.Args[2:])

	if err := briefing.NewBriefer(*apiKey, *model).HealthCheck(context.Background()); err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Println("✅ OpenAI connection OK")
}

func printUsage() {
	fmt.Printf(`test-briefing - Route safety briefing testing tool

USAGE:
    test-briefing <command> [options]

COMMANDS:
    brief             Generate a briefing for a hand-built route assessment
    test-connection   Check OpenAI API connectivity
    show-prompt       Print the system prompt
    help              Show this help message

EXAMPLES:
    test-briefing brief --risk HIGH --liquor 4 --warnings "Route is isolated at night"
    test-briefing test-connection --api-key sk-xxx
`)
}
