package main

import (
	"log"

	"github.com/spf13/cobra"
)

func runHealth(cmd *cobra.Command, args []string) {
	var out map[string]interface{}
	if err := doJSON("GET", "/admin/health", nil, &out); err != nil {
		// fall back to the unauthenticated probe when no admin key is set
		if perr := doJSON("GET", "/healthz", nil, &out); perr != nil {
			log.Fatalf("Error: %v", err)
		}
	}
	printJSON(out)
}

func runStats(cmd *cobra.Command, args []string) {
	var out map[string]interface{}
	if err := doJSON("GET", "/admin/stats", nil, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	printJSON(out)
}

func runSweep(cmd *cobra.Command, args []string) {
	var out map[string]interface{}
	if err := doJSON("POST", "/admin/jobs/sweep", nil, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	printJSON(out)
}

func runSign(cmd *cobra.Command, args []string) {
	var out map[string]string
	if err := doJSON("POST", "/v1/sign", map[string]string{"userId": args[0]}, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	printJSON(out)
}
