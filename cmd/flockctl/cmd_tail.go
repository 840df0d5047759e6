package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// runTail follows a conversation's server-sent event stream until
// interrupted.
func runTail(cmd *cobra.Command, args []string) {
	requireUser()
	convID := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	req, err := newRequest("GET", "/v1/conversations/"+convID+"/stream", nil)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")

	// the stream stays open indefinitely
	streamClient := &http.Client{Timeout: 0}
	resp, err := streamClient.Do(req)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Error: stream returned %s", resp.Status)
	}

	fmt.Printf("tailing %s (ctrl-c to stop)\n", convID)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			ts := time.Now().Format("15:04:05")
			fmt.Printf("[%s] %s %s\n", ts, event, data)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Fatalf("Error: stream closed: %v", err)
	}
}
