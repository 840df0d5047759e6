package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type conversationView struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
	UpdatedTS    int64    `json:"updated_ts"`
	Unread       int      `json:"unread"`
}

type messageView struct {
	ID            string `json:"id"`
	Conversation  string `json:"conversation"`
	Sender        string `json:"sender"`
	Text          string `json:"text,omitempty"`
	TS            int64  `json:"ts"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Pending       bool   `json:"pending,omitempty"`
	Failed        bool   `json:"failed,omitempty"`
}

func runConversations(cmd *cobra.Command, args []string) {
	requireUser()
	var out struct {
		Conversations []conversationView `json:"conversations"`
	}
	if err := doJSON("GET", "/v1/conversations", nil, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(out.Conversations) == 0 {
		fmt.Println("(no conversations)")
		return
	}
	for _, c := range out.Conversations {
		updated := time.Unix(0, c.UpdatedTS).Format(time.RFC3339)
		fmt.Printf("%s  kind=%s  participants=%s  updated=%s  unread=%d\n",
			c.ID, c.Kind, strings.Join(c.Participants, ","), updated, c.Unread)
	}
}

func runOpen(cmd *cobra.Command, args []string) {
	requireUser()
	var out conversationView
	req := map[string]string{"kind": "direct", "peer": args[0]}
	if err := doJSON("POST", "/v1/conversations/open", req, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	printJSON(out)
}

func runHistory(cmd *cobra.Command, args []string) {
	requireUser()
	convID := args[0]
	// opening attaches the session so the window is populated
	var page struct {
		Messages []messageView `json:"messages"`
		HasMore  bool          `json:"has_more"`
	}
	if err := doJSON("GET", "/v1/conversations/"+convID+"/messages", nil, &page); err != nil {
		log.Fatalf("Error: %v", err)
	}
	for _, m := range page.Messages {
		ts := time.Unix(0, m.TS).Format("15:04:05")
		marker := ""
		if m.Pending {
			marker = " (pending)"
		}
		if m.Failed {
			marker = " (failed)"
		}
		fmt.Printf("[%s] %s: %s%s\n", ts, m.Sender, m.Text, marker)
	}
	if page.HasMore {
		fmt.Println("--- earlier history available ---")
	}
}

func runSend(cmd *cobra.Command, args []string) {
	requireUser()
	convID := args[0]
	text := strings.Join(args[1:], " ")
	var out messageView
	req := map[string]string{"text": text}
	if err := doJSON("POST", "/v1/conversations/"+convID+"/messages", req, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("queued %s (correlation %s)\n", out.ID, out.CorrelationID)
}

func runProfile(cmd *cobra.Command, args []string) {
	requireUser()
	var out map[string]interface{}
	if err := doJSON("POST", "/v1/profiles/batch", map[string][]string{"ids": args}, &out); err != nil {
		log.Fatalf("Error: %v", err)
	}
	printJSON(out)
}
