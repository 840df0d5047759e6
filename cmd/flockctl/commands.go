package main

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	userID    string
	userSig   string

	rootCmd = &cobra.Command{
		Use:   "flockctl",
		Short: "A cli to inspect and exercise a running flockd node",
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check node liveness and readiness",
		Run:   runHealth,
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show conversation, message and session counts",
		Run:   runStats,
	}

	signCmd = &cobra.Command{
		Use:   "sign [user-id]",
		Short: "Mint a user signature with a backend key",
		Args:  cobra.ExactArgs(1),
		Run:   runSign,
	}

	convsCmd = &cobra.Command{
		Use:   "conversations",
		Short: "List the user's conversations with unread counts",
		Run:   runConversations,
	}
	openCmd = &cobra.Command{
		Use:   "open [peer-id]",
		Short: "Open a direct conversation with a peer",
		Args:  cobra.ExactArgs(1),
		Run:   runOpen,
	}
	historyCmd = &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Show the loaded message window for a conversation",
		Args:  cobra.ExactArgs(1),
		Run:   runHistory,
	}
	sendCmd = &cobra.Command{
		Use:   "send [conversation-id] [text...]",
		Short: "Send a message into a conversation",
		Args:  cobra.MinimumNArgs(2),
		Run:   runSend,
	}
	tailCmd = &cobra.Command{
		Use:   "tail [conversation-id]",
		Short: "Follow a conversation's live event stream",
		Args:  cobra.ExactArgs(1),
		Run:   runTail,
	}

	profileCmd = &cobra.Command{
		Use:   "profile [user-id...]",
		Short: "Fetch user profiles in a batch",
		Args:  cobra.MinimumNArgs(1),
		Run:   runProfile,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Trigger a stale-typing sweep now",
		Run:   runSweep,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "flockd base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (frontend, backend or admin)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "acting user id")
	rootCmd.PersistentFlags().StringVar(&userSig, "signature", "", "HMAC signature for the acting user")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(convsCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(sweepCmd)
}
