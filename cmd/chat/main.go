package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	serverURL string
	userID    string
	peerID    string
	listingID string
	token     string
	verbose   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Terminal client for marketplace chat",
	Long: `Opens one conversation with a peer, optionally scoped to a listing.

History is fetched over HTTP, then new messages arrive over the live
connection. The connection is restored automatically after a drop.
Type a line to send it, /quit to leave.

Example:
  chat --server ws://localhost:8083/ws --user alice --peer bob --listing L1`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8083/ws", "chat socket URL")
	rootCmd.Flags().StringVarP(&userID, "user", "u", "", "your user id")
	rootCmd.Flags().StringVarP(&peerID, "peer", "p", "", "the user to talk to")
	rootCmd.Flags().StringVarP(&listingID, "listing", "l", "", "listing the conversation is about")
	rootCmd.Flags().StringVar(&token, "token", "", "access token, when the server verifies identities")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	_ = rootCmd.MarkFlagRequired("user")
	_ = rootCmd.MarkFlagRequired("peer")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
