// Command deepai is a terminal client for the DeepAI chat backend.
//
// Usage:
//
//	export DEEPAI_API_URL="https://deepai.example.com/api"
//	deepai login --email me@example.com --password secret
//	deepai
//
// Inside a chat:
//
//	/exit - Leave the program
//	/model <name> - Switch the chat model
//	/mode <mode> - Switch the AI mode
//	<message> - Send a message
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "deepai",
	Short: "DeepAI terminal client",
	Long:  `Chat with the DeepAI backend from the terminal, or bridge it to local front ends.`,
	Args:  cobra.NoArgs,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.AddCommand(
		chatCmd,
		loginCmd,
		logoutCmd,
		sessionsCmd,
		modelsCmd,
		promptsCmd,
		kbCmd,
		imageCmd,
		serveCmd,
	)
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", "", "Environment file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
