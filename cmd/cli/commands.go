package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/deepai/deepai-client/pkg/image"
	"github.com/deepai/deepai-client/pkg/knowledge"
	"github.com/deepai/deepai-client/pkg/prompt"
	"github.com/deepai/deepai-client/pkg/server"
	"github.com/deepai/deepai-client/pkg/store"
	"github.com/deepai/deepai-client/pkg/transcript"
)

// withApp builds the app for the duration of one command.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(envFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat interface (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the tokens",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("DEEPAI_PASSWORD")
		}
		if err := a.auth.Login(cmd.Context(), loginEmail, password); err != nil {
			return err
		}
		info := a.users.Info()
		fmt.Printf("Signed in as %s (%s)\n", info.Email, a.users.Type())
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored tokens",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := a.auth.Logout(); err != nil {
			return fmt.Errorf("failed to logout: %w", err)
		}
		fmt.Println("Signed out")
		return nil
	}),
}

var sessionsMode string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		mode := store.AiMode(sessionsMode)
		if mode != "" && !mode.Valid() {
			return fmt.Errorf("unknown mode %q", sessionsMode)
		}
		if err := requireSignIn(a); err != nil {
			return err
		}
		if mode != "" {
			a.store.SetMode(mode)
		}
		list, err := a.store.FetchHistory(cmd.Context())
		if err != nil {
			return err
		}

		active := a.store.Active()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tKEY\tTITLE\tMESSAGES")
		for _, s := range list {
			marker := ""
			if s.Key == active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", marker, s.Key, s.Title, len(a.store.MessagesOf(s.Key)))
		}
		return w.Flush()
	}),
}

var exportOutput string

var sessionsExportCmd = &cobra.Command{
	Use:   "export [key]",
	Short: "Write a session as JSON lines, the active one by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		key := a.store.Active()
		if len(args) == 1 {
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid session key %q", args[0])
			}
			key = store.Key(n)
		}
		sess, ok := a.store.Session(key)
		if !ok {
			return fmt.Errorf("session %d not found", key)
		}

		out := io.Writer(os.Stdout)
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}
		return transcript.Write(out, sess, a.store.MessagesOf(key), time.Now())
	}),
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add a session from an exported transcript and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		h, msgs, err := transcript.Read(f)
		if err != nil {
			return err
		}
		sess := h.Session
		sess.Key = store.Pending
		sess.ID = ""
		sess.UserID = ""
		created, err := a.store.AddSession(cmd.Context(), sess, msgs)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %q as session %d with %d messages\n", created.Title, created.Key, len(msgs))
		return nil
	}),
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List chat models available to the signed in user",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		a.refresh(cmd.Context())
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLABEL\tAVAILABLE")
		for _, ch := range a.catalog.Choices() {
			fmt.Fprintf(w, "%s\t%s\t%t\n", ch.Name, ch.Label, !ch.Disabled)
		}
		return w.Flush()
	}),
}

var (
	promptsTerm     string
	promptsCategory string
	promptsPage     int
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Browse the role-play prompt library",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireSignIn(a); err != nil {
			return err
		}
		total, err := a.prompts.FetchPage(cmd.Context(), prompt.Query{
			Page:     promptsPage,
			Limit:    20,
			Category: promptsCategory,
			Term:     promptsTerm,
		})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tCATEGORY\tLIKES\tDESCRIPTION")
		for _, p := range a.prompts.List() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Title, p.Category, p.Likes, p.Description)
		}
		fmt.Fprintf(w, "\n%d of %d\n", len(a.prompts.List()), total)
		return w.Flush()
	}),
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local knowledge bases",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireSignIn(a); err != nil {
			return err
		}
		total, err := a.knowledge.FetchBases(cmd.Context(), knowledge.BaseQuery{Page: 1, Limit: 50})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, b := range a.knowledge.Bases() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Name, b.Description)
		}
		fmt.Fprintf(w, "\n%d total\n", total)
		return w.Flush()
	}),
}

var kbAttachCmd = &cobra.Command{
	Use:   "attach <knowledge-base-id>",
	Short: "Answer the active session from a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		active, ok := a.store.ActiveSession()
		if !ok {
			return errors.New("no active session")
		}
		id := args[0]
		a.store.SetMode(store.ModeLocalAI)
		a.store.UpdateSession(active.Key, store.SessionPatch{KnowledgeBaseID: &id})
		if active.ID != "" && a.auth.SignedIn() {
			if err := a.store.UpdateSessionMeta(cmd.Context(), active.ID, map[string]any{
				"knowledge_base_id": id,
				"ai_mode":           store.ModeLocalAI,
			}); err != nil {
				return err
			}
		}
		fmt.Printf("Session %d now answers from %s\n", active.Key, id)
		return nil
	}),
}

var kbIngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Add the text of a file to the local knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return a.knowledge.IngestText(cmd.Context(), string(data))
	}),
}

var imageModel string

var imageCmd = &cobra.Command{
	Use:   "image <query>",
	Short: "Generate an image and print its URL",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := requireSignIn(a); err != nil {
			return err
		}
		url, err := a.images.Generate(cmd.Context(), image.Request{Model: imageModel, Query: args[0]})
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	}),
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session store to local front ends over HTTP and websocket",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := cmd.Context()
		a.refresh(ctx)
		a.store.SetSelectedModel(a.defaultModel(ctx))

		addr := a.cfg.BridgeAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := a.runner.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Runner stopped", "error", err)
			}
		}()

		srv := server.New(a.store, a.runner)
		errc := make(chan error, 1)
		go func() { errc <- srv.Start(addr) }()
		fmt.Printf("Listening on http://%s\n", addr)

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		fmt.Println("Server stopped")
		return nil
	}),
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (or DEEPAI_PASSWORD)")
	loginCmd.MarkFlagRequired("email")

	sessionsCmd.Flags().StringVar(&sessionsMode, "mode", "", "AI mode to list, defaults to the current one")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, defaults to stdout")
	sessionsCmd.AddCommand(sessionsExportCmd, sessionsImportCmd)

	promptsCmd.Flags().StringVar(&promptsTerm, "term", "", "Search term")
	promptsCmd.Flags().StringVar(&promptsCategory, "category", "", "Category")
	promptsCmd.Flags().IntVar(&promptsPage, "page", 1, "Page number")

	kbCmd.AddCommand(kbListCmd, kbAttachCmd, kbIngestCmd)

	imageCmd.Flags().StringVar(&imageModel, "model", "dall-e-3", "Image model")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, defaults to DEEPAI_BRIDGE_ADDR")
}
