package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/converse-ai/converse/internal/event"
	"github.com/converse-ai/converse/internal/session"
)

var (
	chatSession string
	chatDir     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session in the terminal.

Examples:
  converse chat
  converse chat --session 01JF8...  # Resume an existing session

Commands inside the session:
  /new          start a fresh session
  /load <id>    load an existing session
  /delete       delete the current session
  /quit         exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session ID to resume")
	chatCmd.Flags().StringVar(&chatDir, "directory", "", "Working directory")
}

func runChat(cmd *cobra.Command, args []string) error {
	workDir := chatDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	engine, _, err := buildEngine(workDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	// Tokens reach the terminal through the event bus, same as any
	// other engine observer.
	unsubDelta := event.Subscribe(event.StreamDelta, func(e event.Event) {
		if data, ok := e.Data.(event.StreamDeltaData); ok {
			fmt.Print(data.Delta)
		}
	})
	defer unsubDelta()

	unsubNotice := event.Subscribe(event.Notice, func(e event.Event) {
		if data, ok := e.Data.(event.NoticeData); ok {
			fmt.Fprintf(os.Stderr, "\n[%s] %s\n", data.Severity, data.Message)
		}
	})
	defer unsubNotice()

	ctx := context.Background()

	if chatSession != "" {
		if err := engine.LoadSessionMessages(ctx, chatSession); err != nil {
			fmt.Fprintf(os.Stderr, "Could not load session: %v\n", err)
		}
		for _, m := range engine.Messages() {
			fmt.Printf("%s: %s\n", m.Role, m.Content)
		}
	} else {
		engine.NewSession()
		if msgs := engine.Messages(); len(msgs) > 0 {
			fmt.Println(msgs[0].Content)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			engine.NewSession()
			if msgs := engine.Messages(); len(msgs) > 0 {
				fmt.Println(msgs[0].Content)
			}
			continue
		case strings.HasPrefix(line, "/load "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/load "))
			if err := engine.LoadSessionMessages(ctx, id); err != nil {
				fmt.Fprintf(os.Stderr, "Could not load session: %v\n", err)
				continue
			}
			for _, m := range engine.Messages() {
				fmt.Printf("%s: %s\n", m.Role, m.Content)
			}
			continue
		case line == "/delete":
			sess, ok := engine.Session()
			if !ok {
				fmt.Fprintln(os.Stderr, "No active session")
				continue
			}
			if err := engine.DeleteSession(ctx, sess.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Could not delete session: %v\n", err)
				continue
			}
			engine.NewSession()
			continue
		}

		if _, ok := engine.Session(); !ok {
			engine.NewSession()
		}

		err := engine.SendMessage(ctx, line)
		switch {
		case errors.Is(err, session.ErrSendInProgress):
			fmt.Fprintln(os.Stderr, "Still responding, hold on.")
		case errors.Is(err, session.ErrEmptyMessage):
			// Empty input is already filtered above.
		case err != nil:
			// The engine already synthesized an error message into the
			// transcript; nothing more to print here.
		}
		fmt.Println()
	}

	return scanner.Err()
}
