// Command cadtalk is an HTTP-free demo driver for the conversational
// CAD engine: it starts one session and reads utterances from stdin
// line by line, printing the response after every turn and the
// parameter table, operation list and edit history after every turn
// that neither fails nor asks for clarification, the same REPL shape cmd/server/main.go used
// for its REST server's startup/shutdown logging but driven from a
// terminal instead of a listener.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/smilemakc/cadtalk"
	"github.com/smilemakc/cadtalk/internal/config"
	"github.com/smilemakc/cadtalk/internal/infralog"
)

func main() {
	var (
		sessionID = flag.String("session", "demo", "session id to start")
	)
	flag.Parse()

	cfg := config.Load()
	log := infralog.Setup(cfg.LogLevel)

	engine, err := cadtalk.New(cfg)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if _, err := engine.StartSession(ctx, *sessionID); err != nil {
		log.Error("failed to start session", "error", err, "session", *sessionID)
		os.Exit(1)
	}
	log.Info("session started", "session", *sessionID, "llm_provider", cfg.LLMProvider)

	fmt.Printf("cadtalk demo — session %q. Type a modeling request, or \"quit\" to exit.\n", *sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		result, err := engine.SubmitTurn(ctx, *sessionID, text, nil, "")
		if err != nil {
			log.Error("turn failed", "error", err, "session", *sessionID)
			continue
		}

		fmt.Printf("[%s] %s\n", result.MessageType, result.Content)
		if result.RequiresClarification {
			for _, q := range result.ClarificationQuestions {
				fmt.Printf("  ? %s\n", q)
			}
			continue
		}

		printSessionState(engine, ctx, *sessionID)
	}

	log.Info("session ended", "session", *sessionID)
}

func printSessionState(engine *cadtalk.Engine, ctx context.Context, sessionID string) {
	view, err := engine.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	history, err := engine.EditHistory(ctx, sessionID)
	if err != nil {
		history = nil
	}
	cadtalk.DisplaySession(view, history)
}
