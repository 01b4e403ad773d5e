// Command call-sim plays a voice call in the terminal: each input line is one
// caller utterance and the agent's replies are printed as they would be
// spoken. It uses the configured NLU provider, or local patterns without one.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/wolfman30/autoparts-voice-agent/cmd/mainconfig"
	"github.com/wolfman30/autoparts-voice-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/session"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: "warn", Format: "text", Output: os.Stderr})

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	llm, err := bootstrap.BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build nlu client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	repo := leads.NewInMemoryRepository()
	opts := []dialogue.Option{}
	if llm.Client != nil {
		opts = append(opts, dialogue.WithClassifier(nlu.NewYesNoClassifier(llm.Client, llm.Model, logger, nlu.WithClassifyTimeout(cfg.NLUTimeout))))
	}
	machine := dialogue.NewMachine(session.NewMemoryStore(time.Hour), nlu.NewExtractor(llm.Client, llm.Model, logger, nlu.WithExtractTimeout(cfg.NLUTimeout)), repo, logger, opts...)

	callerID := strings.TrimSpace(os.Getenv("SIM_CALLER_ID"))
	if err := simulate(ctx, machine, "SIM-"+uuid.NewString(), callerID, os.Stdin, os.Stdout); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
	for _, lead := range mustList(ctx, repo) {
		fmt.Printf("\nlead %s: %s, %s, %s, %s (%s)\n", lead.ID, lead.ClientName, lead.PhoneNumber, lead.PartRequested, lead.Vehicle(), lead.Zip)
	}
}

// simulate runs one call, one line of in per caller turn, until the agent
// ends the call or in is exhausted.
func simulate(ctx context.Context, d interface {
	Start(ctx context.Context, callID, callerPhone string) (dialogue.Reply, error)
	Handle(ctx context.Context, in dialogue.Turn) (dialogue.Reply, error)
}, callID, callerID string, in io.Reader, out io.Writer) error {
	reply, err := d.Start(ctx, callID, callerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "agent> %s\n", reply.Prompt)

	scanner := bufio.NewScanner(in)
	for reply.Continue {
		fmt.Fprint(out, "caller> ")
		if !scanner.Scan() {
			break
		}
		reply, err = d.Handle(ctx, dialogue.Turn{CallID: callID, Utterance: scanner.Text(), CallerPhone: callerID})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "agent> %s\n", reply.Prompt)
	}
	if reply.Transfer {
		fmt.Fprintln(out, "[call transferred to sales]")
	}
	return scanner.Err()
}

func mustList(ctx context.Context, repo leads.Repository) []*leads.LeadRecord {
	list, err := repo.List(ctx, leads.ListFilter{})
	if err != nil {
		return nil
	}
	return list
}
