// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// console-bridge is a headless client for a profile host. It opens one
// websocket session and either prints every event it receives, issues
// a single call, sends a user message, or resumes a thread and prints
// its transcript. Output on stdout is one JSON object per line; logs go
// to stderr.
//
// Usage:
//
//	console-bridge [--config PATH] watch
//	console-bridge [--config PATH] call PROFILE METHOD [PARAMS-JSON]
//	console-bridge [--config PATH] send PROFILE THREAD TEXT...
//	console-bridge [--config PATH] resume PROFILE THREAD
//	console-bridge [--config PATH] profiles
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/console/bridge"
	"github.com/bureau-foundation/console/console"
	"github.com/bureau-foundation/console/dispatch"
	"github.com/bureau-foundation/console/lib/codec"
	"github.com/bureau-foundation/console/lib/config"
	"github.com/bureau-foundation/console/lib/process"
	"github.com/bureau-foundation/console/lib/version"
	"github.com/bureau-foundation/console/sidechannel"
	"github.com/bureau-foundation/console/store"
	"github.com/bureau-foundation/console/transcript"
	"github.com/bureau-foundation/console/transport"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
		model       string
		workingDir  string
	)
	flagSet := pflag.NewFlagSet("console-bridge", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to console.yaml (default: $CONSOLE_CONFIG, else built-in defaults)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.StringVar(&model, "model", "", "model for turns started by send")
	flagSet.StringVar(&workingDir, "cwd", "", "working directory for turns started by send")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return process.Usage("%v", err)
	}
	if showVersion {
		version.Print("console-bridge")
		return nil
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return process.Usage("a command is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	output := json.NewEncoder(os.Stdout)
	command, operands := args[0], args[1:]
	switch command {
	case "watch":
		return app.watch(ctx, output)
	case "call":
		if len(operands) < 2 || len(operands) > 3 {
			return process.Usage("usage: call PROFILE METHOD [PARAMS-JSON]")
		}
		paramsJSON := ""
		if len(operands) == 3 {
			paramsJSON = operands[2]
		}
		return app.call(ctx, output, operands[0], operands[1], paramsJSON)
	case "send":
		if len(operands) < 3 {
			return process.Usage("usage: send PROFILE THREAD TEXT...")
		}
		params := dispatch.TurnParams{Model: model, WorkingDirectory: workingDir}
		return app.send(ctx, output, operands[0], operands[1], strings.Join(operands[2:], " "), params)
	case "resume":
		if len(operands) != 2 {
			return process.Usage("usage: resume PROFILE THREAD")
		}
		return app.resume(ctx, output, operands[0], operands[1])
	case "profiles":
		return app.profiles(ctx, output)
	default:
		return process.Usage("unknown command %q", command)
	}
}

// loadConfig reads --config, then $CONSOLE_CONFIG, then falls back to
// the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("CONSOLE_CONFIG") != "" {
		return config.Load()
	}
	// Parsing an empty document yields the defaults with variables
	// expanded.
	return config.Parse(nil, ".yaml")
}

type application struct {
	logger      *slog.Logger
	session     *transport.Session
	bridge      *bridge.Bridge
	sideChannel *sidechannel.Client
	state       *store.Store
	console     *console.Console
}

func open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	format, err := codec.ParseFormat(cfg.Server.WireFormat)
	if err != nil {
		return nil, err
	}
	handshakeTimeout, err := cfg.HandshakeTimeoutDuration()
	if err != nil {
		return nil, err
	}

	app := &application{logger: logger}

	sessionConfig := transport.Config{
		URL:              cfg.Server.URL,
		Token:            cfg.Server.Token,
		Format:           format,
		HandshakeTimeout: handshakeTimeout,
		Logger:           logger.With("component", "transport"),
	}
	var sideChannel console.SideChannel
	if cfg.Server.APIURL != "" {
		app.sideChannel, err = sidechannel.NewClient(sidechannel.Config{
			BaseURL: cfg.Server.APIURL,
			Token:   cfg.Server.Token,
			Logger:  logger.With("component", "sidechannel"),
		})
		if err != nil {
			return nil, err
		}
		sessionConfig.TokenSource = app.sideChannel
		sideChannel = app.sideChannel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.Database), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	app.state, err = store.Open(store.Config{
		Path:   cfg.State.Database,
		Logger: logger.With("component", "store"),
	})
	if err != nil {
		return nil, err
	}

	queue := dispatch.NewQueue(dispatch.QueueConfig{Store: app.state, Logger: logger.With("component", "dispatch")})
	if err := queue.Restore(ctx); err != nil {
		app.state.Close()
		return nil, fmt.Errorf("restoring queued messages: %w", err)
	}

	app.session = transport.NewSession(sessionConfig)
	app.bridge = bridge.New(bridge.Config{
		Transport: app.session,
		Logger:    logger.With("component", "bridge"),
	})
	app.console = console.New(console.Config{
		Bridge:      app.bridge,
		SideChannel: sideChannel,
		Transcripts: transcript.NewStore(transcript.StoreConfig{
			Snapshots: app.state,
			Logger:    logger.With("component", "transcript"),
		}),
		Queue:  queue,
		Logger: logger.With("component", "console"),
	})

	if err := app.session.Connect(ctx); err != nil {
		app.state.Close()
		return nil, err
	}
	logger.Info("connected", "url", cfg.Server.URL, "format", format.String())
	return app, nil
}

func (app *application) close() {
	app.session.Close()
	if err := app.state.Close(); err != nil {
		app.logger.Warn("closing state database", "error", err)
	}
}

// starter returns the side channel as a ProfileStarter, or nil.
func (app *application) starter() bridge.ProfileStarter {
	if app.sideChannel == nil {
		return nil
	}
	return app.sideChannel
}

// runConsole runs the console until ctx ends, draining interactions
// into handle. The returned function stops it and waits.
func (app *application) runConsole(ctx context.Context, handle func(bridge.Event)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.console.Run(ctx)
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-app.console.Interactions():
				handle(event)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (app *application) watch(ctx context.Context, output *json.Encoder) error {
	subscription := app.bridge.Subscribe(console.DefaultEventBuffer)
	defer subscription.Close()
	stopConsole := app.runConsole(ctx, func(bridge.Event) {})
	defer stopConsole()

	states := app.session.WatchState(4)
	defer states.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-states.C:
			if state == transport.StateError || state == transport.StateIdle {
				return errors.New("connection to profile host lost")
			}
		case event := <-subscription.C:
			if err := output.Encode(newEventRecord(event)); err != nil {
				return err
			}
		}
	}
}

func (app *application) call(ctx context.Context, output *json.Encoder, profileID, method, paramsJSON string) error {
	var params any
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return fmt.Errorf("parsing params: %w", err)
		}
	}
	var result any
	if err := app.bridge.CallWithRestart(ctx, app.starter(), profileID, method, params, &result); err != nil {
		return err
	}
	return output.Encode(result)
}

func (app *application) send(ctx context.Context, output *json.Encoder, profileID, threadID, text string, params dispatch.TurnParams) error {
	stopConsole := app.runConsole(ctx, func(event bridge.Event) {
		app.logger.Info("interaction not handled in send mode", "type", event.Type.String(), "method", event.Method)
	})
	defer stopConsole()

	result, err := app.console.SendMessage(ctx, console.SendRequest{
		ProfileID: profileID,
		ThreadID:  threadID,
		Text:      text,
		Params:    params,
	})
	if err != nil {
		return err
	}
	return output.Encode(result)
}

func (app *application) resume(ctx context.Context, output *json.Encoder, profileID, threadID string) error {
	if _, err := app.console.ResumeThread(ctx, profileID, threadID); err != nil {
		return err
	}
	for _, message := range app.console.Messages(threadID) {
		if err := output.Encode(message); err != nil {
			return err
		}
	}
	return nil
}

func (app *application) profiles(ctx context.Context, output *json.Encoder) error {
	if app.sideChannel == nil {
		return errors.New("server.api_url is not configured")
	}
	profiles, err := app.sideChannel.ListProfiles(ctx)
	if err != nil {
		return err
	}
	for _, profile := range profiles {
		if err := output.Encode(profile); err != nil {
			return err
		}
	}
	return nil
}

// eventRecord is the stdout form of a bridge event.
type eventRecord struct {
	Type      string     `json:"type"`
	ProfileID string     `json:"profileId"`
	Method    string     `json:"method,omitempty"`
	InboundID int64      `json:"inboundId,omitempty"`
	Params    *codec.Raw `json:"params,omitempty"`
	Event     string     `json:"event,omitempty"`
	Message   string     `json:"message,omitempty"`
	ExitCode  *int       `json:"exitCode,omitempty"`
}

func newEventRecord(event bridge.Event) eventRecord {
	record := eventRecord{
		Type:      event.Type.String(),
		ProfileID: event.ProfileID,
		Method:    event.Method,
		InboundID: event.InboundID,
		Params:    event.Params,
	}
	if event.Profile != nil {
		record.Event = string(event.Profile.Event)
		record.Message = event.Profile.Message
		record.ExitCode = event.Profile.ExitCode
	}
	return record
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `console-bridge: headless client for a profile host.

Usage:
  console-bridge [flags] watch
  console-bridge [flags] call PROFILE METHOD [PARAMS-JSON]
  console-bridge [flags] send PROFILE THREAD TEXT...
  console-bridge [flags] resume PROFILE THREAD
  console-bridge [flags] profiles

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
