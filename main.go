// ABOUTME: Entry point for the Parley interview practice session
// ABOUTME: Parses CLI flags, wires devices and transport, and runs one session
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parley-ai/parley-go/internal/capture"
	"github.com/parley-ai/parley-go/internal/channel"
	"github.com/parley-ai/parley-go/internal/config"
	"github.com/parley-ai/parley-go/internal/player"
	"github.com/parley-ai/parley-go/internal/prompt"
	"github.com/parley-ai/parley-go/internal/session"
	"github.com/parley-ai/parley-go/internal/transcript"
	"github.com/parley-ai/parley-go/internal/ui"
	"github.com/parley-ai/parley-go/internal/version"
)

var (
	configPath  = flag.String("config", "", "YAML config file path (optional)")
	duration    = flag.Int("duration", 0, "Session length in seconds (overrides config)")
	systemText  = flag.String("system", "", "System prompt for the interviewer (overrides config)")
	report      = flag.Bool("report", false, "Generate a feedback report after the session")
	logFile     = flag.String("log-file", "parley.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	// Local .env is optional
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *duration > 0 {
		cfg.Session.DurationSeconds = *duration
	}
	if *systemText != "" {
		cfg.Agent.SystemPrompt = *systemText
	}

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
		log.Printf("Starting %s %s", version.Product, version.Version)
	}

	var display *ui.TUI
	if useTUI {
		display = ui.New()
	}

	done := make(chan string, 1)
	eng := session.New(session.Config{
		SystemPrompt:  cfg.Agent.SystemPrompt,
		Duration:      cfg.Session.Duration(),
		CaptureRate:   cfg.Audio.CaptureRate,
		TransportRate: cfg.Audio.TransportRate,
		PlaybackRate:  cfg.Audio.PlaybackRate,
		BlockSize:     cfg.Audio.BlockSize,
		DialChannel: func(systemPrompt string, cb channel.Callbacks) (session.Channel, error) {
			return channel.Connect(channel.Config{
				Endpoint: cfg.Agent.Endpoint,
				APIKey:   cfg.Agent.APIKey,
				Model:    cfg.Agent.Model,
			}, systemPrompt, cb)
		},
		OpenMic: func(onSamples func([]float32)) (session.Microphone, error) {
			return capture.OpenDevice(cfg.Audio.CaptureRate, onSamples)
		},
		Output: player.NewOutput(),
	}, session.Callbacks{
		OnState: func(state session.State) {
			log.Printf("state: %v", state)
			if display != nil {
				display.SetState(state)
			}
		},
		OnRemaining: func(seconds int) {
			if display != nil {
				display.SetRemaining(seconds)
			}
		},
		OnTranscript: func(entries []transcript.Entry) {
			if display != nil {
				display.SetTranscript(entries)
			}
		},
		OnLevels: func(local, remote float64) {
			if display != nil {
				display.SetLevels(local, remote)
			}
		},
		OnError: func(err error) {
			log.Printf("session error: %v", err)
			if display != nil {
				display.SetError(err.Error())
			}
		},
		OnComplete: func(final string) {
			select {
			case done <- final:
			default:
			}
		},
	})

	if err := eng.Start(); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if display != nil {
		go handleControls(eng, display.Controls())
		go func() {
			if err := display.Run(); err != nil {
				log.Printf("tui error: %v", err)
			}
		}()
	}

	final := waitForEnd(eng, done, sigChan)
	if display != nil {
		display.Stop()
	}

	fmt.Println("\n--- Session Transcript ---")
	fmt.Println(final)

	if reportWanted(*report, cfg) && final != transcript.Placeholder {
		printReport(cfg, final)
	}
}

// loadConfig reads the config file when given, otherwise builds the
// default configuration from the environment
func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.Load(*configPath)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// handleControls forwards TUI key requests to the engine. Quit ends the
// live session like an OS signal would; the engine's completion still
// flows through OnComplete.
func handleControls(eng *session.Engine, controls *ui.Controls) {
	for {
		select {
		case muted := <-controls.Mute:
			log.Printf("mute: %v", muted)
			eng.ToggleMute(muted)
		case <-controls.End:
			log.Printf("end requested from TUI")
			eng.EndNow()
		case <-controls.Quit:
			log.Printf("quit requested from TUI")
			eng.EndNow()
			return
		}
	}
}

// waitForEnd blocks until the session completes, ending it first on an
// OS signal or a TUI quit
func waitForEnd(eng *session.Engine, done <-chan string, sigChan <-chan os.Signal) string {
	for {
		select {
		case final := <-done:
			return final
		case <-sigChan:
			log.Printf("shutdown signal received")
			eng.EndNow()
			select {
			case final := <-done:
				return final
			case <-time.After(5 * time.Second):
				log.Printf("teardown timed out, exiting")
				eng.Close()
				return transcript.Placeholder
			}
		}
	}
}

// reportWanted reports whether to generate the feedback report: the
// -report flag or the config's report.enabled, either suffices
func reportWanted(flagSet bool, cfg *config.Config) bool {
	return flagSet || cfg.Report.Enabled
}

// printReport asks the one-shot model for structured interview feedback
func printReport(cfg *config.Config, final string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	model := cfg.Report.Model
	client, err := prompt.NewClient(ctx, cfg.Agent.APIKey, model)
	if err != nil {
		log.Printf("report client error: %v", err)
		return
	}

	text := "You are an interview coach. Review the practice interview transcript below " +
		"and return JSON with three fields: \"strengths\" (array of strings), " +
		"\"improvements\" (array of strings), and \"overall\" (string, two sentences).\n\n" + final
	raw, err := client.Send(ctx, text, nil, "")
	if err != nil {
		log.Printf("report error: %v", err)
		return
	}

	fmt.Println("\n--- Feedback Report ---")
	fmt.Println(string(raw))
}
