// Command arbot runs the conversation core behind an interactive shell.
// It stands in for the browser UI/AR layers: it forwards typed input to
// the engine and prints puppet replies with their animation hint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/shutinglu0913/arbot-puppet/internal/chat"
	"github.com/shutinglu0913/arbot-puppet/internal/config"
	"github.com/shutinglu0913/arbot-puppet/internal/engine"
	"github.com/shutinglu0913/arbot-puppet/internal/event"
	"github.com/shutinglu0913/arbot-puppet/internal/llm/provider"
	"github.com/shutinglu0913/arbot-puppet/internal/observability"
)

// Version is set via ldflags.
var Version = "dev"

var (
	configFile = flag.String("config", getEnv("ARBOT_CONFIG", "config/arbot.yaml"), "Configuration file")
	userID     = flag.String("user", "", "User identifier for the session")
)

func main() {
	flag.Parse()

	log.Printf("Starting arbot v%s", Version)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	observability.InitMetrics()
	if err := observability.InitTracing(observability.TracingConfig{
		Exporter: cfg.Observability.TracesExporter,
	}); err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.ShutdownTracing(ctx)
	}()

	var obsServer *observability.Server
	if port := cfg.Observability.MetricsPort; port > 0 {
		obsServer = observability.NewServer(port)
		go func() {
			log.Printf("Serving metrics on :%d", port)
			if err := obsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	prov, err := provider.New(provider.Config{
		Name:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout.Std(),
	})
	if err != nil {
		log.Fatalf("provider: %v", err)
	}
	prov = provider.Limit(provider.Instrument(prov), cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	eng := engine.New(cfg, prov, nil)

	// The shell plays the puppet/UI collaborator: it renders replies
	// and the animation hint the 3D layer would act on.
	eng.Bus().Subscribe(event.TopicMessageReceived, func(ev event.Event) {
		if ev.Message == nil || ev.Message.Sender != chat.SenderPuppet {
			return
		}
		hint := ev.Message.MetadataString(chat.MetaAnimationHint, engine.HintTalking)
		fmt.Printf("puppet (%s)> %s\n", hint, ev.Message.Text)
	})
	eng.Bus().Subscribe(event.TopicError, func(ev event.Event) {
		log.Printf("[shell] turn error: %v", ev.Err)
	})

	if err := eng.Initialize(*userID); err != nil {
		log.Fatalf("initialize: %v", err)
	}

	repl(eng)

	eng.EndSession()
	if obsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obsServer.Shutdown(ctx)
	}
}

func repl(eng *engine.Engine) {
	line := liner.NewLiner()
	defer func() {
		_ = line.Close()
	}()
	line.SetCtrlCAborts(true)

	fmt.Println(`Type a message, or "/end" to finish the conversation.`)
	for {
		input, err := line.Prompt("you> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("[shell] read: %v", err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/end" || input == "/quit" {
			return
		}
		line.AppendHistory(input)

		if msg := eng.ProcessUserMessage(context.Background(), input); msg == nil {
			fmt.Println("(message dropped)")
		}
	}
}

func loadConfig() (*config.Config, error) {
	path := *configFile
	// The default path is optional; an explicitly given one is not.
	if !isFlagSet("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	return config.Load(path)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
