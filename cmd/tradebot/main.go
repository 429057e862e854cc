package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"steam-gotrade/internal/bot"
	"steam-gotrade/internal/dotenv"
	"steam-gotrade/internal/jsonl"
	"steam-gotrade/internal/state"
	"steam-gotrade/internal/steamweb"
	"steam-gotrade/internal/trade"
)

const defaultTradesOutFile = "./out/trades.jsonl"

type args struct {
	ownID     uint64
	partnerID uint64
	admins    []uint64

	communityURL string
	sessionID    string
	loginToken   string

	appID     int
	contextID int

	checkpointFile string
	outFile        string
	metricsAddr    string
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	parsed, err := parseArgs()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	runStartedAt := time.Now()
	tradeLog := jsonl.New(parsed.outFile)
	if tradeLog != nil {
		log.Printf("Trade log: %s (JSONL)", parsed.outFile)
		defer func() {
			if err := tradeLog.Close(); err != nil {
				log.Printf("[warn] trade log close: %v", err)
			}
		}()
	}

	ckpt, found, err := state.Load(parsed.checkpointFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if found {
		log.Printf("Checkpoint: %d trades completed, last id=%d", ckpt.CompletedTrades, ckpt.LastTradeID)
	}
	ckpt.OwnSteamID = parsed.ownID

	if parsed.metricsAddr != "" {
		go func() {
			log.Printf("Metrics: http://%s/metrics", parsed.metricsAddr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(parsed.metricsAddr, mux); err != nil {
				log.Printf("[warn] metrics listener: %v", err)
			}
		}()
	}

	client, err := steamweb.NewClient(parsed.communityURL, steamweb.Credentials{
		SessionID: parsed.sessionID,
		Token:     parsed.loginToken,
	})
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	session := trade.New(client, parsed.ownID, parsed.partnerID)
	runner := bot.New(session, bot.Config{
		Admins:    parsed.admins,
		AppID:     parsed.appID,
		ContextID: parsed.contextID,
	})
	var finalTradeID uint64
	runner.EventHook = func(ev trade.Event) {
		if ev.Type == trade.EventFinished {
			finalTradeID = ev.TradeID
		}
		logTradeEvent(tradeLog, sessionLogEvent(parsed.partnerID, ev))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Printf("Shutting down…")
		cancel()
	}()

	log.Printf("Steam trade bot")
	log.Printf("Own id: %d", parsed.ownID)
	log.Printf("Partner: %d", parsed.partnerID)
	log.Printf("App context: %d/%d", parsed.appID, parsed.contextID)
	if len(parsed.admins) > 0 {
		log.Printf("Admins: %s", joinIDs(parsed.admins))
	} else {
		log.Printf("Admins: (none; chat commands limited to help/ready/items)")
	}

	logTradeEvent(tradeLog, tradeLogEvent{Event: "start", Partner: parsed.partnerID})

	status, err := runner.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Fatalf("[fatal] %v", err)
	}

	log.Printf("Trade over: %s (uptime %s)", status, time.Since(runStartedAt).Round(time.Millisecond))
	logTradeEvent(tradeLog, tradeLogEvent{
		Event:    "shutdown",
		Partner:  parsed.partnerID,
		Status:   status.String(),
		UptimeMs: time.Since(runStartedAt).Milliseconds(),
	})

	if status == trade.StatusFinished {
		ckpt.RecordFinished(parsed.partnerID, finalTradeID)
		if err := state.Save(parsed.checkpointFile, ckpt); err != nil {
			log.Printf("[warn] checkpoint save: %v", err)
		}
	}
}

func parseArgs() (args, error) {
	var parsed args
	var ownFlag, partnerFlag, adminsFlag string

	flag.StringVar(&ownFlag, "own", os.Getenv("STEAM_ID"), "own 64-bit Steam id (env STEAM_ID)")
	flag.StringVar(&partnerFlag, "partner", os.Getenv("TRADE_PARTNER"), "partner 64-bit Steam id (env TRADE_PARTNER)")
	flag.StringVar(&adminsFlag, "admins", os.Getenv("TRADE_ADMINS"), "comma-separated Steam ids allowed to drive the trade (env TRADE_ADMINS)")
	flag.StringVar(&parsed.communityURL, "community-url", envOr("STEAM_COMMUNITY_URL", steamweb.DefaultBaseURL), "community base URL")
	flag.StringVar(&parsed.sessionID, "session-id", os.Getenv("STEAM_SESSION_ID"), "web session id cookie (env STEAM_SESSION_ID)")
	flag.StringVar(&parsed.loginToken, "token", os.Getenv("STEAM_LOGIN_TOKEN"), "steamLogin token cookie (env STEAM_LOGIN_TOKEN)")
	flag.IntVar(&parsed.appID, "appid", 440, "app id of the traded inventory")
	flag.IntVar(&parsed.contextID, "contextid", 2, "context id of the traded inventory")
	flag.StringVar(&parsed.checkpointFile, "checkpoint", "./out/tradebot.json", "checkpoint file path (empty disables)")
	flag.StringVar(&parsed.outFile, "out", defaultTradesOutFile, "JSONL trade log path (empty disables)")
	flag.StringVar(&parsed.metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "listen address for /metrics (empty disables)")
	flag.Parse()

	var err error
	if parsed.ownID, err = parseSteamID(ownFlag); err != nil {
		return parsed, fmt.Errorf("--own: %w", err)
	}
	if parsed.partnerID, err = parseSteamID(partnerFlag); err != nil {
		return parsed, fmt.Errorf("--partner: %w", err)
	}
	if strings.TrimSpace(parsed.sessionID) == "" {
		return parsed, fmt.Errorf("--session-id or STEAM_SESSION_ID required")
	}
	if strings.TrimSpace(parsed.loginToken) == "" {
		return parsed, fmt.Errorf("--token or STEAM_LOGIN_TOKEN required")
	}

	for _, part := range strings.Split(adminsFlag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := parseSteamID(part)
		if err != nil {
			return parsed, fmt.Errorf("--admins: %w", err)
		}
		parsed.admins = append(parsed.admins, id)
	}

	return parsed, nil
}

func parseSteamID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("steam id required")
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid steam id %q", s)
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func joinIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(id, 10))
	}
	return strings.Join(parts, ", ")
}
