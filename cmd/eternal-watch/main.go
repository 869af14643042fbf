package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/eternal-chess/internal/msgcat"
	"github.com/park285/eternal-chess/internal/obslog"
	"github.com/park285/eternal-chess/internal/watch"
	"github.com/park285/eternal-chess/pkg/eternaldto"
)

func main() {
	base := flag.String("url", envOr("ETERNAL_BASE_URL", "http://localhost:8080"), "server base URL")
	once := flag.Bool("once", false, "print the current state and stats, then exit")
	pgn := flag.Int("pgn", 0, "print the PGN of game n and exit")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init failed, using defaults: %v", err)
	}
	catalog, err := msgcat.New(os.Getenv("MESSAGES_DIR"))
	if err != nil {
		log.Fatalf("messages: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := watch.NewClient(*base, watch.WithTimeout(8*time.Second))

	switch {
	case *pgn > 0:
		text, err := client.GamePGN(ctx, *pgn)
		if err != nil {
			log.Fatalf("pgn %d: %v", *pgn, err)
		}
		fmt.Print(text)
		return
	case *once:
		st, err := client.State(ctx)
		if err != nil {
			log.Fatalf("/api/state error: %v", err)
		}
		fmt.Println(st.Headline)
		fmt.Println(st.FEN)
		fmt.Println(watch.StatusLine(catalog, st.State))
		return
	}

	w := watch.NewWatcher(wsURL(*base), 5, obslog.L())
	w.OnStateChange(func(s watch.ConnState) {
		log.Printf("WS state: %s", s)
	})
	err = w.Watch(ctx, func(ev eternaldto.Event) {
		fmt.Printf("[%s] %s\n", ev.Event, watch.StatusLine(catalog, ev.Data))
	})
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
}

func wsURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
