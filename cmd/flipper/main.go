// Command flipper is a terminal client for a Flip room.
package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Flip/internal/client"
	"github.com/dkeye/Flip/internal/config"
	"github.com/dkeye/Flip/internal/protocol"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	url, err := client.RoomURL(cfg.URL, cfg.Room)
	if err != nil {
		log.Fatal().Err(err).Msg("bad url")
	}
	userID := cfg.UserID
	if userID == "" {
		userID = uuid.NewString()[:8]
	}

	s := client.NewSession(url, cfg.Room, client.WSDialer{}, client.NewBackoff(cfg.InitialBackoff, cfg.MaxBackoff), client.Observers{
		OnStateChange: func(st client.State) { fmt.Printf("* %s\n", st) },
		OnMessage:     printMessage,
	})
	s.SetIdentity(client.Identity{UserID: userID, Avatar: cfg.Avatar})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	go readCommands(s, cancel)

	if err := <-done; err != nil {
		log.Error().Err(err).Msg("session ended")
	}
}

func printMessage(m protocol.Message) {
	switch msg := m.(type) {
	case *protocol.Joined:
		fmt.Printf("joined %s\n", msg.RoomID)
	case *protocol.Presence:
		ids := make([]string, 0, len(msg.Members))
		for _, mi := range msg.Members {
			ids = append(ids, mi.ID)
		}
		fmt.Printf("members: %s\n", strings.Join(ids, ", "))
	case *protocol.FlipStart:
		fmt.Printf("%s flips with seed %d\n", msg.UserID, msg.Seed)
	case *protocol.FlipResult:
		fmt.Printf("%s got %s\n", msg.UserID, msg.Payload.Result)
	default:
		fmt.Printf("%s from %s\n", m.MessageType(), m.Head().UserID)
	}
}

func readCommands(s *client.Session, quit context.CancelFunc) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "flip":
			seed := rand.Int64()
			if len(fields) > 1 {
				n, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					fmt.Println("seed must be an integer")
					continue
				}
				seed = n
			}
			s.Send(&protocol.FlipStart{Seed: seed})
		case "result":
			if len(fields) < 2 || (fields[1] != "heads" && fields[1] != "tails") {
				fmt.Println("usage: result <heads|tails>")
				continue
			}
			var seed *int64
			if v, ok := s.Seed(); ok {
				seed = &v
			}
			s.Send(&protocol.FlipResult{Payload: protocol.FlipOutcome{Result: fields[1], Seed: seed}})
		case "members":
			for _, m := range s.Members() {
				fmt.Println(" ", m.ID)
			}
		case "quit":
			s.Close()
			quit()
			return
		default:
			fmt.Println("commands: flip [seed], result <heads|tails>, members, quit")
		}
	}
	s.Close()
}
