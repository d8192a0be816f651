// Command colorgame-tui plays the color guessing game in a truecolor terminal.
//
// The game runs in-process; no server is needed. Logs go to -log (default:
// discarded) so they never draw over the board.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/config"
	"github.com/robalobadob/colorgame/internal/game"
	"github.com/robalobadob/colorgame/internal/logging"
	"github.com/robalobadob/colorgame/internal/tui"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	seed := flag.Uint64("seed", 0, "non-zero seed for reproducible rounds")
	mute := flag.Bool("mute", false, "disable sound")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if err := run(*configPath, *seed, *mute, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "colorgame: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, seed uint64, mute bool, logPath string) error {
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}

	cfg, err := config.Load(configPath)
	logging.Setup(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = cfg.Seed
	}

	sampler := color.NewRandomSampler()
	if seed != 0 {
		sampler = color.NewSeededSampler(seed)
	}

	clock := clockwork.NewRealClock()
	ctrl := game.NewController(game.New("local", cfg.Rules, sampler, clock.Now()), sampler, clock)

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	var sound tui.Sound = tui.Mute{}
	if !mute {
		if b, err := tui.NewBeeper(); err != nil {
			// Non-fatal, the game runs without sound
			log.Warn().Err(err).Msg("audio unavailable")
		} else {
			defer b.Close()
			sound = b
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.Start(ctx)
	defer ctrl.Stop()

	log.Info().Uint64("seed", seed).Msg("terminal game started")
	return tui.New(screen, ctrl, sound).Run(ctx)
}
