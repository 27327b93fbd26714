// cmd/soak/main.go plays whole games in one room with several racing
// submitters per seat, then checks that no card was lost or duplicated.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/sirupsen/logrus"
)

var painters = map[game.Color]func(string, ...interface{}) string{
	game.ColorRed:    color.New(color.FgHiRed).SprintfFunc(),
	game.ColorYellow: color.New(color.FgHiYellow).SprintfFunc(),
	game.ColorGreen:  color.New(color.FgHiGreen).SprintfFunc(),
	game.ColorBlue:   color.New(color.FgHiCyan).SprintfFunc(),
	game.ColorWild:   color.New(color.FgHiMagenta, color.Bold).SprintfFunc(),
}

func paint(c game.Card) string {
	p, ok := painters[c.Color]
	if !ok {
		return c.String()
	}
	return p("%s", c.String())
}

func describe(ev *game.Event) string {
	if ev == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-18s", ev.Player, ev.Type)
	if ev.Card != nil {
		b.WriteString(" " + paint(*ev.Card))
	}
	if ev.DrawnCard != nil {
		b.WriteString(" drew " + paint(*ev.DrawnCard))
	}
	if ev.ChosenColor != "" {
		if p, ok := painters[ev.ChosenColor]; ok {
			b.WriteString(" -> " + p("%s", ev.ChosenColor))
		}
	}
	if ev.Victim != "" {
		fmt.Fprintf(&b, " victim=%s stacked=%d", ev.Victim, ev.Stacked)
	}
	return b.String()
}

type stats struct {
	accepted atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
}

// choose picks the action a simple bot would take for player, or false when
// it is not their move.
func choose(s game.State, player string, rng *rand.Rand) (game.Action, bool) {
	if s.Finished() {
		return game.Action{}, false
	}
	if s.MustChooseColor {
		if s.PendingColorPlayer != player {
			return game.Action{}, false
		}
		return game.ChooseColorAction(game.PlayableColors[rng.IntN(len(game.PlayableColors))]), true
	}
	for _, pid := range s.PlayerOrder {
		if pid != player && len(s.Hand(pid)) == 1 && !s.UnoCalledBy[pid] && rng.IntN(4) == 0 {
			return game.ChallengeAction(pid), true
		}
	}
	if s.CurrentPlayer() != player {
		return game.Action{}, false
	}
	hand := s.Hand(player)
	if len(hand) == 2 && !s.UnoCalledBy[player] && rng.IntN(2) == 0 {
		return game.CallLastCardAction(), true
	}
	if playable := s.PlayableFor(player); len(playable) > 0 {
		return game.PlayAction(playable[rng.IntN(len(playable))].ID), true
	}
	if !s.PlayerHasDrawn {
		return game.DrawAction(), true
	}
	return game.PassAction(), true
}

// racer submits moves for player until the game ends or ctx expires.
func racer(ctx context.Context, svc *room.Service, code, player string, seed uint64, st *stats, logger *logrus.Logger) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for ctx.Err() == nil {
		r, _, err := svc.Get(ctx, code)
		if err != nil {
			st.failed.Add(1)
			return
		}
		if r.Status != room.StatusPlaying {
			return
		}
		s, ok := r.State()
		if !ok {
			return
		}
		if err := s.Check(); err != nil {
			logger.Errorf("snapshot failed conservation check: %v", err)
			st.failed.Add(1)
			return
		}

		a, mine := choose(s, player, rng)
		if !mine {
			time.Sleep(time.Duration(rng.IntN(200)) * time.Microsecond)
			continue
		}
		out, err := svc.Apply(ctx, code, player, a)
		switch {
		case err == nil:
			st.accepted.Add(1)
			logger.Debug(describe(out.Event))
		case game.IsRejection(err):
			st.rejected.Add(1)
		default:
			st.failed.Add(1)
			logger.Warnf("%s: %v", player, err)
		}
	}
}

func playOne(ctx context.Context, svc *room.Service, code string, players []string, racers int, seed uint64, logger *logrus.Logger) (*room.Room, *stats, error) {
	if _, err := svc.Create(ctx, code, players[0], strings.ToUpper(players[0])); err != nil {
		return nil, nil, err
	}
	for _, p := range players[1:] {
		if _, err := svc.Join(ctx, code, p, strings.ToUpper(p)); err != nil {
			return nil, nil, err
		}
	}
	if _, err := svc.Start(ctx, code, players[0]); err != nil {
		return nil, nil, err
	}

	st := &stats{}
	var wg sync.WaitGroup
	for i, p := range players {
		for j := 0; j < racers; j++ {
			wg.Add(1)
			go func(p string, n uint64) {
				defer wg.Done()
				racer(ctx, svc, code, p, n, st, logger)
			}(p, seed+uint64(i*racers+j))
		}
	}
	wg.Wait()

	r, _, err := svc.Get(context.Background(), code)
	return r, st, err
}

func main() {
	var (
		games   = flag.Int("games", 10, "games to play")
		seats   = flag.Int("players", 4, "players per game")
		racers  = flag.Int("racers", 3, "concurrent submitters per player")
		seed    = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		timeout = flag.Duration("timeout", time.Minute, "time limit per game")
		verbose = flag.Bool("v", false, "log every accepted event")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(color.Output)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	players := make([]string, *seats)
	for i := range players {
		players[i] = fmt.Sprintf("p%d", i+1)
	}

	svc := room.NewService(store.NewMemory(), logger,
		room.WithEngine(game.NewEngine(game.WithRand(rand.New(rand.NewPCG(*seed, *seed+1))))),
		room.WithMaxPlayers(*seats),
	)

	bad := 0
	for g := 0; g < *games; g++ {
		code := fmt.Sprintf("SOAK%03d", g)
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		start := time.Now()
		r, st, err := playOne(ctx, svc, code, players, *racers, *seed+uint64(g)*1000, logger)
		cancel()
		if err != nil {
			logger.Errorf("%s: %v", code, err)
			bad++
			continue
		}

		s, _ := r.State()
		line := fmt.Sprintf("%s %-8s accepted=%-4d rejected=%-5d failed=%d in %s",
			code, r.Status, st.accepted.Load(), st.rejected.Load(), st.failed.Load(), time.Since(start).Round(time.Millisecond))
		if err := s.Check(); err != nil || r.Status != room.StatusFinished || st.failed.Load() > 0 {
			bad++
			fmt.Fprintln(color.Output, color.RedString("FAIL ")+line)
			if err != nil {
				fmt.Fprintln(color.Output, "  ", err)
			}
			continue
		}
		fmt.Fprintln(color.Output, color.GreenString("ok   ")+line)
		fmt.Fprintf(color.Output, "     winner %s, scores %s\n", color.New(color.Bold).Sprint(s.Winner), formatScores(r.Scores))
	}

	if bad > 0 {
		fmt.Fprintf(color.Output, "%s %d of %d games\n", color.RedString("failed"), bad, *games)
		os.Exit(1)
	}
}

func formatScores(scores map[string]int) string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, scores[id])
	}
	return strings.Join(parts, " ")
}
