// internal/game/property_test.go
package game

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// candidateActions lists every action actor could plausibly submit in s.
func candidateActions(s State, actor string) []Action {
	acts := []Action{DrawAction(), PassAction(), CallLastCardAction()}
	for _, c := range s.Hands[actor] {
		acts = append(acts, PlayAction(c.ID))
	}
	for _, col := range PlayableColors {
		acts = append(acts, ChooseColorAction(col))
	}
	for _, pid := range s.PlayerOrder {
		acts = append(acts, ChallengeAction(pid))
	}
	return acts
}

// TestRandomGamesKeepInvariants plays seeded random games to completion and
// checks conservation and turn ownership after every accepted action.
func TestRandomGamesKeepInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 12; seed++ {
		rng := rand.New(rand.NewPCG(seed, 99))
		e := seededEngine(seed)

		players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}[:2+int(seed%5)]
		s, err := e.InitializeGame(players)
		require.NoError(t, err)
		deckSize := s.CardCount()

		for step := 0; step < 3000 && !s.Finished(); step++ {
			actor := players[rng.IntN(len(players))]
			acts := candidateActions(s, actor)
			a := acts[rng.IntN(len(acts))]

			next, _, err := e.Apply(s, actor, a)
			if err != nil {
				require.True(t, IsRejection(err), "seed %d step %d: %v", seed, step, err)
				continue
			}
			switch a.Type {
			case ActionPlay, ActionDraw, ActionPass:
				require.Equal(t, s.CurrentPlayer(), actor, "seed %d: %s accepted out of turn", seed, a.Type)
			}
			require.NoError(t, next.Check(), "seed %d step %d after %s", seed, step, a.Type)
			require.Equal(t, deckSize, next.CardCount())
			require.GreaterOrEqual(t, next.TurnNumber, s.TurnNumber)
			for pid, called := range next.UnoCalledBy {
				if called && len(next.Hands[pid]) > 2 {
					t.Fatalf("seed %d: %s still flagged with %d cards", seed, pid, len(next.Hands[pid]))
				}
			}
			if s.Winner != "" {
				require.Equal(t, s.Winner, next.Winner)
			}
			s = next
		}
	}
}
