package session

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"faint-memory-server/calcerrors"
	"faint-memory-server/catalog"
	"faint-memory-server/rules"
	"faint-memory-server/scoring"
)

const (
	mika   int64 = 1
	tressa int64 = 2
	vex    int64 = 3

	abyssalBug int64 = 301
	acidGas    int64 = 302
	voidTerror int64 = 303
)

func owner(id int64) *int64 { return &id }

func testReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := NewReference(
		[]rules.Entry{
			{Key: rules.KeyCapBase, Value: 30},
			{Key: rules.KeyCapIncrement, Value: 10},
			{Key: rules.KeyCostNeutral, Value: 20},
			{Key: rules.KeyCostMonster, Value: 80},
			{Key: rules.KeyCostForbidden, Value: 20},
			{Key: rules.KeyBonusEpiphany, Value: 10},
			{Key: rules.KeyBonusDivine, Value: 20},
			{Key: rules.KeyActionConvert, Value: 10},
		},
		[]catalog.Combatant{
			{ID: mika, Name: "Mika", Cards: []catalog.CardTemplate{
				{ID: 101, Name: "Rapid Slash", Type: catalog.Basic, CombatantID: owner(mika)},
				{ID: 102, Name: "Phantom Dance", Type: catalog.Unique, CombatantID: owner(mika)},
			}},
			{ID: tressa, Name: "Tressa", Cards: []catalog.CardTemplate{
				{ID: 201, Name: "Snipe", Type: catalog.Basic, CombatantID: owner(tressa)},
				{ID: 202, Name: "Command", Type: catalog.Unique, CombatantID: owner(tressa)},
			}},
			{ID: vex, Name: "Vex"},
		},
		[]catalog.CardTemplate{
			{ID: abyssalBug, Name: "Abyssal Bug", Type: catalog.Neutral, Tags: "Exhaust"},
			{ID: acidGas, Name: "Acid Gas", Type: catalog.Neutral},
			{ID: voidTerror, Name: "Void Terror", Type: catalog.Monster, Cost: 3},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func newTestSession(t *testing.T, ids ...int64) *Session {
	t.Helper()
	s, err := New(testReference(t), ids, 1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustPlayer(t *testing.T, s *Session, id int64) PlayerState {
	t.Helper()
	p, err := s.Player(id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewReference_RejectsIncompleteData(t *testing.T) {
	if _, err := NewReference(nil, []catalog.Combatant{{ID: 1, Name: "A"}}, nil); !errors.Is(err, calcerrors.ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData for empty rules, got %v", err)
	}
	if _, err := NewReference([]rules.Entry{{Key: "k", Value: 1}}, nil, nil); !errors.Is(err, calcerrors.ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData for empty roster, got %v", err)
	}
}

func TestNew_DealsStartingCards(t *testing.T) {
	s := newTestSession(t, tressa, mika)

	ids := s.PlayerIDs()
	if len(ids) != 2 || ids[0] != tressa || ids[1] != mika {
		t.Fatalf("expected selection order [2 1], got %v", ids)
	}
	p := mustPlayer(t, s, mika)
	if len(p.LiveCards) != 2 {
		t.Fatalf("expected 2 starting cards, got %d", len(p.LiveCards))
	}
	for i, c := range p.LiveCards {
		if !c.IsStarting() || c.IsCopy() || c.IsConverted() {
			t.Errorf("card %d: expected a plain starting card, got %+v", i, c)
		}
		if c.Tier != scoring.Normal {
			t.Errorf("card %d: expected Normal tier, got %s", i, c.Tier)
		}
	}
	if p.LiveCards[0].UniqueID != "1_start_0" {
		t.Errorf("expected id 1_start_0, got %q", p.LiveCards[0].UniqueID)
	}
	if p.FaintMemory != 0 || s.CanUndo(mika) {
		t.Error("a fresh player has no points and no undo")
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	ref := testReference(t)
	cases := []struct {
		name string
		ids  []int64
		tier int
		want error
	}{
		{"no players", nil, 1, calcerrors.ErrInvalidTeam},
		{"too many", []int64{1, 2, 3, 4}, 1, calcerrors.ErrInvalidTeam},
		{"duplicate", []int64{1, 1}, 1, calcerrors.ErrInvalidTeam},
		{"unknown", []int64{99}, 1, calcerrors.ErrInvalidTeam},
		{"tier too low", []int64{1}, 0, calcerrors.ErrInvalidTier},
		{"tier too high", []int64{1}, 16, calcerrors.ErrInvalidTier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(ref, tc.ids, tc.tier); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCopy_SecondMonsterCopyCosts90(t *testing.T) {
	s := newTestSession(t, mika)
	add, err := s.Add(mika, voidTerror)
	if err != nil {
		t.Fatal(err)
	}
	if add.Delta != 80 {
		t.Errorf("expected add delta 80, got %d", add.Delta)
	}
	first, err := s.Copy(mika, add.CardID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Delta != 80 {
		t.Errorf("expected first copy delta 80, got %d", first.Delta)
	}
	second, err := s.Copy(mika, add.CardID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Delta != 90 {
		t.Errorf("expected second copy delta 90, got %d", second.Delta)
	}
	if fm, _ := s.FaintMemory(mika); fm != 250 {
		t.Errorf("expected faint memory 250, got %d", fm)
	}
	p := mustPlayer(t, s, mika)
	if p.Counters.Duplication != 2 || p.Counters.Removal != 0 {
		t.Errorf("expected counters {2 0}, got %+v", p.Counters)
	}
	if !strings.HasPrefix(p.HistoryLog[0], "Copy #2 (Void Terror)") {
		t.Errorf("expected newest log first, got %q", p.HistoryLog[0])
	}
}

func TestRemove_StartingBasicCosts20(t *testing.T) {
	s := newTestSession(t, mika)
	out, err := s.Remove(mika, "1_start_0")
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 20 {
		t.Errorf("expected delta 20, got %d", out.Delta)
	}
	p := mustPlayer(t, s, mika)
	if len(p.LiveCards) != 1 || p.LiveCards[0].UniqueID != "1_start_1" {
		t.Errorf("expected only 1_start_1 left, got %+v", p.LiveCards)
	}
	if p.Counters.Removal != 1 || p.Counters.Duplication != 0 {
		t.Errorf("expected counters {0 1}, got %+v", p.Counters)
	}
}

func TestRemove_ThirdRemovalOfDivineNeutralRefunds(t *testing.T) {
	s := newTestSession(t, mika)
	for _, id := range []string{"1_start_0", "1_start_1"} {
		if _, err := s.Remove(mika, id); err != nil {
			t.Fatal(err)
		}
	}
	add, err := s.Add(mika, abyssalBug)
	if err != nil {
		t.Fatal(err)
	}
	up, err := s.Upgrade(mika, add.CardID, scoring.Divine)
	if err != nil {
		t.Fatal(err)
	}
	if up.Delta != 20 {
		t.Errorf("expected upgrade delta 20, got %d", up.Delta)
	}
	out, err := s.Remove(mika, add.CardID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != -10 {
		t.Errorf("expected delta -10, got %d", out.Delta)
	}
}

func TestConvert_StartingBasicToNeutralCosts30(t *testing.T) {
	s := newTestSession(t, mika)
	out, err := s.Convert(mika, "1_start_0", abyssalBug)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 30 {
		t.Errorf("expected delta 30, got %d", out.Delta)
	}
	p := mustPlayer(t, s, mika)
	c := p.LiveCards[0]
	if c.UniqueID != "1_start_0" || c.Name != "Abyssal Bug" || c.Type != catalog.Neutral {
		t.Errorf("expected slot 1_start_0 to hold Abyssal Bug, got %+v", c)
	}
	if !c.IsConverted() || c.IsStarting() {
		t.Errorf("expected converted card, got %+v", c)
	}
	if _, err := s.Convert(mika, "1_start_0", acidGas); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on second convert, got %v", err)
	}
	if p.Counters != (Counters{}) {
		t.Errorf("convert must not touch counters, got %+v", p.Counters)
	}
}

func TestConvert_ResetsTierAndRefundsStatus(t *testing.T) {
	s := newTestSession(t, mika)
	if _, err := s.Upgrade(mika, "1_start_0", scoring.Divine); err != nil {
		t.Fatal(err)
	}
	out, err := s.Convert(mika, "1_start_0", abyssalBug)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 10 {
		t.Errorf("expected 10 + 20 - 20 = 10, got %d", out.Delta)
	}
	p := mustPlayer(t, s, mika)
	if p.LiveCards[0].Tier != scoring.Normal {
		t.Errorf("expected converted card at Normal, got %s", p.LiveCards[0].Tier)
	}
}

func TestConvert_RejectsNonStartingAndUnknownTemplate(t *testing.T) {
	s := newTestSession(t, mika)
	add, _ := s.Add(mika, acidGas)
	if _, err := s.Convert(mika, add.CardID, abyssalBug); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for added card, got %v", err)
	}
	cp, _ := s.Copy(mika, "1_start_0")
	if _, err := s.Convert(mika, cp.CardID, abyssalBug); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for copy, got %v", err)
	}
	if _, err := s.Convert(mika, "1_start_0", 999); !errors.Is(err, calcerrors.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := s.Convert(mika, "1_start_0", 101); !errors.Is(err, calcerrors.ErrTemplateNotFound) {
		t.Errorf("starting cards are not in the catalog, got %v", err)
	}
}

func TestUpgrade_Transitions(t *testing.T) {
	s := newTestSession(t, mika)
	out, err := s.Upgrade(mika, "1_start_0", scoring.Epiphany)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 0 {
		t.Errorf("expected Basic epiphany delta 0, got %d", out.Delta)
	}
	if _, err := s.Upgrade(mika, "1_start_0", scoring.Epiphany); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for Epiphany -> Epiphany, got %v", err)
	}
	out, err = s.Upgrade(mika, "1_start_0", scoring.Divine)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 20 {
		t.Errorf("expected Epiphany -> Divine delta 20, got %d", out.Delta)
	}
	if _, err := s.Upgrade(mika, "1_start_0", scoring.Divine); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for Divine -> Divine, got %v", err)
	}
	if _, err := s.Upgrade(mika, "1_start_0", scoring.Normal); !errors.Is(err, calcerrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for downgrade, got %v", err)
	}
	p := mustPlayer(t, s, mika)
	if p.HistoryLog[0] != "Upgrade: Rapid Slash (Epiphany -> Divine): +20 Pts" {
		t.Errorf("unexpected log line %q", p.HistoryLog[0])
	}
}

func TestCopy_KeepsTierAndIsNeverStarting(t *testing.T) {
	s := newTestSession(t, mika)
	add, _ := s.Add(mika, abyssalBug)
	if _, err := s.Upgrade(mika, add.CardID, scoring.Epiphany); err != nil {
		t.Fatal(err)
	}
	out, err := s.Copy(mika, add.CardID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 30 {
		t.Errorf("expected 0 + 20 + 10 = 30, got %d", out.Delta)
	}
	cards, _ := s.LiveCards(mika)
	dup := cards[len(cards)-1]
	if dup.UniqueID != out.CardID || dup.Tier != scoring.Epiphany || !dup.IsCopy() || dup.IsStarting() {
		t.Errorf("unexpected copy %+v", dup)
	}

	startCopy, _ := s.Copy(mika, "1_start_0")
	cards, _ = s.LiveCards(mika)
	if cards[len(cards)-1].UniqueID != startCopy.CardID || cards[len(cards)-1].IsStarting() {
		t.Error("a copy of a starting card is not a starting card")
	}
	rm, _ := s.Remove(mika, startCopy.CardID)
	if rm.Delta != 0 {
		t.Errorf("removing a copied Basic refunds nothing and costs only scaling 0, got %d", rm.Delta)
	}
}

func TestCounters_AreIndependent(t *testing.T) {
	s := newTestSession(t, mika, tressa)
	for i := 0; i < 3; i++ {
		if _, err := s.Copy(mika, "1_start_0"); err != nil {
			t.Fatal(err)
		}
	}
	out, err := s.Remove(mika, "1_start_1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != 20 {
		t.Errorf("removal scaling must ignore copies, got delta %d", out.Delta)
	}
	other, err := s.Copy(tressa, "2_start_0")
	if err != nil {
		t.Fatal(err)
	}
	if other.Delta != 0 {
		t.Errorf("counters are per player, got delta %d", other.Delta)
	}
	p := mustPlayer(t, s, mika)
	if p.Counters != (Counters{Duplication: 3, Removal: 1}) {
		t.Errorf("expected {3 1}, got %+v", p.Counters)
	}
}

func TestUndo_IsExactInverse(t *testing.T) {
	s := newTestSession(t, mika)
	if _, err := s.Add(mika, voidTerror); err != nil {
		t.Fatal(err)
	}
	actions := []func() (Outcome, error){
		func() (Outcome, error) { return s.Upgrade(mika, "1_start_0", scoring.Divine) },
		func() (Outcome, error) { return s.Copy(mika, "1_start_1") },
		func() (Outcome, error) { return s.Remove(mika, "1_start_0") },
		func() (Outcome, error) { return s.Convert(mika, "1_start_1", acidGas) },
		func() (Outcome, error) { return s.Add(mika, abyssalBug) },
	}
	for i, act := range actions {
		before := mustPlayer(t, s, mika)
		if _, err := act(); err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
		out, err := s.Undo(mika)
		if err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
		after := mustPlayer(t, s, mika)
		if !reflect.DeepEqual(before, after) {
			t.Errorf("action %d: undo did not restore state\nbefore %+v\nafter  %+v", i, before, after)
		}
		if out.FaintMemory != before.FaintMemory {
			t.Errorf("action %d: expected faint memory %d, got %d", i, before.FaintMemory, out.FaintMemory)
		}
	}
}

func TestUndo_RemoveRestoresIdentity(t *testing.T) {
	s := newTestSession(t, mika)
	if _, err := s.Remove(mika, "1_start_0"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Undo(mika); err != nil {
		t.Fatal(err)
	}
	cards, _ := s.LiveCards(mika)
	if cards[0].UniqueID != "1_start_0" || !cards[0].IsStarting() {
		t.Errorf("expected 1_start_0 back as a starting card, got %+v", cards[0])
	}
	out, _ := s.Remove(mika, "1_start_0")
	if out.Delta != 20 {
		t.Errorf("removal counter must be rolled back too, got delta %d", out.Delta)
	}
}

func TestUndo_EmptyStackAndUnknownPlayer(t *testing.T) {
	s := newTestSession(t, mika)
	if _, err := s.Undo(mika); !errors.Is(err, calcerrors.ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
	if _, err := s.Undo(tressa); !errors.Is(err, calcerrors.ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestUndo_NeverReusesIDs(t *testing.T) {
	s := newTestSession(t, mika)
	first, _ := s.Copy(mika, "1_start_0")
	if _, err := s.Undo(mika); err != nil {
		t.Fatal(err)
	}
	second, _ := s.Copy(mika, "1_start_0")
	if first.CardID == second.CardID {
		t.Errorf("expected a fresh id after undo, got %q twice", first.CardID)
	}
}

func TestFailedActionLeavesStateUntouched(t *testing.T) {
	s := newTestSession(t, mika)
	before := mustPlayer(t, s, mika)
	if _, err := s.Copy(mika, "nope"); !errors.Is(err, calcerrors.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound, got %v", err)
	}
	if _, err := s.Add(mika, 999); !errors.Is(err, calcerrors.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := s.Remove(tressa, "2_start_0"); !errors.Is(err, calcerrors.ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
	if !reflect.DeepEqual(before, mustPlayer(t, s, mika)) {
		t.Error("failed actions must not change state")
	}
	if s.CanUndo(mika) {
		t.Error("failed actions must not push undo entries")
	}
}

func TestResetPlayer(t *testing.T) {
	s := newTestSession(t, mika, tressa)
	s.Add(mika, voidTerror)
	s.Copy(mika, "1_start_0")
	s.Copy(tressa, "2_start_0")

	out, err := s.ResetPlayer(mika)
	if err != nil {
		t.Fatal(err)
	}
	if out.Delta != -80 {
		t.Errorf("expected delta -80, got %d", out.Delta)
	}
	p := mustPlayer(t, s, mika)
	if p.FaintMemory != 0 || len(p.LiveCards) != 2 || len(p.HistoryLog) != 0 || p.Counters != (Counters{}) {
		t.Errorf("expected a fresh player, got %+v", p)
	}
	if s.CanUndo(mika) {
		t.Error("reset clears undo history")
	}
	if !s.CanUndo(tressa) {
		t.Error("reset must not touch other players")
	}
}

func TestResetPlayer_RetiresOldCardIDs(t *testing.T) {
	s := newTestSession(t, mika)
	if _, err := s.Remove(mika, "1_start_0"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ResetPlayer(mika); err != nil {
		t.Fatal(err)
	}
	before := mustPlayer(t, s, mika)
	if _, err := s.Remove(mika, "1_start_0"); !errors.Is(err, calcerrors.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound for a pre-reset id, got %v", err)
	}
	if !reflect.DeepEqual(before, mustPlayer(t, s, mika)) {
		t.Error("a stale id must not change state")
	}
	for _, c := range before.LiveCards {
		if c.UniqueID == "1_start_0" || c.UniqueID == "1_start_1" {
			t.Errorf("reset reused id %q", c.UniqueID)
		}
		if !c.IsStarting() {
			t.Errorf("dealt card %q should be a starting card", c.UniqueID)
		}
	}
	if _, err := s.Convert(mika, before.LiveCards[0].UniqueID, abyssalBug); err != nil {
		t.Errorf("dealt starting cards stay convertible, got %v", err)
	}
}

func TestChangeTier_DoesNotTouchScores(t *testing.T) {
	s := newTestSession(t, mika)
	s.Add(mika, voidTerror)
	if err := s.ChangeTier(5); err != nil {
		t.Fatal(err)
	}
	if s.Cap() != 70 {
		t.Errorf("expected cap 70 at tier 5, got %d", s.Cap())
	}
	if fm, _ := s.FaintMemory(mika); fm != 80 {
		t.Errorf("expected faint memory 80, got %d", fm)
	}
	if !s.OverCap(mika) {
		t.Error("80 exceeds cap 70")
	}
	if err := s.ChangeTier(16); !errors.Is(err, calcerrors.ErrInvalidTier) {
		t.Errorf("expected ErrInvalidTier, got %v", err)
	}
	if s.Tier() != 5 {
		t.Errorf("rejected tier change must keep tier 5, got %d", s.Tier())
	}
}

func TestOverCap_NeverBlocks(t *testing.T) {
	s := newTestSession(t, mika)
	for i := 0; i < 3; i++ {
		if _, err := s.Add(mika, voidTerror); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if fm, _ := s.FaintMemory(mika); fm != 240 {
		t.Errorf("expected 240, got %d", fm)
	}
}

func TestSwapPlayer(t *testing.T) {
	s := newTestSession(t, mika, tressa)
	s.Add(mika, voidTerror)
	s.Copy(tressa, "2_start_0")

	if _, err := s.SwapPlayer(mika, vex); err != nil {
		t.Fatal(err)
	}
	ids := s.PlayerIDs()
	if ids[0] != vex || ids[1] != tressa {
		t.Errorf("expected [3 2], got %v", ids)
	}
	if _, err := s.Player(mika); !errors.Is(err, calcerrors.ErrPlayerNotFound) {
		t.Errorf("swapped-out player should be gone, got %v", err)
	}
	if s.CanUndo(mika) {
		t.Error("swapped-out undo stack must be dropped")
	}
	if !s.CanUndo(tressa) {
		t.Error("other players keep their undo stack")
	}
	if _, err := s.SwapPlayer(vex, tressa); !errors.Is(err, calcerrors.ErrInvalidTeam) {
		t.Errorf("expected ErrInvalidTeam when combatant already present, got %v", err)
	}
	if _, err := s.SwapPlayer(vex, 99); !errors.Is(err, calcerrors.ErrInvalidTeam) {
		t.Errorf("expected ErrInvalidTeam for unknown combatant, got %v", err)
	}
}

func TestSwapPlayer_BackInGetsFreshIDs(t *testing.T) {
	s := newTestSession(t, mika)
	seen := map[string]bool{}
	for _, c := range mustPlayer(t, s, mika).LiveCards {
		seen[c.UniqueID] = true
	}
	if _, err := s.SwapPlayer(mika, tressa); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SwapPlayer(tressa, mika); err != nil {
		t.Fatal(err)
	}
	for _, c := range mustPlayer(t, s, mika).LiveCards {
		if seen[c.UniqueID] {
			t.Errorf("swap reused id %q", c.UniqueID)
		}
	}
	if _, err := s.Copy(mika, "1_start_0"); !errors.Is(err, calcerrors.ErrCardNotFound) {
		t.Errorf("expected ErrCardNotFound for a pre-swap id, got %v", err)
	}
}

func TestPreviewCard(t *testing.T) {
	s := newTestSession(t, mika)
	s.Copy(mika, "1_start_0")

	pv, err := s.PreviewCard(mika, "1_start_0")
	if err != nil {
		t.Fatal(err)
	}
	if pv.Copy != 10 || pv.Remove != 20 || !pv.CanConvert {
		t.Errorf("unexpected preview %+v", pv)
	}
	if pv.Epiphany == nil || *pv.Epiphany != 0 || pv.Divine == nil || *pv.Divine != 20 {
		t.Errorf("unexpected upgrade preview %+v", pv)
	}

	s.Upgrade(mika, "1_start_0", scoring.Divine)
	pv, _ = s.PreviewCard(mika, "1_start_0")
	if pv.Epiphany != nil || pv.Divine != nil {
		t.Error("a Divine card has no upgrades left")
	}
	if pv.Remove != 0 {
		t.Errorf("expected 0 + 20 - 20 = 0, got %d", pv.Remove)
	}
	if n := len(mustPlayer(t, s, mika).HistoryLog); n != 2 {
		t.Errorf("previews must not log, expected 2 entries, got %d", n)
	}
}

func TestPreviewConvertAndAdd(t *testing.T) {
	s := newTestSession(t, mika)
	d, err := s.PreviewConvert(mika, "1_start_0", abyssalBug)
	if err != nil || d != 30 {
		t.Errorf("expected 30, got %d (%v)", d, err)
	}
	d, err = s.PreviewAdd(voidTerror)
	if err != nil || d != 80 {
		t.Errorf("expected 80, got %d (%v)", d, err)
	}
	if _, err := s.PreviewAdd(1); !errors.Is(err, calcerrors.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestExportRestore_RoundTrip(t *testing.T) {
	s := newTestSession(t, mika, tressa)
	s.ChangeTier(4)
	add, _ := s.Add(mika, abyssalBug)
	s.Upgrade(mika, add.CardID, scoring.Epiphany)
	s.Copy(mika, add.CardID)
	s.Convert(tressa, "2_start_0", voidTerror)

	raw, err := json.Marshal(s.Export())
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	r, err := Restore(s.Reference(), snap)
	if err != nil {
		t.Fatal(err)
	}
	if r.Tier() != 4 {
		t.Errorf("expected tier 4, got %d", r.Tier())
	}
	if !reflect.DeepEqual(s.Players(), r.Players()) {
		t.Errorf("restored players differ\nwant %+v\ngot  %+v", s.Players(), r.Players())
	}
	if r.CanUndo(mika) {
		t.Error("restored sessions start with empty undo stacks")
	}

	out, err := r.Copy(mika, add.CardID)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range mustPlayer(t, s, mika).LiveCards {
		if c.UniqueID == out.CardID {
			t.Errorf("restored session reused id %q", out.CardID)
		}
	}
	if out.Delta != 40 {
		t.Errorf("restored counters continue scaling: expected 10 + 20 + 10 = 40, got %d", out.Delta)
	}
}

func TestRestore_Rejects(t *testing.T) {
	ref := testReference(t)
	base := newTestSession(t, mika).Export()

	dupCard := base
	dupCard.Players = []PlayerState{base.Players[0].clone()}
	dupCard.Players[0].LiveCards[1].UniqueID = dupCard.Players[0].LiveCards[0].UniqueID

	hugeCounter := base
	hugeCounter.Players = []PlayerState{base.Players[0].clone()}
	hugeCounter.Players[0].LiveCards[1].UniqueID = "1_copy_18446744073709551615"

	cases := []struct {
		name string
		snap Snapshot
		want error
	}{
		{"bad tier", Snapshot{ChaosTier: 0, Players: base.Players}, calcerrors.ErrInvalidTier},
		{"no players", Snapshot{ChaosTier: 1}, calcerrors.ErrInvalidTeam},
		{"unknown combatant", Snapshot{ChaosTier: 1, Players: []PlayerState{{CombatantID: 99}}}, calcerrors.ErrInvalidTeam},
		{"duplicate combatant", Snapshot{ChaosTier: 1, Players: []PlayerState{base.Players[0], base.Players[0]}}, calcerrors.ErrInvalidTeam},
		{"duplicate card id", dupCard, calcerrors.ErrInvalidInput},
		{"card id counter too large", hugeCounter, calcerrors.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Restore(ref, tc.snap); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRestore_ContinuesSequenceAfterLargestID(t *testing.T) {
	snap := newTestSession(t, mika).Export()
	snap.Players[0].LiveCards[1].UniqueID = "1_copy_5000"
	s, err := Restore(testReference(t), snap)
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.Copy(mika, "1_copy_5000")
	if err != nil {
		t.Fatal(err)
	}
	if out.CardID != "1_copy_5001" {
		t.Errorf("expected 1_copy_5001, got %q", out.CardID)
	}
}

func TestLiveCardJSON_FlagsFollowProvenance(t *testing.T) {
	raw, err := json.Marshal(LiveCard{UniqueID: "x", Type: catalog.Basic, Tier: scoring.Normal, Provenance: scoring.Copied})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(raw, &m)
	if m["isCopy"] != true || m["isStarting"] != false || m["provenance"] != "copy" {
		t.Errorf("unexpected JSON %s", raw)
	}

	var c LiveCard
	if err := json.Unmarshal([]byte(`{"uniqueId":"y","isConverted":true}`), &c); err != nil {
		t.Fatal(err)
	}
	if !c.IsConverted() {
		t.Errorf("expected flag fallback to converted, got %v", c.Provenance)
	}
}

func TestBuildView(t *testing.T) {
	s := newTestSession(t, mika, tressa)
	s.Add(mika, voidTerror)

	v := BuildView(s)
	if v.ChaosTier != 1 || v.Cap != 30 {
		t.Errorf("expected tier 1 cap 30, got %d %d", v.ChaosTier, v.Cap)
	}
	if len(v.Players) != 2 || v.Players[0].CombatantID != mika {
		t.Fatalf("unexpected players %+v", v.Players)
	}
	if !v.Players[0].OverCap || !v.Players[0].CanUndo {
		t.Error("Mika is over cap and can undo")
	}
	if v.Players[1].OverCap || v.Players[1].CanUndo {
		t.Error("Tressa is untouched")
	}
}
