package catalog

import (
	"errors"
	"testing"

	"faint-memory-server/calcerrors"
)

func testRoster(t *testing.T) *Roster {
	t.Helper()
	r, err := NewRoster([]Combatant{
		{ID: 2, Name: "Tressa", Cards: []CardTemplate{{ID: 3, Name: "Snipe", Type: Basic, CombatantID: ownerID(2)}}},
		{ID: 1, Name: "Mika", Cards: []CardTemplate{{ID: 1, Name: "Rapid Slash", Type: Basic, CombatantID: ownerID(1)}}},
		{ID: 3, Name: "amber"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewRoster_SortsByName(t *testing.T) {
	r := testRoster(t)
	all := r.All()
	want := []string{"amber", "Mika", "Tressa"}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, all[i].Name)
		}
	}
}

func TestNewRoster_RejectsEmptyAndDuplicates(t *testing.T) {
	if _, err := NewRoster(nil); !errors.Is(err, calcerrors.ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData for empty roster, got %v", err)
	}
	_, err := NewRoster([]Combatant{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}})
	if !errors.Is(err, calcerrors.ErrIncompleteData) {
		t.Errorf("expected ErrIncompleteData for duplicate id, got %v", err)
	}
}

func TestRosterGet_ReturnsCopy(t *testing.T) {
	r := testRoster(t)
	c, ok := r.Get(1)
	if !ok {
		t.Fatal("expected Mika")
	}
	c.Cards[0].Name = "changed"
	again, _ := r.Get(1)
	if again.Cards[0].Name != "Rapid Slash" {
		t.Error("Get must not expose roster internals")
	}
}

func TestRosterSearch(t *testing.T) {
	r := testRoster(t)
	if got := r.Search("mi"); len(got) != 1 || got[0].Name != "Mika" {
		t.Errorf("expected Mika, got %+v", got)
	}
	if got := r.Search("tresa"); len(got) != 1 || got[0].Name != "Tressa" {
		t.Errorf("expected fuzzy hit on Tressa, got %+v", got)
	}
	if got := r.Search("  "); len(got) != 3 {
		t.Errorf("blank query should list everyone, got %d", len(got))
	}
}

func TestSelectTeam(t *testing.T) {
	r := testRoster(t)

	team, err := r.SelectTeam([]int64{2, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if team[0].Name != "Tressa" || team[1].Name != "Mika" {
		t.Errorf("team must keep selection order, got %q, %q", team[0].Name, team[1].Name)
	}

	bad := [][]int64{
		nil,
		{1, 1},
		{1, 2, 3, 4},
		{99},
	}
	for _, ids := range bad {
		if _, err := r.SelectTeam(ids, 3); !errors.Is(err, calcerrors.ErrInvalidTeam) {
			t.Errorf("SelectTeam(%v): expected ErrInvalidTeam, got %v", ids, err)
		}
	}
}
