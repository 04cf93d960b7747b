package archipelago

import "testing"

func TestSeed_KnownValues(t *testing.T) {
	if got := Seed("a", 0); got != 97 {
		t.Fatalf("Seed(a,0)=%d", got)
	}
	if got := Seed("ab", 1); got != 2654434704 {
		t.Fatalf("Seed(ab,1)=%d", got)
	}
	if got := Count("a"); got != 3 {
		t.Fatalf("Count(a)=%d", got)
	}
}

func TestIslets_Shape(t *testing.T) {
	for _, nick := range []string{"a", "blackbeard", "Anne Bonny", "капитан", "x1", "redbeard_42"} {
		n := Count(nick)
		if n < MinCount || n > MaxCount {
			t.Fatalf("%s: count=%d", nick, n)
		}
		islets := Islets(nick)
		if len(islets) != n {
			t.Fatalf("%s: islets=%d count=%d", nick, len(islets), n)
		}
		for i, it := range islets {
			if it.Index != i {
				t.Fatalf("%s: index %d at %d", nick, it.Index, i)
			}
			if d := it.Distance(); d < baseDistance-1e-9 || d >= baseDistance+distanceJit {
				t.Fatalf("%s/%d: distance=%v", nick, i, d)
			}
			switch it.Type {
			case TypeWood, TypeStone, TypeRum:
			default:
				t.Fatalf("%s/%d: type=%q", nick, i, it.Type)
			}
		}
		if _, ok := Get(nick, n); ok {
			t.Fatalf("%s: index %d should be out of range", nick, n)
		}
	}
}

func TestOffset_OutOfRangeIsZero(t *testing.T) {
	dx, dy := Offset("a", -1)
	if dx != 0 || dy != 0 {
		t.Fatalf("offset=%v,%v", dx, dy)
	}
}

func TestIslets_Stable(t *testing.T) {
	a := Islets("blackbeard")
	b := Islets("blackbeard")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("unstable islet %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
