package ids

import "testing"

func TestGlobalSplitRoundTrip(t *testing.T) {
	cases := []struct{ node, local int }{
		{0, 0}, {0, 42}, {1, 0}, {3, 99999}, {7, 1},
	}
	for _, c := range cases {
		g := Global(c.node, c.local)
		node, local := Split(g)
		if node != c.node || local != c.local {
			t.Fatalf("Global(%d,%d)=%d Split back = (%d,%d)", c.node, c.local, g, node, local)
		}
	}
}

func TestMaxLocalIDBound(t *testing.T) {
	if Global(0, MaxLocalID) >= Global(1, 0) {
		t.Fatalf("MaxLocalID must stay below the next node's id space")
	}
}

func TestReservedIDs(t *testing.T) {
	if !IsReserved(MainProgramModule) || !IsReserved(Broadcast) {
		t.Fatalf("reserved ids must report IsReserved")
	}
	if IsReserved(Global(0, 1)) {
		t.Fatalf("a normal global id must not be reserved")
	}
}
