package stream

import "testing"

func TestAllocatorClientSequence(t *testing.T) {
	a := NewAllocator(RoleClient, false)
	want := []uint32{1, 3, 5, 7}
	for _, w := range want {
		if got := a.Next(); uint32(got) != w {
			t.Fatalf("Next() = %d, want %d", got, w)
		}
	}
}

func TestAllocatorServerSequence(t *testing.T) {
	a := NewAllocator(RoleServer, false)
	want := []uint32{2, 4, 6, 8}
	for _, w := range want {
		if got := a.Next(); uint32(got) != w {
			t.Fatalf("Next() = %d, want %d", got, w)
		}
	}
}

func TestRegisterPeerEnforcesParity(t *testing.T) {
	a := NewAllocator(RoleServer, false) // peer is client: odd ids
	if !a.RegisterPeer(1) {
		t.Fatal("expected odd peer id to be accepted by a server allocator")
	}
	if a.RegisterPeer(4) {
		t.Fatal("expected even peer id to be rejected by a server allocator")
	}
}

func TestRegisterPeerEnforcesMonotonicity(t *testing.T) {
	a := NewAllocator(RoleServer, false)
	if !a.RegisterPeer(1) {
		t.Fatal("first peer id should be accepted")
	}
	if !a.RegisterPeer(3) {
		t.Fatal("strictly increasing peer id should be accepted")
	}
	if a.RegisterPeer(3) {
		t.Fatal("repeated peer id should be rejected")
	}
	if a.RegisterPeer(1) {
		t.Fatal("decreasing peer id should be rejected")
	}
}

func TestRegisterPeerLegacyDisablesMonotonicity(t *testing.T) {
	a := NewAllocator(RoleServer, true)
	if !a.RegisterPeer(5) || !a.RegisterPeer(1) {
		t.Fatal("legacy allocator should accept non-monotonic peer ids")
	}
}

func TestRegisterPeerRejectsConnectionStreamID(t *testing.T) {
	a := NewAllocator(RoleServer, false)
	if a.RegisterPeer(0) {
		t.Fatal("stream id 0 is reserved for the connection and must be rejected")
	}
}
