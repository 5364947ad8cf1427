package merkle

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"merklelog/internal/domain"
)

func leaf(t *testing.T, payload string) [HashSize]byte {
	t.Helper()
	return LeafHash([]byte(payload))
}

func leafSet(t *testing.T, payloads ...string) [][HashSize]byte {
	t.Helper()
	out := make([][HashSize]byte, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, leaf(t, p))
	}
	return out
}

func TestLeafHashDeterministic(t *testing.T) {
	a := leaf(t, "hello")
	b := leaf(t, "hello")
	if a != b {
		t.Fatal("expected equal digests for equal payloads")
	}
	if a == leaf(t, "world") {
		t.Fatal("expected distinct digests for distinct payloads")
	}
}

func TestLeafAndNodeDomainsSeparated(t *testing.T) {
	a := leaf(t, "x")
	node := NodeHash(a, a)
	if a == node {
		t.Fatal("leaf digest collided with node digest")
	}
}

func TestRootKnownValues(t *testing.T) {
	cases := []struct {
		payloads []string
		want     string
	}{
		{[]string{"a"}, "022a6979e6dab7aa5ae4c3e5e45f7e977112a7e63593820dbec1ec738a24f93c"},
		{[]string{"a", "b"}, "b137985ff484fb600db93107c77b0365c80d78f5b429ded0fd97361d077999eb"},
		{[]string{"a", "b", "c"}, "e9636069c740c9ff51625b01a0b040396d265a9b920cc6febdfa5ecc9f58ecce"},
		{[]string{"a", "b", "c", "d"}, "33376a3bd63e9993708a84ddfe6c28ae58b83505dd1fed711bd924ec5a6239f0"},
	}
	for _, tc := range cases {
		root := Root(leafSet(t, tc.payloads...))
		if got := hex.EncodeToString(root[:]); got != tc.want {
			t.Fatalf("root(%v) = %s, want %s", tc.payloads, got, tc.want)
		}
	}
}

func TestEmptyRoot(t *testing.T) {
	root := Root(nil)
	if root != EmptyRoot() {
		t.Fatal("empty input must yield the sentinel root")
	}
	single := Root(leafSet(t, "a"))
	if single == EmptyRoot() {
		t.Fatal("non-empty input produced the sentinel root")
	}
}

func TestInclusionPathLengths(t *testing.T) {
	cases := []struct {
		size     int
		index    uint64
		expected int
	}{
		{1, 0, 0},
		{2, 0, 1},
		{3, 2, 2},
		{4, 3, 2},
		{5, 4, 3},
	}
	payloads := []string{"a", "b", "c", "d", "e"}
	for _, tc := range cases {
		path, err := InclusionPath(leafSet(t, payloads[:tc.size]...), tc.index)
		if err != nil {
			t.Fatalf("inclusion path size=%d index=%d: %v", tc.size, tc.index, err)
		}
		if len(path) != tc.expected {
			t.Fatalf("size=%d index=%d: path length %d, want %d", tc.size, tc.index, len(path), tc.expected)
		}
	}
}

func TestMakeProofRoundTrip(t *testing.T) {
	leaves := leafSet(t, "alpha", "beta", "gamma", "delta", "epsilon")
	for index := uint64(0); index < uint64(len(leaves)); index++ {
		proof, err := MakeProof(leaves, index)
		if err != nil {
			t.Fatalf("make proof index=%d: %v", index, err)
		}
		resp := Verify(domain.VerifyRequest{
			Index: proof.Index,
			Leaf:  proof.Leaf,
			Path:  proof.Path,
			Root:  proof.Root,
		})
		if !resp.Valid {
			t.Fatalf("proof for index %d did not verify: computed=%s expected=%s", index, resp.ComputedRoot, resp.ExpectedRoot)
		}
		if resp.ComputedRoot != proof.Root {
			t.Fatalf("computed root %s, want %s", resp.ComputedRoot, proof.Root)
		}
	}
}

func TestUnpairedFinalLeafProof(t *testing.T) {
	leaves := leafSet(t, "a", "b", "c")
	proof, err := MakeProof(leaves, 2)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	if len(proof.Path) != 2 {
		t.Fatalf("expected 2-step proof for the unpaired final leaf, got %d", len(proof.Path))
	}
	// First step pairs the lone leaf with itself.
	if proof.Path[0].Hash != proof.Leaf {
		t.Fatal("expected self-sibling at the first level")
	}
	if proof.Path[0].Direction != domain.DirectionRight {
		t.Fatalf("expected right direction, got %s", proof.Path[0].Direction)
	}

	resp := Verify(domain.VerifyRequest{Index: proof.Index, Leaf: proof.Leaf, Path: proof.Path, Root: proof.Root})
	if !resp.Valid {
		t.Fatal("expected proof to verify against its own root")
	}

	smallerRoot := Root(leafSet(t, "a", "b"))
	resp = Verify(domain.VerifyRequest{
		Index: proof.Index,
		Leaf:  proof.Leaf,
		Path:  proof.Path,
		Root:  hex.EncodeToString(smallerRoot[:]),
	})
	if resp.Valid {
		t.Fatal("proof must not verify against a root from a smaller tree")
	}
}

func TestMakeProofOutOfRange(t *testing.T) {
	leaves := leafSet(t, "a", "b")
	if _, err := MakeProof(leaves, 2); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := InclusionPath(nil, 0); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange on empty tree, got %v", err)
	}
}

func TestVerifyRejectsTamperedInput(t *testing.T) {
	leaves := leafSet(t, "alpha", "beta", "gamma", "delta")
	proof, err := MakeProof(leaves, 1)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}

	flip := func(s string) string {
		c := "0"
		if s[0] == '0' {
			c = "1"
		}
		return c + s[1:]
	}

	tampered := domain.VerifyRequest{Index: proof.Index, Leaf: flip(proof.Leaf), Path: proof.Path, Root: proof.Root}
	if Verify(tampered).Valid {
		t.Fatal("tampered leaf verified")
	}

	path := make([]domain.ProofStep, len(proof.Path))
	copy(path, proof.Path)
	path[0].Hash = flip(path[0].Hash)
	tampered = domain.VerifyRequest{Index: proof.Index, Leaf: proof.Leaf, Path: path, Root: proof.Root}
	if Verify(tampered).Valid {
		t.Fatal("tampered path verified")
	}
}

func TestVerifyMalformedHexDegrades(t *testing.T) {
	resp := Verify(domain.VerifyRequest{Leaf: "zz", Root: "00"})
	if resp.Valid {
		t.Fatal("malformed leaf hex verified")
	}
	if resp.ComputedRoot != "" {
		t.Fatalf("expected empty computed root, got %s", resp.ComputedRoot)
	}

	leaves := leafSet(t, "a", "b")
	proof, err := MakeProof(leaves, 0)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	proof.Path[0].Hash = "ffff" // wrong length
	resp = Verify(domain.VerifyRequest{Index: proof.Index, Leaf: proof.Leaf, Path: proof.Path, Root: proof.Root})
	if resp.Valid || resp.ComputedRoot != "" {
		t.Fatalf("expected degraded response, got %+v", resp)
	}
}

func TestVerifyRootCaseInsensitive(t *testing.T) {
	leaves := leafSet(t, "a", "b", "c")
	proof, err := MakeProof(leaves, 0)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	resp := Verify(domain.VerifyRequest{
		Index: proof.Index,
		Leaf:  proof.Leaf,
		Path:  proof.Path,
		Root:  strings.ToUpper(proof.Root),
	})
	if !resp.Valid {
		t.Fatal("expected case-insensitive root comparison")
	}
	if resp.ExpectedRoot != proof.Root {
		t.Fatalf("expected lower-cased expected root, got %s", resp.ExpectedRoot)
	}
}

func TestDecodeLeaves(t *testing.T) {
	a := leaf(t, "a")
	decoded, err := DecodeLeaves([]string{hex.EncodeToString(a[:])})
	if err != nil {
		t.Fatalf("decode leaves: %v", err)
	}
	if len(decoded) != 1 || decoded[0] != a {
		t.Fatal("decoded leaf mismatch")
	}
	if _, err := DecodeLeaves([]string{"not-hex"}); !errors.Is(err, domain.ErrCorruptStorage) {
		t.Fatalf("expected ErrCorruptStorage, got %v", err)
	}
	if _, err := DecodeLeaves([]string{"abcd"}); !errors.Is(err, domain.ErrCorruptStorage) {
		t.Fatalf("expected ErrCorruptStorage on short digest, got %v", err)
	}
}
