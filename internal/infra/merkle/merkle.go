// Package merkle implements the hash primitives and tree engine behind the
// log's inclusion proofs.
//
// Root, InclusionPath and Verify share one pairing rule: when a layer has
// odd length, the final node is hashed with itself to produce its parent.
// The rule must stay identical across all three routines or proofs stop
// verifying.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"merklelog/internal/domain"
)

// HashSize is the digest length of every leaf and node hash.
const HashSize = sha256.Size

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

var emptySentinel = []byte("EMPTY")

// LeafHash hashes a payload into a leaf digest. The 0x00 prefix keeps leaf
// digests from ever colliding with internal-node digests.
func LeafHash(data []byte) [HashSize]byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(data)
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NodeHash hashes two child digests into their parent.
func NodeHash(left, right [HashSize]byte) [HashSize]byte {
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyRoot is the sentinel root of a zero-leaf tree. It is never produced
// by any non-empty input under the domain-separated scheme.
func EmptyRoot() [HashSize]byte {
	return sha256.Sum256(emptySentinel)
}

// Root reduces an ordered leaf sequence bottom-up to a single digest.
func Root(leaves [][HashSize]byte) [HashSize]byte {
	if len(leaves) == 0 {
		return EmptyRoot()
	}
	layer := make([][HashSize]byte, len(leaves))
	copy(layer, leaves)
	for len(layer) > 1 {
		layer = parents(layer)
	}
	return layer[0]
}

func parents(layer [][HashSize]byte) [][HashSize]byte {
	out := make([][HashSize]byte, 0, (len(layer)+1)/2)
	for i := 0; i < len(layer); i += 2 {
		left := layer[i]
		right := left
		if i+1 < len(layer) {
			right = layer[i+1]
		}
		out = append(out, NodeHash(left, right))
	}
	return out
}

// InclusionPath walks from the leaf at index up to the root, recording the
// sibling and the side it combines on at every layer. A tree of at most one
// leaf has an empty path.
func InclusionPath(leaves [][HashSize]byte, index uint64) ([]domain.ProofStep, error) {
	if index >= uint64(len(leaves)) {
		return nil, domain.ErrIndexOutOfRange
	}
	if len(leaves) <= 1 {
		return []domain.ProofStep{}, nil
	}

	path := make([]domain.ProofStep, 0)
	idx := index
	layer := make([][HashSize]byte, len(leaves))
	copy(layer, leaves)

	for len(layer) > 1 {
		isRight := idx%2 == 1
		siblingIdx := idx
		switch {
		case isRight:
			siblingIdx = idx - 1
		case idx+1 < uint64(len(layer)):
			siblingIdx = idx + 1
		}
		// An even index with no follower keeps itself as sibling,
		// matching the duplicate-self rule used by parents.

		direction := domain.DirectionRight
		if isRight {
			direction = domain.DirectionLeft
		}
		path = append(path, domain.ProofStep{
			Direction: direction,
			Hash:      hex.EncodeToString(layer[siblingIdx][:]),
		})

		layer = parents(layer)
		idx /= 2
	}
	return path, nil
}

// MakeProof builds the full inclusion proof for the leaf at index: its
// path, the tree's current root, and the leaf digest itself.
func MakeProof(leaves [][HashSize]byte, index uint64) (domain.InclusionProof, error) {
	if index >= uint64(len(leaves)) {
		return domain.InclusionProof{}, domain.ErrIndexOutOfRange
	}
	path, err := InclusionPath(leaves, index)
	if err != nil {
		return domain.InclusionProof{}, err
	}
	root := Root(leaves)
	return domain.InclusionProof{
		Index: index,
		Leaf:  hex.EncodeToString(leaves[index][:]),
		Path:  path,
		Root:  hex.EncodeToString(root[:]),
		Size:  uint64(len(leaves)),
	}, nil
}

// Verify folds a claimed leaf through its path and compares the result to
// the claimed root, case-insensitively. It never fails: malformed hex
// degrades to Valid=false with an empty computed root.
func Verify(req domain.VerifyRequest) domain.VerifyResponse {
	expected := strings.ToLower(req.Root)

	acc, ok := DecodeHash(req.Leaf)
	if !ok {
		return domain.VerifyResponse{Valid: false, ComputedRoot: "", ExpectedRoot: expected}
	}
	for _, step := range req.Path {
		sibling, ok := DecodeHash(step.Hash)
		if !ok {
			return domain.VerifyResponse{Valid: false, ComputedRoot: "", ExpectedRoot: expected}
		}
		if step.Direction == domain.DirectionLeft {
			acc = NodeHash(sibling, acc)
		} else {
			acc = NodeHash(acc, sibling)
		}
	}

	computed := hex.EncodeToString(acc[:])
	return domain.VerifyResponse{
		Valid:        computed == expected,
		ComputedRoot: computed,
		ExpectedRoot: expected,
	}
}

// DecodeHash parses a hex digest, rejecting anything that is not exactly
// HashSize bytes.
func DecodeHash(value string) ([HashSize]byte, bool) {
	var out [HashSize]byte
	decoded, err := hex.DecodeString(value)
	if err != nil || len(decoded) != HashSize {
		return out, false
	}
	copy(out[:], decoded)
	return out, true
}

// DecodeLeaves parses a stored hex leaf sequence. A digest that fails to
// decode marks the whole sequence as corrupt.
func DecodeLeaves(hashes []string) ([][HashSize]byte, error) {
	out := make([][HashSize]byte, 0, len(hashes))
	for _, h := range hashes {
		decoded, ok := DecodeHash(h)
		if !ok {
			return nil, domain.ErrCorruptStorage
		}
		out = append(out, decoded)
	}
	return out, nil
}
