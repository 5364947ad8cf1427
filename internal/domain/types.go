package domain

// Direction tells the verifier which side a proof sibling combines on.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// ProofStep is one level of an inclusion path: the sibling hash and the
// side it sits on when recombining toward the root.
type ProofStep struct {
	Direction Direction `json:"direction"`
	Hash      string    `json:"hash"`
}

// InclusionProof binds a leaf at an index to the exact root/size pair it
// was generated from. A proof generated at size N is not expected to
// verify against a later root at size M > N.
type InclusionProof struct {
	Index uint64      `json:"index"`
	Leaf  string      `json:"leaf"`
	Path  []ProofStep `json:"path"`
	Root  string      `json:"root"`
	Size  uint64      `json:"size"`
}

type AppendRequest struct {
	Payload string `json:"payload"`
}

type AppendResponse struct {
	Index uint64 `json:"index"`
	Size  uint64 `json:"size"`
	Leaf  string `json:"leaf"`
	Root  string `json:"root"`
}

type RootResponse struct {
	Root string `json:"root"`
	Size uint64 `json:"size"`
}

type VerifyRequest struct {
	Index uint64      `json:"index"`
	Leaf  string      `json:"leaf"`
	Path  []ProofStep `json:"path"`
	Root  string      `json:"root"`
}

// VerifyResponse always carries both the computed and the expected root so
// a caller can diagnose a mismatch; verification itself never errors.
type VerifyResponse struct {
	Valid        bool   `json:"valid"`
	ComputedRoot string `json:"computed_root"`
	ExpectedRoot string `json:"expected_root"`
}

// LogEntry records one accepted append. Entries are never mutated or
// deleted after creation.
type LogEntry struct {
	Payload    string `json:"payload"`
	Leaf       string `json:"leaf"`
	AppendedAt string `json:"appended_at"`
}

// Snapshot is the full log state. Invariant: len(Leaves) == len(Entries)
// and Leaves[i] is the leaf hash of Entries[i].Payload.
type Snapshot struct {
	Leaves  []string   `json:"leaves"`
	Entries []LogEntry `json:"entries"`
}

// AnchorRecord checkpoints a (root, size) pair to the anchor ledger.
// TxID = SHA256(size || ":" || root || ":" || timestamp).
type AnchorRecord struct {
	Root           string `json:"root"`
	Size           uint64 `json:"size"`
	TimestampNanos string `json:"timestamp_nanos"`
	TxID           string `json:"txid"`
}
