// Package verifier is the client-side proof-checking binding. It is a
// thin adapter over the tree engine's verifier, shaped for embedding in
// runtimes that exchange proofs as JSON documents.
package verifier

import (
	"encoding/json"

	"merklelog/internal/domain"
	"merklelog/internal/infra/merkle"
)

// Verify checks an inclusion proof request against its claimed root. It
// never returns an error; malformed input reports Valid=false.
func Verify(req domain.VerifyRequest) domain.VerifyResponse {
	return merkle.Verify(req)
}

// VerifyInclusionJSON decodes a VerifyRequest document and reports only
// whether the proof holds. Undecodable input is simply not a valid proof.
func VerifyInclusionJSON(doc []byte) bool {
	var req domain.VerifyRequest
	if err := json.Unmarshal(doc, &req); err != nil {
		return false
	}
	return merkle.Verify(req).Valid
}
