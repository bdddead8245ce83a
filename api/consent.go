package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/service"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

// submitConsent handles a consent transition submission.
// POST /consents
func (a *API) submitConsent(w http.ResponseWriter, r *http.Request) {
	req := &ConsentRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	proof, apiErr := req.taggedProof()
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	receipt, err := a.service.Submit(r.Context(), proof)
	if err != nil {
		submissionError(err).Write(w)
		return
	}
	httpWriteJSON(w, &ConsentResponse{
		Success:   true,
		Root:      receipt.Root,
		LeafIndex: receipt.LeafIndex,
		Assurance: receipt.Assurance,
	})
}

// taggedProof converts the wire shape into the tagged variant the service
// branches on.
func (req *ConsentRequest) taggedProof() (service.Proof, *Error) {
	if len(req.Proof) > 0 {
		signals, err := consenttransition.PublicSignalsFromStrings(req.PublicSignals)
		if err != nil {
			e := ErrMalformedBody.WithErr(err)
			return nil, &e
		}
		return &service.ZkProof{Proof: req.Proof, Signals: signals}, nil
	}
	if req.Offchain != nil {
		return &service.AttestedProof{Claim: req.Offchain}, nil
	}
	e := ErrMalformedBody.With("missing proof and offchain claim")
	return nil, &e
}

// submissionError maps service rejections onto the API error table.
func submissionError(err error) Error {
	switch {
	case errors.Is(err, service.ErrMalformedRequest):
		return ErrMalformedBody
	case errors.Is(err, service.ErrInvalidProof):
		return ErrInvalidProof
	case errors.Is(err, service.ErrInvalidAttestation):
		return ErrInvalidAttestation
	case errors.Is(err, state.ErrNullifierReused):
		return ErrNullifierReused
	case errors.Is(err, state.ErrStaleRoot):
		return ErrStaleRoot
	case errors.Is(err, service.ErrVerifierTimeout):
		return ErrVerifierTimeout
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}

// root returns the current accumulator root and size.
// GET /root
func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	root, err := a.state.CurrentRoot()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RootResponse{
		Root: new(types.BigInt).SetBigInt(root),
		Size: a.state.Size(),
	})
}

// reset clears the accumulator and the nullifier set. Registered only when
// test endpoints are enabled.
// POST /consents/reset
func (a *API) reset(w http.ResponseWriter, _ *http.Request) {
	if err := a.state.Reset(); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}
