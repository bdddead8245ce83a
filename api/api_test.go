package api_test

import (
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/consent-z-sandbox/api"
	"github.com/vocdoni/consent-z-sandbox/api/client"
	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/prover"
	"github.com/vocdoni/consent-z-sandbox/service"
	"github.com/vocdoni/consent-z-sandbox/state"
	"github.com/vocdoni/consent-z-sandbox/types"
)

var testSalt = big.NewInt(42)

// okVerifier accepts everything, so the HTTP layer can be exercised
// without generating real proofs.
type okVerifier struct{}

func (okVerifier) Verify(types.HexBytes, *consenttransition.PublicSignals) bool { return true }

func newTestServer(t *testing.T) (*httptest.Server, *client.HTTPclient) {
	c := qt.New(t)
	st, err := state.New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)
	svc := service.New(st, okVerifier{}, testSalt)
	a, err := api.New(&api.APIConfig{
		Host:                "127.0.0.1",
		Port:                0,
		Service:             svc,
		State:               st,
		EnableTestEndpoints: true,
	})
	c.Assert(err, qt.IsNil)
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	// client.New pings the server on connect
	cli, err := client.New(server.URL)
	c.Assert(err, qt.IsNil)
	return server, cli
}

func zkRequest(c *qt.C, secret int64) *api.ConsentRequest {
	now := uint64(time.Now().Unix())
	next := types.ConsentRecord{Bits: 255, Timestamp: now - 60}
	_, signals, err := consenttransition.GenerateInputs(
		big.NewInt(secret), nil, nil, next, testSalt, now)
	c.Assert(err, qt.IsNil)
	return &api.ConsentRequest{
		Proof:         types.HexBytes{0x01},
		PublicSignals: signals.Strings(),
	}
}

func TestSubmitAndRoot(t *testing.T) {
	c := qt.New(t)
	_, cli := newTestServer(t)

	root, size, err := cli.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root.MathBigInt().Sign(), qt.Equals, 0)
	c.Assert(size, qt.Equals, uint64(0))

	resp, err := cli.SubmitConsent(zkRequest(c, 1001))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.Assurance, qt.Equals, types.AssuranceZk)
	c.Assert(resp.Root.MathBigInt().Sign(), qt.Not(qt.Equals), 0)

	root, size, err = cli.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root.Equal(resp.Root), qt.IsTrue)
	c.Assert(size, qt.Equals, uint64(1))
}

func TestSubmitReplayRejected(t *testing.T) {
	c := qt.New(t)
	_, cli := newTestServer(t)

	req := zkRequest(c, 1001)
	_, err := cli.SubmitConsent(req)
	c.Assert(err, qt.IsNil)
	_, err = cli.SubmitConsent(req)
	c.Assert(err, qt.IsNotNil)
	c.Assert(err.Error(), qt.Contains, "nullifier already used")
}

func TestSubmitMalformedRejected(t *testing.T) {
	c := qt.New(t)
	_, cli := newTestServer(t)

	// neither proof nor offchain claim
	_, err := cli.SubmitConsent(&api.ConsentRequest{})
	c.Assert(err, qt.IsNotNil)

	// proof with a wrong number of signals
	_, err = cli.SubmitConsent(&api.ConsentRequest{
		Proof:         types.HexBytes{0x01},
		PublicSignals: []string{"1", "2"},
	})
	c.Assert(err, qt.IsNotNil)
}

func TestClientServerGone(t *testing.T) {
	c := qt.New(t)
	server, cli := newTestServer(t)
	cli.SetRetries(1)

	// once the server is gone every attempt fails; the client must
	// report an error instead of dereferencing a nil response
	server.Close()
	_, err := cli.SubmitConsent(zkRequest(c, 1001))
	c.Assert(err, qt.IsNotNil)
}

func TestSubmitAttested(t *testing.T) {
	c := qt.New(t)
	_, cli := newTestServer(t)

	key, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	claim, err := prover.BuildAttestedClaim(key, big.NewInt(1001),
		types.ConsentRecord{Bits: 7, Timestamp: uint64(time.Now().Unix()) - 60}, testSalt)
	c.Assert(err, qt.IsNil)

	resp, err := cli.SubmitConsent(&api.ConsentRequest{Offchain: claim})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.Assurance, qt.Equals, types.AssuranceAttested)
}

func TestReset(t *testing.T) {
	c := qt.New(t)
	_, cli := newTestServer(t)

	req := zkRequest(c, 1001)
	_, err := cli.SubmitConsent(req)
	c.Assert(err, qt.IsNil)

	c.Assert(cli.Reset(), qt.IsNil)
	root, size, err := cli.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root.MathBigInt().Sign(), qt.Equals, 0)
	c.Assert(size, qt.Equals, uint64(0))

	// the nullifier is free again after a reset
	_, err = cli.SubmitConsent(req)
	c.Assert(err, qt.IsNil)
}
