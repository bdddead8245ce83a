// Command e2etest drives a full consent flow against a running consentd:
// mint an identity, prove a first transition (or sign an attested claim
// with -attested), submit it and check the replay rejection.
package main

import (
	"flag"
	"math/big"
	"os"
	"time"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/consent-z-sandbox/api"
	"github.com/vocdoni/consent-z-sandbox/api/client"
	"github.com/vocdoni/consent-z-sandbox/config"
	"github.com/vocdoni/consent-z-sandbox/identity"
	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/prover"
	"github.com/vocdoni/consent-z-sandbox/types"
)

func main() {
	var (
		host      string
		artifacts string
		saltStr   string
		bits      uint
		attested  bool
	)
	flag.StringVar(&host, "host", "http://127.0.0.1:8080", "consentd API URL")
	flag.StringVar(&artifacts, "artifacts", ".consentd/artifacts", "circuit artifacts directory")
	flag.StringVar(&saltStr, "domainSalt", config.DefaultDomainSalt, "public domain salt (decimal)")
	flag.UintVar(&bits, "bits", 255, "consent bitfield to grant")
	flag.BoolVar(&attested, "attested", false, "use the attested-claim fallback instead of a zk proof")
	flag.Parse()
	log.Init("debug", "stdout", nil)

	salt, ok := new(big.Int).SetString(saltStr, 10)
	if !ok {
		log.Fatalf("domain salt is not a decimal number: %q", saltStr)
	}

	cli, err := client.New(host)
	if err != nil {
		log.Fatalf("could not connect to %s: %v", host, err)
	}

	idDir, err := os.MkdirTemp("", "consent-e2e-identity")
	if err != nil {
		log.Fatalf("could not create identity dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(idDir); err != nil {
			log.Warnw("could not remove identity dir", "error", err)
		}
	}()
	database, err := metadb.New(db.TypePebble, idDir)
	if err != nil {
		log.Fatalf("could not open identity database: %v", err)
	}
	ids := identity.NewStore(database)
	secret, err := ids.GetOrCreate()
	if err != nil {
		log.Fatalf("could not create identity: %v", err)
	}

	next := types.ConsentRecord{
		Bits:      uint8(bits),
		Timestamp: uint64(time.Now().Unix()),
	}
	req := &api.ConsentRequest{}
	if attested {
		key, err := ids.AttestationKey()
		if err != nil {
			log.Fatalf("could not derive attestation key: %v", err)
		}
		claim, err := prover.BuildAttestedClaim(key, secret, next, salt)
		if err != nil {
			log.Fatalf("could not build attested claim: %v", err)
		}
		req.Offchain = claim
	} else {
		p, err := prover.New(artifacts)
		if err != nil {
			log.Fatalf("prover unavailable (try -attested): %v", err)
		}
		proof, signals, err := p.ProveTransition(secret, nil, nil, next, salt, next.Timestamp)
		if err != nil {
			log.Fatalf("could not prove transition: %v", err)
		}
		req.Proof = proof
		req.PublicSignals = signals.Strings()
	}

	resp, err := cli.SubmitConsent(req)
	if err != nil {
		log.Fatalf("submission rejected: %v", err)
	}
	log.Infow("consent admitted",
		"root", resp.Root.String(),
		"leafIndex", resp.LeafIndex,
		"assurance", string(resp.Assurance))

	// the same nullifier must now be rejected
	if _, err := cli.SubmitConsent(req); err == nil {
		log.Fatalf("replay unexpectedly admitted")
	} else {
		log.Infow("replay correctly rejected", "error", err.Error())
	}

	root, size, err := cli.Root()
	if err != nil {
		log.Fatalf("could not fetch root: %v", err)
	}
	log.Infow("final accumulator", "root", root.String(), "size", size)
}
