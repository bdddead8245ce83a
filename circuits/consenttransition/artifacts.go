package consenttransition

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/vocdoni/consent-z-sandbox/log"
)

// CircuitName prefixes the on-disk artifact file names.
const CircuitName = "consenttransition"

// Artifacts bundles the compiled constraint system and the groth16 key
// pair of the consent transition predicate.
type Artifacts struct {
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Compile lowers the predicate to an R1CS constraint system over BN254.
func Compile() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Circuit{})
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	return ccs, nil
}

// Setup compiles the predicate and runs a single-party groth16 setup,
// persisting the artifacts into dir. The single-party setup is NOT suitable
// for production; a multi-party ceremony is out of scope here.
func Setup(dir string) (*Artifacts, error) {
	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	log.Infow("compiled consent transition circuit", "constraints", ccs.GetNbConstraints())
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	a := &Artifacts{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}
	if err := a.save(dir); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Artifacts) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	if err := writeArtifact(filepath.Join(dir, CircuitName+".ccs"), a.CCS); err != nil {
		return err
	}
	if err := writeArtifact(filepath.Join(dir, CircuitName+".pk"), a.ProvingKey); err != nil {
		return err
	}
	return writeArtifact(filepath.Join(dir, CircuitName+".vk"), a.VerifyingKey)
}

func writeArtifact(path string, obj io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := obj.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readArtifact(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := obj.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// Load reads previously generated artifacts from dir. It fails if any of
// the three files is missing, which callers surface as the
// prover-unavailable condition.
func Load(dir string) (*Artifacts, error) {
	a := &Artifacts{
		CCS:          groth16.NewCS(ecc.BN254),
		ProvingKey:   groth16.NewProvingKey(ecc.BN254),
		VerifyingKey: groth16.NewVerifyingKey(ecc.BN254),
	}
	if err := readArtifact(filepath.Join(dir, CircuitName+".ccs"), a.CCS); err != nil {
		return nil, err
	}
	if err := readArtifact(filepath.Join(dir, CircuitName+".pk"), a.ProvingKey); err != nil {
		return nil, err
	}
	if err := readArtifact(filepath.Join(dir, CircuitName+".vk"), a.VerifyingKey); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadOrSetup loads the artifacts from dir, generating them first if
// missing.
func LoadOrSetup(dir string) (*Artifacts, error) {
	a, err := Load(dir)
	if err == nil {
		return a, nil
	}
	log.Infow("circuit artifacts not found, generating", "dir", dir)
	return Setup(dir)
}

// LoadVerifyingKey reads only the verifying key, which is all the server
// side needs.
func LoadVerifyingKey(dir string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readArtifact(filepath.Join(dir, CircuitName+".vk"), vk); err != nil {
		return nil, err
	}
	return vk, nil
}
