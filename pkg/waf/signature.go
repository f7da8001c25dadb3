package waf

import (
	"fmt"

	"mercator-hq/palisade/pkg/rules"
)

// Signature is the metadata of one compiled signature.
type Signature struct {
	ID          string
	Name        string
	Category    string
	Subcategory string
	Risk        int
	Certainty   int
}

// Hit is one signature match: a pattern index into the signature list
// and the index of the scanned buffer it fired on.
type Hit struct {
	Pattern int
	Buffer  int
}

// Scanner is the multi-pattern scan capability: compile the pattern set
// once, scan a batch of buffers in one pass, report hits. Any
// implementation satisfying this contract can back the signature
// database; newScanner picks one per build.
type Scanner interface {
	Scan(data [][]byte) ([]Hit, error)
	Close() error
}

// SignatureDB is the compiled signature set: one Scanner plus the
// per-pattern metadata, built once per configuration generation and
// shared read-only across evaluations.
type SignatureDB struct {
	sigs    []Signature
	scanner Scanner
}

// CompileSignatures builds the signature database. All patterns compile
// multiline, dot-matches-all and case-insensitive. One malformed
// signature fails the whole set: the signatures are evaluated together
// as one scan pass, so a partial database is not meaningful.
func CompileSignatures(raw []rules.ContentFilterRule) (*SignatureDB, error) {
	sigs := make([]Signature, len(raw))
	patterns := make([]string, len(raw))
	for i, r := range raw {
		sigs[i] = Signature{
			ID:          r.ID,
			Name:        r.Name,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Risk:        r.Risk,
			Certainty:   r.Certainty,
		}
		patterns[i] = r.Operand
	}
	scanner, err := newScanner(patterns, sigs)
	if err != nil {
		return nil, fmt.Errorf("compiling signature set: %w", err)
	}
	return &SignatureDB{sigs: sigs, scanner: scanner}, nil
}

// EmptySignatures is a database with no patterns, used when no
// signature configuration is present.
func EmptySignatures() *SignatureDB {
	db, err := CompileSignatures(nil)
	if err != nil {
		// unreachable: the empty set always compiles
		panic(err)
	}
	return db
}

// Len returns the number of signatures.
func (db *SignatureDB) Len() int {
	return len(db.sigs)
}

// Signature returns the metadata for a pattern index.
func (db *SignatureDB) Signature(i int) Signature {
	return db.sigs[i]
}

// Scan runs the whole pattern set over the buffers in one pass.
func (db *SignatureDB) Scan(data [][]byte) ([]Hit, error) {
	if len(db.sigs) == 0 || len(data) == 0 {
		return nil, nil
	}
	return db.scanner.Scan(data)
}

// Close releases scanner resources. The configuration snapshot calls
// this when the last in-flight evaluation drops its reference.
func (db *SignatureDB) Close() error {
	return db.scanner.Close()
}
