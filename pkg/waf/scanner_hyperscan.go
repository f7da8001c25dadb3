//go:build hyperscan

package waf

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flier/gohs/hyperscan"
)

// vectoredScanner is the hyperscan backend: all signatures compiled
// into one vectored database and matched over a batch of buffers in a
// single pass. Scratch space is not safe for concurrent use, so scans
// serialize on a mutex; evaluations are short and the database is
// shared per configuration generation.
type vectoredScanner struct {
	mu      sync.Mutex
	db      hyperscan.VectoredDatabase
	scratch *hyperscan.Scratch
}

func newScanner(patterns []string, sigs []Signature) (Scanner, error) {
	if len(patterns) == 0 {
		return &vectoredScanner{}, nil
	}
	compiled := make([]*hyperscan.Pattern, len(patterns))
	for i, p := range patterns {
		pat := hyperscan.NewPattern(p, hyperscan.MultiLine|hyperscan.DotAll|hyperscan.Caseless)
		pat.Id = i
		if !pat.IsValid() {
			return nil, fmt.Errorf("signature %s: invalid pattern %q", sigs[i].ID, p)
		}
		compiled[i] = pat
	}
	db, err := hyperscan.NewVectoredDatabase(compiled...)
	if err != nil {
		return nil, fmt.Errorf("building vectored database: %w", err)
	}
	scratch, err := hyperscan.NewScratch(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("allocating scratch: %w", err)
	}
	return &vectoredScanner{db: db, scratch: scratch}, nil
}

func (s *vectoredScanner) Scan(data [][]byte) ([]Hit, error) {
	if s.db == nil {
		return nil, nil
	}

	// Match offsets are reported against the concatenation of the
	// buffers; prefix sums map an end offset back to its buffer.
	ends := make([]uint64, len(data))
	var total uint64
	for i, buf := range data {
		total += uint64(len(buf))
		ends[i] = total
	}

	var hits []Hit
	handler := func(id uint, from, to uint64, flags uint, context interface{}) error {
		buffer := sort.Search(len(ends), func(i int) bool { return ends[i] >= to })
		if buffer == len(ends) {
			buffer = len(ends) - 1
		}
		hits = append(hits, Hit{Pattern: int(id), Buffer: buffer})
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Scan(data, s.scratch, handler, nil); err != nil {
		return nil, fmt.Errorf("vectored scan: %w", err)
	}
	return hits, nil
}

func (s *vectoredScanner) Close() error {
	if s.db == nil {
		return nil
	}
	s.scratch.Free()
	return s.db.Close()
}
