//go:build !hyperscan

package waf

import (
	"fmt"
	"regexp"
)

// regexScanner is the portable scan backend: one compiled regexp per
// signature, evaluated sequentially over every buffer. Slower than the
// vectored backend but dependency-free.
type regexScanner struct {
	patterns []*regexp.Regexp
}

func newScanner(patterns []string, sigs []Signature) (Scanner, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile("(?ims)" + p)
		if err != nil {
			return nil, fmt.Errorf("signature %s: %w", sigs[i].ID, err)
		}
		compiled[i] = re
	}
	return &regexScanner{patterns: compiled}, nil
}

func (s *regexScanner) Scan(data [][]byte) ([]Hit, error) {
	var hits []Hit
	for pi, re := range s.patterns {
		for bi, buf := range data {
			if re.Match(buf) {
				hits = append(hits, Hit{Pattern: pi, Buffer: bi})
			}
		}
	}
	return hits, nil
}

func (s *regexScanner) Close() error {
	return nil
}
