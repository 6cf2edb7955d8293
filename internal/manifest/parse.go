// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const (
	// BeginMarker opens the version block. Matched as a literal substring.
	BeginMarker = "#Begin Version File"
	// EndMarker closes the version block. Matched as a literal substring.
	EndMarker = "#End Version File"

	// minTokens is caption, current version, caption.
	minTokens = 3

	// maxLineBytes bounds a single scanned line.
	maxLineBytes = 256 << 10
)

// Parse reads a manifest document from r.
//
// ctx is checked once per line read and once per markup strip iteration; when
// it is done Parse returns ctx's error (or its cause, if one was set) without
// consuming further input.
func Parse(ctx context.Context, r io.Reader) (*Manifest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var (
		tokens  []string
		inBlock bool
		seen    bool
	)

	for sc.Scan() {
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}

		line := sc.Text()

		// End is tested before content handling and Begin after it, so
		// neither marker line contributes content.
		if strings.Contains(line, EndMarker) {
			inBlock = false
		}

		if inBlock {
			stripped, err := stripMarkup(ctx, line)
			if err != nil {
				return nil, err
			}
			if s := strings.TrimSpace(stripped); s != "" {
				tokens = append(tokens, s)
			}
		}

		if strings.Contains(line, BeginMarker) {
			inBlock = true
			seen = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	if !seen {
		return nil, &MalformedError{Tokens: 0, Reason: "version block not found"}
	}

	return fromTokens(tokens)
}

// fromTokens applies the positional contract:
// [caption, current, caption, older...].
func fromTokens(tokens []string) (*Manifest, error) {
	if len(tokens) < minTokens {
		return nil, &MalformedError{
			Tokens: len(tokens),
			Reason: fmt.Sprintf("expected at least %d entries (caption, current version, caption)", minTokens),
		}
	}

	older := make([]VersionTag, 0, len(tokens)-minTokens)
	for _, t := range tokens[minTokens:] {
		older = append(older, VersionTag(t))
	}

	return &Manifest{current: VersionTag(tokens[1]), older: older}, nil
}

// stripMarkup removes every <...> span from line, left to right. An unclosed
// '<' ends stripping and the remainder is kept as text.
func stripMarkup(ctx context.Context, line string) (string, error) {
	for {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}

		start := strings.IndexByte(line, '<')
		if start < 0 {
			return line, nil
		}
		end := strings.IndexByte(line[start:], '>')
		if end < 0 {
			return line, nil
		}
		line = line[:start] + line[start+end+1:]
	}
}

func checkpoint(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}
