// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Grammar is the process-wide Python language and compiled relationship query.
//
// Description:
//
//	A Grammar is built once, on first use, and never modified afterwards.
//	The compiled query is read-only; each match run opens its own query
//	cursor, so one Grammar is shared by every Parser and Extractor.
//
// Thread Safety: Safe for concurrent use.
type Grammar struct {
	language *sitter.Language
	query    *sitter.Query
}

var (
	grammarOnce sync.Once
	grammar     *Grammar
	grammarErr  error
)

// LoadGrammar returns the shared Grammar, building it on first call.
//
// Outputs:
//   - *Grammar: The shared grammar. Never nil when err is nil.
//   - error: ErrGrammarLoad wrapping the query compiler error. A failure is
//     sticky for the life of the process.
func LoadGrammar() (*Grammar, error) {
	grammarOnce.Do(func() {
		lang := python.GetLanguage()
		q, err := sitter.NewQuery([]byte(relationshipQuery), lang)
		if err != nil {
			grammarErr = fmt.Errorf("%w: compiling relationship query: %v", ErrGrammarLoad, err)
			return
		}
		grammar = &Grammar{language: lang, query: q}
	})
	return grammar, grammarErr
}

// Language returns the tree-sitter language.
func (g *Grammar) Language() *sitter.Language {
	return g.language
}

// captureName resolves a capture index of the relationship query.
func (g *Grammar) captureName(index uint32) string {
	return g.query.CaptureNameForId(index)
}
