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

// Python Tree-sitter Node Types
//
// Node kinds and field names the extractor inspects directly, plus the
// query source the matcher compiles once per process.
//
// Reference: https://github.com/tree-sitter/tree-sitter-python/blob/master/src/grammar.json
const (
	pyNodeModule              = "module"
	pyNodeImportStatement     = "import_statement"
	pyNodeImportFromStatement = "import_from_statement"
	pyNodeFunctionDefinition  = "function_definition"
	pyNodeClassDefinition     = "class_definition"
	pyNodeBlock               = "block"
	pyNodeIdentifier          = "identifier"
	pyNodeCall                = "call"
	pyNodeError               = "ERROR"
)

// Field names used with syntax.Tree.ChildByField.
const (
	pyFieldName     = "name"
	pyFieldBody     = "body"
	pyFieldFunction = "function"
)

// Capture names produced by relationshipQuery.
const (
	CaptureImport        = "import"
	CaptureImportFrom    = "import_from"
	CaptureFunctionDef   = "function.def"
	CaptureFunctionBlock = "function.block"
	CaptureClassDef      = "class.def"
	CaptureClassBlock    = "class.block"
)

// relationshipQuery is the fixed pattern set run once over every tree.
//
// Definition patterns capture the name identifier and the body block of
// the same node, so each query match yields one aligned (def, block) pair.
const relationshipQuery = `
(import_statement) @import

(import_from_statement) @import_from

(function_definition
  name: (identifier) @function.def
  body: (block) @function.block)

(class_definition
  name: (identifier) @class.def
  body: (block) @class.block)
`

// pairedCaptures maps each definition capture to its body capture.
var pairedCaptures = map[string]string{
	CaptureFunctionDef: CaptureFunctionBlock,
	CaptureClassDef:    CaptureClassBlock,
}
