// Package redact scrubs secrets from text fragments before they reach logs.
package redact

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Mask replaces assignment values and bare credentials.
const Mask = "***"

// safeVars are environment variables that are non-sensitive and fine to log.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "DISPLAY": true, "SHLVL": true,
	"COLUMNS": true, "LINES": true, "LC_ALL": true, "LC_CTYPE": true,
}

// specialParams are shell special parameters that are never redacted.
var specialParams = map[string]bool{
	"?": true, "!": true, "#": true, "@": true, "*": true,
	"-": true, "$": true, "_": true,
	"0": true, "1": true, "2": true, "3": true, "4": true,
	"5": true, "6": true, "7": true, "8": true, "9": true,
}

func keep(name string) bool {
	return safeVars[name] || specialParams[name]
}

var (
	reBearer = regexp.MustCompile(`(?i)\b(bearer|token|basic)(\s+)[A-Za-z0-9._~+/=-]{8,}`)
	reAPIKey = regexp.MustCompile(`\b(?:sk|hf|ghp|gho|glpat|xox[abpr])[-_][A-Za-z0-9_-]{8,}`)
)

// Line returns s with credentials masked. Lines that look like shell
// (they contain $ or =) are rewritten through a bash AST so only
// parameter expansions and assignment values change; everything else
// goes through pattern matching only.
func Line(s string) string {
	if strings.ContainsAny(s, "$=") {
		s = shell(s)
	}
	s = reBearer.ReplaceAllString(s, "${1}${2}"+Mask)
	return reAPIKey.ReplaceAllString(s, Mask)
}

// shell redacts variable references and assignment values using the bash parser,
// falling back to regular expressions when s does not parse.
func shell(s string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	file, err := parser.Parse(strings.NewReader(s), "")
	if err != nil {
		return fallback(s)
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if n.Param != nil && !keep(n.Param.Value) {
				n.Param.Value = "REDACTED"
			}
		case *syntax.Assign:
			if n.Name != nil && n.Value != nil && !safeVars[n.Name.Value] {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: Mask}}
			}
		}
		return true
	})

	var buf bytes.Buffer
	if err := syntax.NewPrinter(syntax.Indent(0)).Print(&buf, file); err != nil {
		return fallback(s)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var (
	reBraceVar  = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	reSimpleVar = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	reAssign    = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)
)

// fallback is the pattern-based redaction for text the parser rejects.
func fallback(s string) string {
	s = reBraceVar.ReplaceAllStringFunc(s, func(m string) string {
		if keep(reBraceVar.FindStringSubmatch(m)[1]) {
			return m
		}
		return "${REDACTED}"
	})
	s = reSimpleVar.ReplaceAllStringFunc(s, func(m string) string {
		name := reSimpleVar.FindStringSubmatch(m)[1]
		if name == "REDACTED" || keep(name) {
			return m
		}
		return "$REDACTED"
	})
	return reAssign.ReplaceAllStringFunc(s, func(m string) string {
		name := reAssign.FindStringSubmatch(m)[1]
		if safeVars[name] {
			return m
		}
		return name + "=" + Mask
	})
}
