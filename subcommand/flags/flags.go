// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package flags holds small flag.FlagSet helpers shared by subcommands.
package flags

import (
	"bytes"
	"flag"
	"fmt"
	"sort"
	"strings"
)

// Usage renders help text above a block listing every flag in fs,
// sorted by name.
func Usage(help string, fs *flag.FlagSet) string {
	var b bytes.Buffer
	b.WriteString(strings.TrimRight(help, "\n"))
	b.WriteString("\n")

	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, f.Name) })
	sort.Strings(names)
	if len(names) == 0 {
		return b.String()
	}

	b.WriteString("\nCommand Options\n")
	for _, name := range names {
		f := fs.Lookup(name)
		fmt.Fprintf(&b, "\n  -%s=<value>\n     %s", name, f.Usage)
	}
	return b.String()
}
