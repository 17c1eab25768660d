// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	"github.com/mitchellh/cli"

	cmdPublishDNS "github.com/clusterdns/clusterdns/subcommand/publish-dns"
	cmdVersion "github.com/clusterdns/clusterdns/subcommand/version"
	"github.com/clusterdns/clusterdns/version"
)

// Commands is the mapping of all available clusterdns commands.
var Commands map[string]cli.CommandFactory

func init() {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}

	Commands = map[string]cli.CommandFactory{
		"publish-dns": func() (cli.Command, error) {
			return &cmdPublishDNS.Command{UI: ui}, nil
		},

		"version": func() (cli.Command, error) {
			return &cmdVersion.Command{UI: ui, Version: version.GetHumanVersion()}, nil
		},
	}
}

func helpFunc() cli.HelpFunc {
	var include []string
	for k := range Commands {
		include = append(include, k)
	}
	return cli.FilteredHelpFunc(include, cli.BasicHelpFunc("clusterdns"))
}
