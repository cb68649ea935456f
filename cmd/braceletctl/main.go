package main

import (
	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/braceletctl/internal/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("braceletctl"),
		kong.Description("Command tool for J2208A-class BLE health bracelets"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}
