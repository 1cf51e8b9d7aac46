package main

import (
	"github.com/urfave/cli/v3"
)

// getCommands returns every CLI command: system commands first, then lottery commands.
func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getLotteryCommands()...)
	return cmds
}
