package main

import (
	"os"

	"github.com/oceanweave/minidocker/pkg/cmd"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const usage = `minidocker runs one command in an isolated PID and mount namespace,
			   chrooted into a prepared rootfs and limited by cgroup v2.
			   Type the exit word (default "exit") to end the session.`

func main() {
	app := cli.NewApp()
	app.Name = "minidocker"
	app.Usage = usage
	app.Flags = cmd.GlobalFlags

	app.Commands = []cli.Command{
		cmd.InitCommand,
		cmd.ShellCommand,
		cmd.RunCommand,
	}

	app.Before = cmd.Before

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
