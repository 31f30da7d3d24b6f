package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/retrogamesets/psadiag/updater"
)

func main() {
	app := &cli.App{
		Name:  "updater",
		Usage: "replace an executable after its process exits",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "executable to replace", Required: true},
			&cli.StringFlag{Name: "new", Usage: "downloaded executable to install", Required: true},
			&cli.IntFlag{Name: "wait-pid", Usage: "process to wait for before replacing"},
			&cli.BoolFlag{Name: "restart", Usage: "start the target again afterwards"},
			&cli.IntFlag{Name: "timeout", Value: 15, Usage: "seconds to wait for the process"},
		},
		Action: func(c *cli.Context) error {
			return updater.Run(updater.Options{
				Target:  c.String("target"),
				New:     c.String("new"),
				WaitPID: c.Int("wait-pid"),
				Restart: c.Bool("restart"),
				Timeout: time.Duration(c.Int("timeout")) * time.Second,
			})
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
