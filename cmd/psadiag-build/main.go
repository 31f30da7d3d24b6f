package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/retrogamesets/psadiag/builder"
)

func main() {
	log.SetFlags(0)
	app := &cli.App{
		Name:  "psadiag-build",
		Usage: "build and deploy the application and its updater helper",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "spec",
				Value: "builder.yml",
				Usage: "packaging descriptor file",
			},
			&cli.BoolFlag{
				Name:  "no-deploy",
				Usage: "stop after building, skip the install dir copy",
			},
		},
		Action: func(c *cli.Context) error {
			d, err := builder.Load(c.String("spec"))
			if err != nil {
				return err
			}
			if c.Bool("no-deploy") {
				d.InstallDir = ""
			}
			return builder.NewPipeline(d).Execute()
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
