// Package cli contains the spatialindex command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag  = "config"
	debugFlag   = "debug"
	boxesFlag   = "boxes"
	outFlag     = "out"
	treeFlag    = "tree"
	fromFlag    = "from"
	toFlag      = "to"
	firstFlag   = "first"
	atFlag      = "at"
	backFlag    = "back"
	maxDistFlag = "max-dist"
	nameFlag    = "name"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "spatialindex",
		Usage:           "build and query bounding interval hierarchies",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "load index settings from `FILE`",
			},
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "build a tree over a box file and write it to disk",
				UsageText: "spatialindex build --boxes boxes.json --out tree.bih",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.StringFlag{
						Name:     outFlag,
						Usage:    "`FILE` to write the tree to",
						Required: true,
					},
				},
				Action: BuildAction,
			},
			{
				Name:      "info",
				Usage:     "print the shape of a tree file",
				ArgsUsage: "<tree file>",
				Action:    InfoAction,
			},
			{
				Name:  "raycast",
				Usage: "find the nearest box a segment hits",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     treeFlag,
						Usage:    "tree `FILE` built from the box file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     fromFlag,
						Usage:    "segment start as x,y,z",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     toFlag,
						Usage:    "segment end as x,y,z",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  firstFlag,
						Usage: "report any hit instead of the nearest",
					},
				},
				Action: RaycastAction,
			},
			{
				Name:  "point",
				Usage: "list the boxes containing a point",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     treeFlag,
						Usage:    "tree `FILE` built from the box file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     atFlag,
						Usage:    "point as x,y,z",
						Required: true,
					},
				},
				Action: PointAction,
			},
			{
				Name:  "overlap",
				Usage: "list boxes that touch or overlap",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.StringFlag{
						Name:  nameFlag,
						Usage: "only list the boxes overlapping the box called `NAME`",
					},
				},
				Action: OverlapAction,
			},
			{
				Name:  "sight",
				Usage: "check line of sight between two points in a gridded world",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     fromFlag,
						Usage:    "eye position as x,y,z",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     toFlag,
						Usage:    "target position as x,y,z",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  backFlag,
						Usage: "distance to pull the reported hit position back toward the eye",
					},
				},
				Action: SightAction,
			},
			{
				Name:  "height",
				Usage: "find the first surface below a point in a gridded world",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     boxesFlag,
						Usage:    "JSON `FILE` of named boxes",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:     atFlag,
						Usage:    "point as x,y,z",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  maxDistFlag,
						Usage: "how far down to search",
						Value: 1000,
					},
				},
				Action: HeightAction,
			},
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
