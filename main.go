/*
Opens a window and renders a rotating textured cube with Vulkan
until the window is closed.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkcube/engine"
	"github.com/spaghettifunk/vkcube/engine/core"
	"github.com/spaghettifunk/vkcube/testbed"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "vkcube"
	app.Usage = "render a rotating textured cube with Vulkan"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML configuration file; defaults are used when omitted",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		cli.BoolFlag{
			Name:  "validation",
			Usage: "enable the Khronos validation layer",
		},
		cli.BoolFlag{
			Name:  "watch",
			Usage: "reload the shaders when their files change",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		core.LogError("%s", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	config, err := engine.LoadApplicationConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.Bool("debug") {
		config.LogLevel = "debug"
	}
	if ctx.Bool("validation") {
		config.Renderer.Validation = true
	}
	if ctx.Bool("watch") {
		config.Assets.Watch = true
	}

	tb := testbed.NewTestGame(config)
	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("%s", err)
		}
	}()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			e.Quit()
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}
	return e.Run()
}
