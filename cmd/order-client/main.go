package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dmehra2102/medsupply-orders/pkg/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	app := &cli.App{
		Name:  "order-client",
		Usage: "place medical-supply orders, queueing them while the order service is unreachable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".env", Usage: "optional env-style config file"},
			&cli.BoolFlag{Name: "offline", Usage: "treat the order service as unreachable"},
		},
		Commands: []*cli.Command{
			productsCommand(),
			previewCommand(),
			submitCommand(),
			syncCommand(),
			queueCommand(),
			watchCommand(),
		},
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
