package main

import (
	"context"
	"os"

	"github.com/small-frappuccino/discorddeck/pkg/app"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/util"
)

func main() {
	ctx, stop := util.WithInterrupt(context.Background())
	defer stop()

	if err := app.Execute(ctx, "discorddeck", os.Args[1:], os.Stdout); err != nil {
		log.ErrorLoggerRaw().Error("Fatal", "error", err)
		stop()
		os.Exit(1)
	}
}
