package main

import (
	"os"

	"github.com/nspcc-dev/huffarc/cmd/huffarc/internal/commands"
	"github.com/nspcc-dev/huffarc/cmd/internal/cmderr"
	"github.com/nspcc-dev/huffarc/pkg/util/grace"
)

func main() {
	ctx, stop := grace.NewGracefulContext(os.Stderr)

	err := commands.NewRoot().ExecuteContext(ctx)
	stop()
	cmderr.ExitOnErr(err)
}
