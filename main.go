package main

import (
	"os"

	"github.com/firefly-engineering/ink/cmd"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.NewPrinter(os.Stdout, os.Stderr).Error(err)
		os.Exit(errors.GetExitCode(err))
	}
}
