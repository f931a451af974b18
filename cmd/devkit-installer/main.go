package main

import (
	"context"

	"devkit-installer/internal/cli"
)

func main() {
	cli.Execute(context.Background())
}
