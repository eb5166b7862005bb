package main

import (
	"github.com/infinitybuddha29/caller/internal/commands"
	"github.com/infinitybuddha29/caller/internal/logging"
)

func main() {
	logging.Init()
	commands.Execute()
}
