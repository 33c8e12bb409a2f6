package main

import (
	"surroundio/cmd"
)

func main() {
	cmd.Execute()
}
