package main

import "github.com/mind-engage/mindengage-coach/internal/cli"

func main() {
	cli.Execute()
}
