package main

import "github.com/Wyydra/looper/internal/cli"

func main() {
	cli.Execute()
}
