package main

import "github.com/coinflow-app/coinflow/internal/cli"

func main() {
	cli.Execute()
}
