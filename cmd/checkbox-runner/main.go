package main

import "github.com/devicelab-dev/checkbox-runner/pkg/cli"

func main() {
	cli.Execute()
}
