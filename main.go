package main

import "github.com/chalk-ai/batch-loader-benchmark/cmd"

func main() {
	cmd.Execute()
}
