package main

import "github.com/LENAX/task-queue/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
