package main

import "github.com/example/tock-watcher/cmd"

func main() {
	cmd.Execute()
}
