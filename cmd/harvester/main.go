package main

import "github.com/discovr-events/harvester/cmd/harvester/cmd"

func main() {
	cmd.Execute()
}
