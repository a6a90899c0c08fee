package main

import "github.com/rideline/telemetry-service/cmd"

func main() {
	cmd.Execute()
}
