package main

import "github.com/MeKo-Tech/crowdgauge/cmd/crowdgauge/cmd"

func main() {
	cmd.Execute()
}
