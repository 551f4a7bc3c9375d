package main

import "github.com/MeKo-Tech/qrengine/cmd/qrengine/cmd"

func main() {
	cmd.Execute()
}
