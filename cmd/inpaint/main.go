package main

import "github.com/MeKo-Tech/inpaint/cmd/inpaint/cmd"

func main() {
	cmd.Execute()
}
