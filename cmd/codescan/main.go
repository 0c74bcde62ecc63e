package main

import "github.com/MeKo-Tech/codescan/cmd/codescan/cmd"

func main() {
	cmd.Execute()
}
