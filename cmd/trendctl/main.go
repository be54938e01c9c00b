package main

import "github.com/zfogg/sidechain/ranking/internal/cli/cmd"

func main() {
	cmd.Execute()
}
