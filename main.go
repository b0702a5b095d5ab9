package main

import "github.com/nextlevelbuilder/dealbot/cmd"

func main() {
	cmd.Execute()
}
