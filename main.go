package main

import "github.com/agencyhq/agencyapi/cmd"

func main() {
	cmd.Execute()
}
