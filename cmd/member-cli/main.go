package main

import "member-core/cmd/member-cli/cmd"

func main() {
	cmd.Execute()
}
