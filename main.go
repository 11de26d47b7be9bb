package main

import "github.com/furisto/toolgate/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
