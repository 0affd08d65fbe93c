package main

import "github.com/jcdickinson/sidebarfetch/cmd"

func main() {
	cmd.Execute()
}
