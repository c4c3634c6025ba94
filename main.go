package main

import (
	"trackstyler/cmd"
)

func main() {
	cmd.Execute()
}
