package main

import "github.com/gentyr/gentyr-sub005/cmd"

func main() {
	cmd.Execute()
}
