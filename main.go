package main

import "github.com/sajjad-MoBe/txlog/cmd"

func main() {
	cmd.Execute()
}
