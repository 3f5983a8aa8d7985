package main

import "github.com/Mohsinsiddi/alchscan/cmd"

func main() {
	cmd.Execute()
}
