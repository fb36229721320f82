package main

import "imgmatrix/cmd"

func main() {
	cmd.Execute()
}
