package main

import "razer-doctor/cmd"

func main() {
	cmd.Execute()
}
