package main

import "cosnap-backend/cmd"

func main() {
	cmd.Run()
}
