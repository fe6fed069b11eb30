package main

import "github.com/ValentinKolb/netstack/cmd"

func main() {
	cmd.Execute()
}
