package main

import "github.com/ValentinKolb/mappy/cmd"

func main() {
	cmd.Execute()
}
