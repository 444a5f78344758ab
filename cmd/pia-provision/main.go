package main

import "github.com/piatools/pia-provision/cmd/pia-provision/cmd"

func main() {
	cmd.Execute()
}
