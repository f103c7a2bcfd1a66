package main

import (
	"log"
	"warden/client/pkg/cmd"
)

func main() {
	wardenCmd, err := cmd.New()
	if err != nil {
		log.Fatal(err)
	}

	if err := wardenCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
