package main

import (
	"log"
	"os"

	"github.com/strdr1/telegram-bot-api-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("menubot: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
