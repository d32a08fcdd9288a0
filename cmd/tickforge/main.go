// cmd/tickforge/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"tickforge/cmd/tickforge/commands"
)

const VERSION = "0.1.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

var commandAliases = map[string]string{
	"c": "compile",
	"v": "version",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		commands.VersionCommand(VERSION, BuildDate, GitCommit)
	case "compile":
		if err := commands.CompileCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("tickforge - exact-rational shot compiler for time-sampled instrument sequences")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tickforge compile <sequence.json>   Compile every shot in a sequence file  (alias: c)")
	fmt.Println("    -store <path>                     persist session/shot results to a SQLite database")
	fmt.Println("    -workers <n>                      number of shots to compile concurrently (default 4)")
	fmt.Println("  tickforge version                   Show version and build info             (alias: v)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tickforge compile sequence.json")
	fmt.Println("  tickforge compile -store session.db -workers 8 sequence.json")
}
