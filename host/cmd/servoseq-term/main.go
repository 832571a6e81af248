// Command servoseq-term is an interactive terminal for a servo controller:
// command lines typed at the prompt are sent as-is, status lines from the
// controller are printed as they arrive.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"servoseq/host/mcu"
	"servoseq/host/serial"

	"github.com/google/shlex"
	"github.com/mattn/go-colorable"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
)

// stdout understands ANSI colors on every platform
var stdout = colorable.NewColorableStdout()

var (
	device    = flag.String("device", "", "Serial device path (default: first USB serial port)")
	baud      = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	listPorts = flag.Bool("list-ports", false, "List serial ports and exit")
	timeout   = flag.Duration("timeout", 2*time.Second, "Reply timeout when sending files")
)

func main() {
	flag.Parse()

	if *listPorts {
		printPorts()
		return
	}

	path := *device
	if path == "" {
		path = serial.FindPort()
		if path == "" {
			fmt.Fprintln(os.Stderr, "Error: no serial device found, use -device")
			os.Exit(1)
		}
	}

	fmt.Println("servoseq terminal")
	fmt.Println("=================")
	fmt.Printf("Connecting to %s...\n", path)

	cfg := serial.DefaultConfig(path)
	cfg.Baud = *baud
	conn := mcu.NewMCU()
	if err := conn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Println("Connected. Type 'help' for local commands, anything else is sent to the controller.")

	// Replies to SendFile requests never reach Lines
	go printLines(conn)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 4096), 8192)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		words, err := shlex.Split(line)
		if err != nil || len(words) == 0 {
			words = strings.Fields(line)
		}

		switch words[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "ports":
			printPorts()

		case "send":
			if len(words) != 2 {
				fmt.Println("usage: send <file>")
				continue
			}
			replies, err := conn.SendFile(words[1], *timeout)
			for _, r := range replies {
				fmt.Fprintln(stdout, "< "+colorize(r))
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			if err := conn.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// printLines echoes controller lines until the connection closes
func printLines(conn *mcu.MCU) {
	for line := range conn.Lines() {
		printStatus(line)
	}
	if err := conn.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "\nConnection closed: %v\n", err)
	}
}

func printStatus(line string) {
	fmt.Fprintf(stdout, "\r< %s\n> ", colorize(line))
}

// colorize marks errors red and finished channels green
func colorize(line string) string {
	switch {
	case strings.HasPrefix(line, "ERR"):
		return colorRed + line + colorReset
	case strings.HasPrefix(line, "DONE"):
		return colorGreen + line + colorReset
	}
	return line
}

func printPorts() {
	ports, err := serial.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Println("  " + p)
	}
}

func printHelp() {
	fmt.Println("\nLocal commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  ports          - List serial ports")
	fmt.Println("  send <file>    - Send a file of command lines, one reply at a time")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println("\nController commands:")
	fmt.Println("  SA:<id>:<angle>        MA:<angle>          SP:<id>:<pulse>")
	fmt.Println("  LOAD_SEQ:<id>:<recs>   PLAY_SERVO:<id>     PLAY_LOADED")
	fmt.Println("  NUM_SERVOS:<n>         STOP                CLEAR_ALL")
	fmt.Println()
}
