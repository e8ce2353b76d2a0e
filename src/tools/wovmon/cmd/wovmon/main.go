package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-tty"

	"poise/src/lib/boardcfg"
	"poise/src/tools/wovmon"
)

var configPath = flag.String("config", "", "board configuration file")

func main() {
	flag.Parse()
	cfg, err := boardcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wovmon: %v\n", err)
		os.Exit(1)
	}

	t, err := tty.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wovmon: opening terminal: %v\n", err)
		os.Exit(1)
	}
	defer t.Close()

	m := wovmon.NewMonitor(cfg)
	for {
		//repaint from the top on every keystroke
		fmt.Print("\033[2J\033[H")
		fmt.Print(m.Render())
		r, err := t.ReadRune()
		if err != nil {
			fmt.Fprintf(os.Stderr, "wovmon: reading key: %v\n", err)
			os.Exit(1)
		}
		if !m.Handle(r) {
			break
		}
	}
}
