package main

import (
	"flag"
	"os"

	"poise/src/lib/boardcfg"
	"poise/src/lib/trust"
	"poise/src/poise"
)

var configPath = flag.String("config", "", "board configuration file")

func main() {
	flag.Parse()
	poise.InitErrors()
	if flag.NArg() == 0 {
		trust.Errorf("usage: poise [-config board.yaml] scenario.toml ...")
		os.Exit(2)
	}

	cfg, err := boardcfg.Load(*configPath)
	if err != nil {
		trust.Fatalf(1, "%v", err)
	}
	log := trust.Default()
	log.SetLevel(cfg.TrustLevel())

	failed := 0
	for _, path := range flag.Args() {
		s, err := LoadScenario(path)
		if err != nil {
			log.Errorf("%v", err)
			failed++
			continue
		}
		//every scenario gets a fresh machine
		r := newRunner(cfg, log)
		if err := r.Run(s); err != nil {
			log.Errorf("scenario %s failed: %v", s.Title, err)
			failed++
		}
		r.report()
	}
	if failed > 0 {
		os.Exit(1)
	}
}
