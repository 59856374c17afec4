package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/soloctl/internal/instance"
	"github.com/danmuck/soloctl/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to soloctl config.toml")
	activateOnly := flag.Bool("activate", false, "only ask the running primary to come to front, then exit")
	appID := flag.String("app-id", "", "app id override (defaults to config or soloctl.demo)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := instance.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "soloctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *appID != "" {
		cfg.AppID = *appID
	}

	svc := instance.NewServiceWithConfig(cfg)

	if *activateOnly {
		if !svc.Coordinator().ActivateExisting() {
			fmt.Fprintln(os.Stderr, "soloctl: no running primary to activate")
			os.Exit(1)
		}
		return
	}

	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "soloctl: %v\n", err)
		os.Exit(1)
	}
}
