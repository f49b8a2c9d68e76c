package main

import (
	"flag"
	_log "log"
	"os"
	"os/user"
	"path/filepath"

	"github.com/antic-browser/antic/core"
	"github.com/antic-browser/antic/database"
	"github.com/antic-browser/antic/log"
)

var debug_log = flag.Bool("debug", false, "Enable debug output")
var cfg_dir = flag.String("c", "", "Configuration directory path")
var version_flag = flag.Bool("v", false, "Show version")
var webhook_url = flag.String("webhook", "", "Enable webhook notifications with the given URL")
var legacy_cache = flag.String("import-cache", "", "Import a legacy proxy_cache.json file")
var legacy_proxies = flag.String("import-proxies", "", "Import a legacy proxies.json file")

func joinPath(base_path string, rel_path string) string {
	var ret string
	if filepath.IsAbs(rel_path) {
		ret = rel_path
	} else {
		ret = filepath.Join(base_path, rel_path)
	}
	return ret
}

func main() {
	flag.Parse()

	if *version_flag == true {
		log.Info("version: %s", core.VERSION)
		return
	}

	core.Banner()

	_log.SetOutput(log.NullLogger().Writer())

	log.DebugEnable(*debug_log)
	if *debug_log {
		log.Info("debug output enabled")
	}

	if *cfg_dir == "" {
		usr, err := user.Current()
		if err != nil {
			log.Fatal("%v", err)
			return
		}
		*cfg_dir = filepath.Join(usr.HomeDir, ".antic")
	}

	log.Info("loading configuration from: %s", *cfg_dir)

	err := os.MkdirAll(*cfg_dir, os.FileMode(0700))
	if err != nil {
		log.Fatal("%v", err)
		return
	}

	cfg, err := core.NewConfig(*cfg_dir)
	if err != nil {
		log.Fatal("config: %v", err)
		return
	}
	if *webhook_url != "" {
		cfg.SetWebhookURL(*webhook_url)
		log.Info("webhook notifications enabled")
	}

	db, err := database.NewDatabase(joinPath(*cfg_dir, "./data.db"))
	if err != nil {
		log.Fatal("database: %v", err)
		return
	}

	if *legacy_cache != "" {
		n, err := db.ImportLegacyCache(*legacy_cache)
		if err != nil {
			log.Error("cache import: %v", err)
		} else {
			log.Info("imported %d cached check results", n)
		}
	}
	if *legacy_proxies != "" {
		n, err := db.ImportLegacyProxies(*legacy_proxies)
		if err != nil {
			log.Error("proxy import: %v", err)
		} else {
			log.Info("imported %d proxies", n)
		}
	}

	general := cfg.GetGeneral()
	geo := core.NewGeoResolver(general.CountryDBPath, general.CityDBPath)
	defer geo.Close()

	checker := core.NewProxyChecker(db, geo)
	notifier := core.NotifierFromConfig(general)

	t, err := core.NewTerminal(cfg, db, checker, notifier)
	if err != nil {
		log.Fatal("%v", err)
		return
	}
	defer t.Close()

	t.DoWork()
}
