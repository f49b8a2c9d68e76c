package core

import (
	"github.com/fatih/color"

	"github.com/antic-browser/antic/log"
)

const VERSION = "1.2.0"

func Banner() {
	cyan := color.New(color.FgCyan)
	white := color.New(color.FgHiWhite)
	log.Printf("\n")
	log.Printf("%s", cyan.Sprint("  antic - antidetect browser profiles\n"))
	log.Printf("%s", white.Sprintf("  version %s\n", VERSION))
	log.Printf("\n")
}
