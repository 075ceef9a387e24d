package tool

import (
	"flag"

	"github.com/moyoez/pairdrop-go/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseEndpoint, "useEndpoint", "", "override socket endpoint")
	flag.StringVar(&cfg.UseApiBase, "useApiBase", "", "override REST api base")
	flag.BoolVar(&cfg.UseRestValidate, "useRestValidate", false, "validate the code over REST before pairing (needs apiBase)")
	flag.StringVar(&cfg.Code, "code", "", "6-digit pairing code shown on the desktop")
	flag.StringVar(&cfg.Token, "token", "", "optional bearer token")
	flag.StringVar(&cfg.QRPayload, "qr", "", "raw QR payload (token:code, validate-code URL or code)")
	flag.StringVar(&cfg.File, "file", "", "file to send once paired")
	flag.BoolVar(&cfg.Generate, "generate", false, "desktop helper: generate a new code over REST and print it")
	flag.BoolVar(&cfg.Serve, "serve", false, "run the local control API for a presentation layer")
	flag.BoolVar(&cfg.Probe, "probe", false, "ICMP probe the endpoint host and exit")
	flag.BoolVar(&cfg.SkipNotify, "skipNotify", false, "do not emit state notifications")
	flag.Parse()
	return cfg
}
