package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/sticks-io/gcfeeder/internal/adapter"
	"github.com/sticks-io/gcfeeder/internal/bridge"
	"github.com/sticks-io/gcfeeder/internal/bridge/uinput"
	"github.com/sticks-io/gcfeeder/internal/bridge/xbox360"
	"github.com/sticks-io/gcfeeder/internal/calibration"
	"github.com/sticks-io/gcfeeder/internal/config"
	"github.com/sticks-io/gcfeeder/internal/configpaths"
	"github.com/sticks-io/gcfeeder/internal/feeder"
	"github.com/sticks-io/gcfeeder/internal/gcinput"
	internallog "github.com/sticks-io/gcfeeder/internal/log"
	"github.com/sticks-io/gcfeeder/internal/mapping"
	"github.com/sticks-io/gcfeeder/internal/poller"
)

// defaultProfile is substituted whenever a port names a profile the config
// document doesn't define and the document's own DefaultProfile is also
// missing — a fallback of last resort, not something a real config should
// ever rely on.
var defaultProfile = config.Profile{
	Driver:      "xbox360",
	TriggerMode: "analog",
	AnalogScale: 1.0,
}

// RunCommand starts the poller and one feeder per configured port, and
// blocks until interrupted.
type RunCommand struct {
	Config string `help:"Path to the gcfeeder config document (ports/profiles). Defaults to the platform config search path."`
}

// Run loads the config document, wires up a Poller and one Feeder per
// port, and blocks until SIGINT/SIGTERM. logger and rawLogger are supplied
// by kong's ctx.Bind in cmd/gcfeeder/main.go.
func (r *RunCommand) Run(logger *slog.Logger, rawLogger internallog.RawLogger) error {
	cfg, err := loadConfig(r.Config)
	if err != nil {
		return fmt.Errorf("run: load config: %w", err)
	}
	applyDefaults(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := poller.New(adapter.OpenUSB, logger)
	go p.Run(ctx)

	var wg sync.WaitGroup
	feeders := make([]*feeder.Feeder, 0, gcinput.NumPorts)

	for i := 0; i < gcinput.NumPorts; i++ {
		port := gcinput.Port(i)
		profile := resolveProfile(cfg, port, logger)

		listener := p.AddListener(port)
		f := feeder.New(feeder.Options{
			Port:          port,
			Listener:      listener,
			NewBridge:     bridgeFactory(profile, logger, rawLogger),
			UserLayers:    userLayers(profile, logger),
			RumbleEnabled: cfg.Rumble,
			Logger:        logger,
		})
		feeders = append(feeders, f)

		wg.Add(1)
		go func(f *feeder.Feeder) {
			defer wg.Done()
			f.Run()
		}(f)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	for _, f := range feeders {
		f.Stop()
	}
	for _, f := range feeders {
		<-f.Done()
	}

	p.Stop()
	<-p.Done()
	wg.Wait()
	return nil
}

// loadConfig resolves path (or the platform search path if empty) and
// parses the matching format into a config.Config.
func loadConfig(path string) (*config.Config, error) {
	format := ""
	if path == "" {
		jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths("")
		for _, p := range jsonPaths {
			if fileExists(p) {
				path, format = p, "json"
				break
			}
		}
		if path == "" {
			for _, p := range yamlPaths {
				if fileExists(p) {
					path, format = p, "yaml"
					break
				}
			}
		}
		if path == "" {
			for _, p := range tomlPaths {
				if fileExists(p) {
					path, format = p, "toml"
					break
				}
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no config file found on the search path")
		}
	} else {
		format = formatForExt(filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg config.Config
	switch format {
	case "json":
		err = json.Unmarshal(data, &cfg)
	case "yaml":
		err = yaml.Unmarshal(data, &cfg)
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = fmt.Errorf("unrecognized config format for %s", path)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func formatForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// applyDefaults fills in the zero values a freshly unmarshaled Config is
// left with when the document omits them.
func applyDefaults(cfg *config.Config) {
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "default"
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]config.Profile{}
	}
	for i, name := range cfg.Ports {
		if name == "" {
			cfg.Ports[i] = cfg.DefaultProfile
		}
	}
}

// resolveProfile looks up the profile named for port, falling back to the
// document's default profile and finally to the hardcoded defaultProfile.
// A missing name is a config defect: logged, never fatal.
func resolveProfile(cfg *config.Config, port gcinput.Port, logger *slog.Logger) config.Profile {
	name := cfg.Ports[port]
	if p, ok := cfg.Profiles[name]; ok {
		return p
	}
	logger.Warn("port names an undefined profile, falling back to default", "port", port, "profile", name)
	if p, ok := cfg.Profiles[cfg.DefaultProfile]; ok {
		return p
	}
	logger.Warn("default profile is also undefined, using builtin fallback", "port", port)
	return defaultProfile
}

func triggerModeFor(name string) bridge.TriggerMode {
	switch name {
	case "digital":
		return bridge.TriggerDigital
	case "combination":
		return bridge.TriggerCombination
	case "stick_click":
		return bridge.TriggerStickClick
	default:
		return bridge.TriggerAnalog
	}
}

// bridgeFactory selects and closes over the Bridge constructor for a
// profile's configured driver.
func bridgeFactory(p config.Profile, logger *slog.Logger, rawLogger internallog.RawLogger) feeder.BridgeFactory {
	mode := triggerModeFor(p.TriggerMode)
	switch p.Driver {
	case "uinput":
		return func() (bridge.Bridge, error) {
			return uinput.New(uinput.Config{TriggerMode: mode})
		}
	default: // "xbox360"
		return func() (bridge.Bridge, error) {
			return xbox360.New(xbox360.Config{
				Addr:        p.Xbox360.Addr,
				TriggerMode: mode,
				RawLog:      rawLogger,
			}, logger), nil
		}
	}
}

// userLayers builds the user-configured pipeline per the fixed
// construction policy: AnalogScaling and EssInversion only when the
// profile actually changes behavior, Calibration only when enabled.
func userLayers(p config.Profile, logger *slog.Logger) []mapping.Layer {
	var layers []mapping.Layer

	if d := p.AnalogScale - 1.0; d > mapping.ScaleEpsilon || d < -mapping.ScaleEpsilon {
		layers = append(layers, &mapping.AnalogScaling{Scale: p.AnalogScale})
	}

	if variant, ok := essVariantFor(p.Ess); ok {
		layers = append(layers, &mapping.EssInversion{Variant: variant})
	}

	if p.Calibration.Enabled {
		var main, c *calibration.StickCalibration
		var left, right *calibration.TriggerCalibration
		if p.Calibration.MainStick != nil {
			v := p.Calibration.MainStick.ToCalibration()
			main = &v
		}
		if p.Calibration.CStick != nil {
			v := p.Calibration.CStick.ToCalibration()
			c = &v
		}
		if p.Calibration.LeftTrigger != nil {
			v := p.Calibration.LeftTrigger.ToCalibration()
			left = &v
		}
		if p.Calibration.RightTrigger != nil {
			v := p.Calibration.RightTrigger.ToCalibration()
			right = &v
		}
		layers = append(layers, mapping.NewCalibration(main, c, left, right, logger))
	}

	return layers
}

func essVariantFor(name string) (calibration.EssVariant, bool) {
	switch name {
	case "ootvc":
		return calibration.EssOotVC, true
	case "mmvc":
		return calibration.EssMmVC, true
	case "z64gc":
		return calibration.EssZ64GC, true
	default:
		return 0, false
	}
}
