// Package config loads the list of lines to monitor. The file is a JSON
// (or YAML) array with one object per line.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/gpio-monitor/internal/action"
	"github.com/sweeney/gpio-monitor/internal/gpio"
	"github.com/sweeney/gpio-monitor/internal/monitor"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// ActionKind selects the action bound to a line.
type ActionKind int

const (
	// ActionService starts systemd units.
	ActionService ActionKind = iota
	// ActionInventory keeps an inventory item's Present property in step.
	ActionInventory
	// ActionHealth reports health flips to the health monitor.
	ActionHealth
)

func (k ActionKind) String() string {
	switch k {
	case ActionService:
		return "service"
	case ActionInventory:
		return "inventory"
	case ActionHealth:
		return "health"
	default:
		return "unknown"
	}
}

// Pulse configures pulse detection on a line.
type Pulse struct {
	Timeout time.Duration
	Kind    monitor.PulseKind
}

// Line is one validated entry.
type Line struct {
	// Label names the line in logs, e.g. "GPIO Line PS_PWROK".
	Label string

	GPIO     gpio.LineConfig
	Continue bool
	Action   ActionKind

	// ActionService
	Target  string
	Targets map[string][]string

	// ActionInventory
	Inventory       string
	PrettyName      string
	ExtraInterfaces []string

	// ActionHealth
	HealthPath      string
	HealthyOnRising bool

	// Pulse, if set, selects a pulse monitor instead of an edge monitor.
	Pulse *Pulse

	// Publish mirrors the line's events to MQTT.
	Publish bool
}

// Mode returns "pulse" or "edge".
func (l Line) Mode() string {
	if l.Pulse != nil {
		return "pulse"
	}
	return "edge"
}

type rawPulse struct {
	TimeoutMs *int64 `yaml:"TimeoutMs"`
	Kind      string `yaml:"Kind"`
}

type rawLine struct {
	LineName        string              `yaml:"LineName"`
	ChipId          string              `yaml:"ChipId"`
	GpioNum         *int                `yaml:"GpioNum"`
	Bias            string              `yaml:"Bias"`
	ActiveLow       bool                `yaml:"ActiveLow"`
	EventMon        string              `yaml:"EventMon"`
	Continue        bool                `yaml:"Continue"`
	Target          string              `yaml:"Target"`
	Targets         map[string][]string `yaml:"Targets"`
	Inventory       string              `yaml:"Inventory"`
	Name            string              `yaml:"Name"`
	ExtraInterfaces []string            `yaml:"ExtraInterfaces"`
	HealthPath      string              `yaml:"HealthPath"`
	HealthyPolarity string              `yaml:"HealthyPolarity"`
	Pulse           *rawPulse           `yaml:"Pulse"`
	Publish         bool                `yaml:"Publish"`
}

var (
	biasNames = map[string]gpio.Bias{
		"AS_IS":     gpio.BiasAsIs,
		"DISABLE":   gpio.BiasDisable,
		"PULL_UP":   gpio.BiasPullUp,
		"PULL_DOWN": gpio.BiasPullDown,
	}
	edgeNames = map[string]gpio.EdgeDirection{
		"BOTH":    gpio.EdgeBoth,
		"RISING":  gpio.EdgeRising,
		"FALLING": gpio.EdgeFalling,
	}
	pulseKindNames = map[string]monitor.PulseKind{
		"START": monitor.PulseStart,
		"STOP":  monitor.PulseStop,
		"BOTH":  monitor.PulseBoth,
	}

	numericChip = regexp.MustCompile(`^[0-9]+$`)
)

// Load reads and validates the file at path.
func Load(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	lines, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// Parse validates a config document.
func Parse(data []byte) ([]Line, error) {
	var raw []rawLine
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no lines configured", ErrInvalid)
	}

	lines := make([]Line, 0, len(raw))
	for i, r := range raw {
		l, err := r.validate()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalid, i, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func (r rawLine) validate() (Line, error) {
	var l Line

	switch {
	case r.LineName != "":
		l.GPIO.Name = r.LineName
		l.Label = "GPIO Line " + r.LineName
	case r.ChipId != "" && r.GpioNum != nil:
		if *r.GpioNum < 0 {
			return l, fmt.Errorf("negative GpioNum %d", *r.GpioNum)
		}
		l.GPIO.Chip = r.ChipId
		if numericChip.MatchString(r.ChipId) {
			l.GPIO.Chip = "gpiochip" + r.ChipId
		}
		l.GPIO.Offset = *r.GpioNum
		l.Label = "GPIO Line " + strconv.Itoa(*r.GpioNum)
	default:
		return l, errors.New("line name or chip id and gpio number required")
	}

	if r.Bias != "" {
		b, ok := biasNames[r.Bias]
		if !ok {
			return l, fmt.Errorf("%s: unknown Bias %q", l.Label, r.Bias)
		}
		l.GPIO.Bias = b
	}
	l.GPIO.ActiveLow = r.ActiveLow
	l.Publish = r.Publish

	switch {
	case r.Inventory != "" && r.Name != "":
		// Presence is tracked for the life of the daemon, on both edges.
		l.Action = ActionInventory
		l.Continue = true
		l.Inventory = r.Inventory
		l.PrettyName = r.Name
		l.ExtraInterfaces = r.ExtraInterfaces
	case r.HealthPath != "":
		l.Action = ActionHealth
		l.Continue = true
		l.HealthPath = r.HealthPath
		switch r.HealthyPolarity {
		case "", "RISING":
			l.HealthyOnRising = true
		case "FALLING":
		default:
			return l, fmt.Errorf("%s: unknown HealthyPolarity %q", l.Label, r.HealthyPolarity)
		}
	default:
		l.Action = ActionService
		l.Continue = r.Continue
		l.Target = r.Target
		l.Targets = normalizeTargets(r.Targets)
		if r.EventMon != "" {
			e, ok := edgeNames[r.EventMon]
			if !ok {
				return l, fmt.Errorf("%s: unknown EventMon %q", l.Label, r.EventMon)
			}
			l.GPIO.Edge = e
		}
	}

	if r.Pulse != nil {
		p, err := r.Pulse.validate(l.Label)
		if err != nil {
			return l, err
		}
		l.Pulse = p
	}
	return l, nil
}

func (p rawPulse) validate(label string) (*Pulse, error) {
	if p.TimeoutMs == nil || *p.TimeoutMs <= 0 {
		return nil, fmt.Errorf("%s: pulse TimeoutMs must be positive", label)
	}
	kind := monitor.PulseBoth
	if p.Kind != "" {
		k, ok := pulseKindNames[p.Kind]
		if !ok {
			return nil, fmt.Errorf("%s: unknown pulse Kind %q", label, p.Kind)
		}
		kind = k
	}
	return &Pulse{Timeout: time.Duration(*p.TimeoutMs) * time.Millisecond, Kind: kind}, nil
}

// normalizeTargets renames the RISING and FALLING keys to the event
// keywords the service action looks up. Other keys are kept as given.
func normalizeTargets(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		switch k {
		case "RISING":
			k = action.AssertedKeyword
		case "FALLING":
			k = action.DeassertedKeyword
		}
		out[k] = v
	}
	return out
}
