package bprog

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidProgram is returned when a program definition cannot be loaded.
var ErrInvalidProgram = errors.New("invalid program")

// Definition is the declarative source of a behavioral program.
type Definition struct {
	Name                  string            `mapstructure:"name"`
	Strategy              string            `mapstructure:"strategy"`
	WaitForExternalEvents bool              `mapstructure:"wait_for_external_events"`
	Globals               map[string]string `mapstructure:"globals"`
	Threads               []ThreadDef       `mapstructure:"threads"`
}

// ThreadDef is one b-thread: an ordered list of steps.
type ThreadDef struct {
	Name string `mapstructure:"name"`
	// Loop restarts the thread at its first step after the last one.
	Loop  bool      `mapstructure:"loop"`
	Steps []StepDef `mapstructure:"steps"`
}

// StepDef is the code a thread runs up to one sync statement.
// A step without request, wait_for or block runs and falls through to the next one.
type StepDef struct {
	// Line is the source line of the sync statement.
	Line int `mapstructure:"line"`
	// Exec lists the lines executed before the sync statement.
	Exec   []ExecLine        `mapstructure:"exec"`
	Log    string            `mapstructure:"log"`
	Set    map[string]string `mapstructure:"set"`
	Assert string            `mapstructure:"assert"`

	Request []string `mapstructure:"request"`
	WaitFor []string `mapstructure:"wait_for"`
	Block   []string `mapstructure:"block"`
}

// ExecLine is a plain source line executed at the given call depth.
type ExecLine struct {
	Line  int `mapstructure:"line"`
	Depth int `mapstructure:"depth"`
}

func (s StepDef) syncs() bool {
	return len(s.Request) > 0 || len(s.WaitFor) > 0 || len(s.Block) > 0
}

// ParseDefinition decodes YAML into a Definition.
// Decoding is weakly typed: `request: hot` is a one-event list and `exec: [3, 4]` is shorthand
// for depth-0 lines.
func ParseDefinition(data []byte) (Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}

	var def Definition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(execLineHook),
	})
	if err != nil {
		return Definition{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// LoadDefinition reads and decodes a YAML file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read program %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = path
	}
	return def, nil
}

func execLineHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(ExecLine{}) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64, reflect.String:
		var line int
		if err := mapstructure.WeakDecode(data, &line); err != nil {
			return nil, err
		}
		return ExecLine{Line: line}, nil
	}
	return data, nil
}

// Validate checks the structural rules of a definition.
func (d Definition) Validate() error {
	if len(d.Threads) == 0 {
		return fmt.Errorf("%w: no threads", ErrInvalidProgram)
	}

	names := make(map[string]bool, len(d.Threads))
	for i, t := range d.Threads {
		if t.Name == "" {
			return fmt.Errorf("%w: thread %d has no name", ErrInvalidProgram, i)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: duplicate thread %q", ErrInvalidProgram, t.Name)
		}
		names[t.Name] = true

		if len(t.Steps) == 0 {
			return fmt.Errorf("%w: thread %q has no steps", ErrInvalidProgram, t.Name)
		}
		syncs := false
		for j, s := range t.Steps {
			if s.Line <= 0 {
				return fmt.Errorf("%w: thread %q step %d has no line", ErrInvalidProgram, t.Name, j)
			}
			for _, x := range s.Exec {
				if x.Line <= 0 || x.Depth < 0 {
					return fmt.Errorf("%w: thread %q step %d has an invalid exec line", ErrInvalidProgram, t.Name, j)
				}
			}
			syncs = syncs || s.syncs() || s.Assert != ""
		}
		if t.Loop && !syncs {
			return fmt.Errorf("%w: looping thread %q never synchronizes", ErrInvalidProgram, t.Name)
		}
	}
	return nil
}
