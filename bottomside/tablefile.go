package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//tableFile is the on-disk form of a Table, with transitions named instead of indexed
type tableFile struct {
	Start    string      `yaml:"start"`
	Terminal string      `yaml:"terminal"`
	States   []stateFile `yaml:"states"`
}

type stateFile struct {
	Name  string    `yaml:"name"`
	Drive [2]uint16 `yaml:"drive"`
	LEDs  [2]uint8  `yaml:"leds"`
	Dwell uint32    `yaml:"dwell"`
	Next  []string  `yaml:"next"`
}

//ParseTable decodes a YAML state table
func ParseTable(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("decoding state table: %w", err)
	}
	ids := make(map[string]StateID, len(tf.States))
	for i, s := range tf.States {
		ids[s.Name] = StateID(i)
	}
	resolve := func(name string) (StateID, error) {
		id, ok := ids[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
		}
		return id, nil
	}

	states := make([]State, len(tf.States))
	for i, s := range tf.States {
		if len(s.Next) != NumInputs {
			return nil, fmt.Errorf("state %q: %w: want %d transitions, got %d",
				s.Name, ErrDanglingTransition, NumInputs, len(s.Next))
		}
		st := State{
			Name:  s.Name,
			Left:  s.Drive[0],
			Right: s.Drive[1],
			LED1:  s.LEDs[0],
			LED2:  s.LEDs[1],
			Dwell: s.Dwell,
		}
		for code, name := range s.Next {
			id, err := resolve(name)
			if err != nil {
				return nil, fmt.Errorf("state %q input %d: %w", s.Name, code, err)
			}
			st.Next[code] = id
		}
		states[i] = st
	}

	start, err := resolve(tf.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	terminal, err := resolve(tf.Terminal)
	if err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	return NewTable(states, start, terminal)
}

//LoadTable reads a YAML state table from path
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
