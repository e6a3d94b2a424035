package repair

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Command is a structured repair request, as produced by the command interpreter
type Command struct {
	Course    string `json:"course" yaml:"course" mapstructure:"course" validate:"required"`
	Component string `json:"component" yaml:"component" mapstructure:"component" validate:"required"` // Free-form, e.g. "L" or "lecture"
	Day       string `json:"day" yaml:"day" mapstructure:"day" validate:"required"`
	Start     string `json:"start" yaml:"start" mapstructure:"start" validate:"required"` // HH:MM
	End       string `json:"end,omitempty" yaml:"end" mapstructure:"end"`
	Room      string `json:"room,omitempty" yaml:"room" mapstructure:"room"`
	Faculty   string `json:"faculty,omitempty" yaml:"faculty" mapstructure:"faculty"`
	Forced    bool   `json:"forced" yaml:"forced" mapstructure:"forced"`
	Reason    string `json:"reason,omitempty" yaml:"reason" mapstructure:"reason"`
}

func (command Command) String() string {
	forced := ""
	if command.Forced {
		forced = " forced"
	}
	return fmt.Sprintf("move %v/%v to %v %v%v", command.Course, command.Component, command.Day, command.Start, forced)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCommand decodes one command from loosely typed input and checks its required fields
func DecodeCommand(input map[string]any) (Command, error) {
	var command Command
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &command,
	})
	if err != nil {
		return Command{}, err
	}
	if err := decoder.Decode(input); err != nil {
		return Command{}, fmt.Errorf("cannot decode command: %w", err)
	}
	if err := validate.Struct(command); err != nil {
		return Command{}, fmt.Errorf("invalid command %v: %w", command, err)
	}
	return command, nil
}

// DecodeCommands reads a JSON or YAML file holding either a list of commands or an object with a "commands" list
func DecodeCommands(path string) ([]Command, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read commands file: %w", err)
	}

	var input any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &input)
	default:
		err = json.Unmarshal(bytes, &input)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse commands file: %w", err)
	}

	if object, ok := input.(map[string]any); ok {
		input = object["commands"]
	}
	list, ok := input.([]any)
	if !ok {
		return nil, fmt.Errorf("commands file %v holds no command list", path)
	}

	commands := make([]Command, 0, len(list))
	for i, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("command %d is not an object", i+1)
		}
		command, err := DecodeCommand(object)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		commands = append(commands, command)
	}
	return commands, nil
}
