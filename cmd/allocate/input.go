package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable/pkg/allocator"
	"github.com/noah-isme/sma-timetable/pkg/timeslot"
)

type subjectInput struct {
	Name     string `yaml:"name" validate:"required"`
	Credits  int    `yaml:"credits" validate:"min=1"`
	Priority int    `yaml:"priority" validate:"omitempty,min=1"`
}

// allocationFile is the YAML document accepted by the run command.
type allocationFile struct {
	Days         []string                    `yaml:"days" validate:"omitempty,dive,required"`
	Timeslots    []string                    `yaml:"timeslots" validate:"omitempty,dive,required"`
	Daily        *timeslot.DailyConfig       `yaml:"daily"`
	Subjects     []subjectInput              `yaml:"subjects" validate:"required,min=1,dive"`
	InvalidSlots map[string][]allocator.Cell `yaml:"invalidSlots"`
}

func readInput(path string) (*allocationFile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeInput(r)
}

func decodeInput(r io.Reader) (*allocationFile, error) {
	var file allocationFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if len(file.Timeslots) == 0 && file.Daily == nil {
		return nil, fmt.Errorf("invalid input: either timeslots or daily is required")
	}
	return &file, nil
}

// toInput resolves the document into an allocator input. Explicit timeslots win over a daily config.
func (f *allocationFile) toInput() (allocator.Input, error) {
	in := allocator.Input{
		Days:         f.Days,
		Credits:      make(map[string]int, len(f.Subjects)),
		Priorities:   make(map[string]int, len(f.Subjects)),
		InvalidSlots: make(map[string]allocator.CellSet, len(f.InvalidSlots)),
	}

	if len(f.Timeslots) > 0 {
		for _, raw := range f.Timeslots {
			label, err := timeslot.Normalize(raw)
			if err != nil {
				return allocator.Input{}, fmt.Errorf("timeslot %q: %w", raw, err)
			}
			in.Timeslots = append(in.Timeslots, label)
		}
	} else {
		labels, err := timeslot.Labels(*f.Daily)
		if err != nil {
			return allocator.Input{}, err
		}
		in.Timeslots = labels
	}
	if len(in.Timeslots) == 0 {
		return allocator.Input{}, fmt.Errorf("no lecture timeslots")
	}

	for _, s := range f.Subjects {
		name := strings.TrimSpace(s.Name)
		if _, dup := in.Credits[name]; dup {
			return allocator.Input{}, fmt.Errorf("subject %q listed twice", name)
		}
		in.Subjects = append(in.Subjects, name)
		in.Credits[name] = s.Credits
		if s.Priority > 0 {
			in.Priorities[name] = s.Priority
		}
	}

	for subject, cells := range f.InvalidSlots {
		if _, ok := in.Credits[subject]; !ok {
			return allocator.Input{}, fmt.Errorf("invalid slots for unknown subject %q", subject)
		}
		set := allocator.NewCellSet()
		for _, cell := range cells {
			label, err := timeslot.Normalize(cell.Timeslot)
			if err != nil {
				return allocator.Input{}, fmt.Errorf("invalid slot %q for %s: %w", cell.Timeslot, subject, err)
			}
			set.Add(allocator.Cell{Day: cell.Day, Timeslot: label})
		}
		in.InvalidSlots[subject] = set
	}
	return in, nil
}
