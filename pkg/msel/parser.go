package msel

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/types"
)

var (
	sectionHeaderRe = regexp.MustCompile(`(?m)^##\s+T\+(\d+):(\d+)\s+-\s+(.+)$`)
	placeFileRe     = regexp.MustCompile(`^-\s+Place file:\s+(\S+)\s+on\s+(\S+)\s+at\s+(.+)$`)
	runCommandRe    = regexp.MustCompile(`^-\s+Run command on\s+(\S+):\s+(.+)$`)
	actionsMarker   = "**Actions:**"
)

// section is one ## T+H:MM block, header already consumed.
type section struct {
	hours, minutes int
	title          string
	body           []string
}

// Parse splits rawText into sections on "## T+H:MM - title" headers and
// builds one Inject per section, numbered from 1 in document order.
// Non-action lines before the **Actions:** marker form the description;
// after it, unknown lines (bullets included) are ignored. Action order within a section
// follows document order, mixing place_file and run_command freely.
func Parse(rawText string) ([]types.Inject, error) {
	sections := splitSections(rawText)

	injects := make([]types.Inject, 0, len(sections))
	for i, sec := range sections {
		injects = append(injects, buildInject(sec, i+1))
	}
	return injects, nil
}

func splitSections(rawText string) []section {
	var sections []section
	var current *section

	for _, line := range strings.Split(rawText, "\n") {
		if m := sectionHeaderRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			if current != nil {
				sections = append(sections, *current)
			}
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			current = &section{hours: h, minutes: mm, title: strings.TrimSpace(m[3])}
			continue
		}
		if current != nil {
			current.body = append(current.body, line)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

func buildInject(sec section, sequence int) types.Inject {
	var descLines []string
	var actions []types.Action
	actionsStarted := false

	for _, line := range sec.body {
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == actionsMarker {
			actionsStarted = true
			continue
		}
		if m := placeFileRe.FindStringSubmatch(strings.TrimSpace(trimmed)); m != nil {
			actions = append(actions, types.Action{
				Kind:           types.ActionKindPlaceFile,
				Filename:       m[1],
				TargetHostname: m[2],
				TargetPath:     strings.TrimSpace(m[3]),
			})
			continue
		}
		if m := runCommandRe.FindStringSubmatch(strings.TrimSpace(trimmed)); m != nil {
			actions = append(actions, types.Action{
				Kind:           types.ActionKindRunCommand,
				TargetHostname: m[1],
				Command:        strings.TrimSpace(m[2]),
			})
			continue
		}
		if !actionsStarted {
			descLines = append(descLines, trimmed)
		}
		// any other line (including unknown bullets) is ignored
	}

	return types.Inject{
		Sequence:          sequence,
		InjectTimeMinutes: sec.hours*60 + sec.minutes,
		Title:             sec.title,
		Description:       strings.TrimSpace(strings.Join(descLines, "\n")),
		Actions:           actions,
		Status:            types.InjectStatusPending,
	}
}

// validate checks an Inject's actions carry only recognized kinds. Its
// one caller, Manager.Import, runs it over Parse's output, which only
// ever holds the two recognized kinds.
func validate(inject types.Inject) error {
	for _, a := range inject.Actions {
		switch a.Kind {
		case types.ActionKindRunCommand, types.ActionKindPlaceFile:
		default:
			return cyerr.Validation("inject %q: unrecognized action kind %q", inject.Title, a.Kind)
		}
	}
	return nil
}
