package crew

import (
	"regexp"
	"strings"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionRe      = regexp.MustCompile(`(?m)^\s*Action\s*:\s*(.+?)\s*$`)
	actionInputRe = regexp.MustCompile(`(?s)Action\s*Input\s*:\s*(.*?)(?:\n\s*Observation\s*:|\z)`)
)

// step is one parsed model reply.
type step struct {
	final  string
	action string
	input  string
}

func (s step) isAction() bool {
	return s.action != ""
}

// parseStep reads a reply in the Thought/Action/Action Input/Final Answer format.
// A reply naming an action before any final answer is an action; a reply with
// neither marker is taken verbatim as the final answer.
func parseStep(reply string) step {
	finalIdx := strings.Index(reply, finalAnswerMarker)

	if loc := actionRe.FindStringSubmatchIndex(reply); loc != nil && (finalIdx < 0 || loc[0] < finalIdx) {
		action := strings.TrimSpace(reply[loc[2]:loc[3]])
		input := ""
		if m := actionInputRe.FindStringSubmatch(reply[loc[1]:]); m != nil {
			input = cleanActionInput(m[1])
		}
		return step{action: action, input: input}
	}

	if finalIdx >= 0 {
		return step{final: strings.TrimSpace(reply[finalIdx+len(finalAnswerMarker):])}
	}
	return step{final: strings.TrimSpace(reply)}
}

func cleanActionInput(raw string) string {
	input := strings.TrimSpace(raw)
	if len(input) >= 2 {
		if (input[0] == '"' && input[len(input)-1] == '"') || (input[0] == '\'' && input[len(input)-1] == '\'') {
			input = input[1 : len(input)-1]
		}
	}
	return strings.TrimSpace(input)
}
