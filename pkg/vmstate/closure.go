package vmstate

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvTag extracts the numeric CLOSURE_ID embedded in a
// <function:NAME@LABEL#CLOSURE_ID> literal (ir.FunctionRef) from the
// closure-environment address it came from: CLOSURE_ID is simply the
// numeric suffix of "env_N", so CONST's closure-promotion path (spec.md
// §4.3) never mints a separate tag, and call dispatch can recover the
// environment id from the tag alone (spec.md §4.3 call dispatch step 4:
// "set the new frame's closure_env_id to that environment").
func EnvTag(envID string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(envID, "env_"))
	if err != nil {
		return 0, fmt.Errorf("vmstate: malformed closure environment id %q: %w", envID, err)
	}
	return n, nil
}

// EnvIDFromTag is the inverse of EnvTag.
func EnvIDFromTag(tag int) string {
	return "env_" + strconv.Itoa(tag)
}
