package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/task"
)

// check prints the secrets each task type still needs and returns the
// process exit code.
func check(w io.Writer, secrets config.Secrets) int {
	ok := color.New(color.FgGreen).SprintFunc()
	missing := color.New(color.FgRed).SprintFunc()

	exit := 0
	for _, c := range []struct {
		taskType task.Type
		missing  []string
	}{
		{task.TypeChat, secrets.MissingForChat()},
		{task.TypePRToMain, secrets.MissingForMerge()},
	} {
		if len(c.missing) == 0 {
			fmt.Fprintf(w, "%-12s %s\n", c.taskType, ok("ready"))
			continue
		}
		exit = 1
		fmt.Fprintf(w, "%-12s %s %s\n", c.taskType, missing("missing:"), strings.Join(c.missing, ", "))
	}
	return exit
}
