package devserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/testscriptgen/internal/api"
)

// gif89a is a 1x1 transparent GIF used as the recorded run.
var gif89a = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// schedule finishes the run for task after the configured delay.
func (s *Server) schedule(task api.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if old, ok := s.timers[task.ID]; ok {
		old.Stop()
	}
	s.timers[task.ID] = time.AfterFunc(s.opts.RunDelay, func() {
		s.complete(task)
	})
}

func (s *Server) complete(task api.Task) {
	s.mu.Lock()
	delete(s.timers, task.ID)
	s.mu.Unlock()

	log := s.log.WithField("task_id", task.ID)

	if s.opts.FailKeyword != "" && strings.Contains(task.Instruction, s.opts.FailKeyword) {
		s.store.finish(task.ID, api.StatusFailed, nil, nil)
		log.Info("simulated run failed")
		return
	}

	id := uuid.NewString()
	gifName := id + ".gif"
	scriptName := id + ".py"
	result := &api.TaskResult{
		TaskID:    task.ID,
		GIFURL:    "/static/" + gifName,
		ScriptURL: "/static/" + scriptName,
	}
	s.store.finish(task.ID, api.StatusCompleted, result, map[string][]byte{
		gifName:    gif89a,
		scriptName: []byte(script(task)),
	})
	log.WithField("script", scriptName).Info("simulated run completed")
}

// script renders a placeholder Playwright script for the run.
func script(task api.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Generated test script for task %d: %s\n", task.ID, task.Name)
	fmt.Fprintf(&b, "# Instruction: %s\n", oneLine(task.Instruction))
	if task.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "# Expected outcome: %s\n", oneLine(task.ExpectedOutcome))
	}
	b.WriteString("from playwright.sync_api import sync_playwright\n\n\n")
	b.WriteString("def test_task():\n")
	b.WriteString("    with sync_playwright() as p:\n")
	headless := "False"
	if task.BrowserHeadless != nil && *task.BrowserHeadless {
		headless = "True"
	}
	fmt.Fprintf(&b, "        browser = p.chromium.launch(headless=%s)\n", headless)
	b.WriteString("        page = browser.new_page()\n")
	if task.SearchInput != "" {
		fmt.Fprintf(&b, "        page.fill(%q, %q)\n", "input", task.SearchInput)
	}
	if task.SearchAction != "" {
		fmt.Fprintf(&b, "        page.keyboard.press(%q)\n", task.SearchAction)
	}
	b.WriteString("        browser.close()\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
