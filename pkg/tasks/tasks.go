// Package tasks turns a model's task breakdown into task records.
//
// Extraction is best effort: structured JSON is preferred, then [TASK]
// blocks, then numbered or bulleted lines. It never fails.
package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	DefaultType     = "task"
	DefaultPriority = "medium"
	untitled        = "Untitled"
	descriptionCap  = 100
)

// Task is one actionable unit of work.
type Task struct {
	Type               string   `json:"type"`
	Priority           string   `json:"priority"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

var (
	fencePattern      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
	taskBlockPattern  = regexp.MustCompile(`(?s)\[TASK\](.*?)\[/TASK\]`)
	keyValuePattern   = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z _-]*?)\s*:\s*(.*)$`)
	listItemPattern   = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)
	arrayStartPattern = regexp.MustCompile(`\[\s*\{`)
)

// Extract parses text into tasks, in the order they appear.
func Extract(text string) []Task {
	if strings.TrimSpace(text) == "" {
		return []Task{}
	}

	if found := fromJSON(text); len(found) > 0 {
		return found
	}
	if found := fromBlocks(text); len(found) > 0 {
		return found
	}
	return fromList(text)
}

func fromJSON(text string) []Task {
	for _, candidate := range jsonCandidates(text) {
		root := gjson.Parse(candidate)

		var items gjson.Result
		switch {
		case root.IsObject():
			items = root.Get("tasks")
		case root.IsArray():
			items = root
		}
		if !items.IsArray() {
			continue
		}

		found := make([]Task, 0)
		items.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				return true
			}
			task := Task{
				Type:               item.Get("type").String(),
				Priority:           item.Get("priority").String(),
				Title:              firstString(item, "title", "name", "summary"),
				Description:        item.Get("description").String(),
				AcceptanceCriteria: criteria(item.Get("acceptance_criteria")),
			}
			if strings.TrimSpace(task.Title) == "" && strings.TrimSpace(task.Description) == "" {
				return true
			}
			found = append(found, normalize(task))
			return true
		})
		if len(found) > 0 {
			return found
		}
	}

	return nil
}

// jsonCandidates yields fenced blocks first, then the raw text from the
// first object or array of objects onward.
func jsonCandidates(text string) []string {
	candidates := make([]string, 0, 3)
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, strings.TrimSpace(match[1]))
	}

	if start := strings.Index(text, "{"); start >= 0 {
		candidates = append(candidates, text[start:])
	}
	// A bare array only counts when it holds objects.
	if loc := arrayStartPattern.FindStringIndex(text); loc != nil {
		candidates = append(candidates, text[loc[0]:])
	}

	return candidates
}

func firstString(item gjson.Result, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(item.Get(key).String()); value != "" {
			return value
		}
	}
	return ""
}

func criteria(value gjson.Result) []string {
	out := make([]string, 0)
	switch {
	case value.IsArray():
		value.ForEach(func(_, entry gjson.Result) bool {
			if s := strings.TrimSpace(entry.String()); s != "" {
				out = append(out, s)
			}
			return true
		})
	case value.Type == gjson.String:
		for _, line := range strings.Split(value.String(), "\n") {
			if s := cleanListLine(line); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func fromBlocks(text string) []Task {
	matches := taskBlockPattern.FindAllStringSubmatch(text, -1)
	found := make([]Task, 0, len(matches))

	for _, match := range matches {
		var task Task
		inCriteria := false

		for _, line := range strings.Split(match[1], "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}

			if kv := keyValuePattern.FindStringSubmatch(line); kv != nil && !listItemPattern.MatchString(line) {
				key := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(kv[1]))
				value := strings.TrimSpace(kv[2])
				inCriteria = false

				switch key {
				case "type":
					task.Type = value
				case "priority":
					task.Priority = value
				case "title", "name":
					task.Title = value
				case "description":
					task.Description = value
				case "acceptance_criteria", "acceptance", "criteria":
					inCriteria = true
					if value != "" {
						task.AcceptanceCriteria = append(task.AcceptanceCriteria, value)
					}
				}
				continue
			}

			if inCriteria {
				if item := cleanListLine(line); item != "" {
					task.AcceptanceCriteria = append(task.AcceptanceCriteria, item)
				}
			}
		}

		if task.Title == "" && task.Description == "" {
			continue
		}
		found = append(found, normalize(task))
	}

	return found
}

func fromList(text string) []Task {
	found := make([]Task, 0)
	for _, line := range strings.Split(text, "\n") {
		match := listItemPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		title := strings.Trim(strings.TrimSpace(match[1]), "*_`")
		if title == "" {
			continue
		}
		found = append(found, normalize(Task{Title: title}))
	}
	return found
}

func cleanListLine(line string) string {
	if match := listItemPattern.FindStringSubmatch(line); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(line)
}

func normalize(task Task) Task {
	task.Type = strings.ToLower(strings.TrimSpace(task.Type))
	if task.Type == "" {
		task.Type = DefaultType
	}
	task.Priority = strings.ToLower(strings.TrimSpace(task.Priority))
	if task.Priority == "" {
		task.Priority = DefaultPriority
	}
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		task.Title = untitled
	}
	task.Description = strings.TrimSpace(task.Description)
	if task.AcceptanceCriteria == nil {
		task.AcceptanceCriteria = []string{}
	}
	return task
}

// RenderText renders the numbered listing printed by export-tasks.
func RenderText(list []Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Extracted %d Tasks ===\n\n", len(list))

	for i, task := range list {
		fmt.Fprintf(&b, "%d. [%s] [%s] %s\n", i+1, task.Type, task.Priority, task.Title)
		if task.Description != "" {
			fmt.Fprintf(&b, "   %s...\n", truncateRunes(task.Description, descriptionCap))
		}
		if len(task.AcceptanceCriteria) > 0 {
			fmt.Fprintf(&b, "   Acceptance criteria: %d items\n", len(task.AcceptanceCriteria))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
